package model

import "time"

// SOSType is the severity class of a distress alert, mirroring GMDSS
// terminology.
type SOSType string

const (
	SOSDistress SOSType = "distress"
	SOSUrgency  SOSType = "urgency"
	SOSSafety   SOSType = "safety"
	SOSTest     SOSType = "test"
)

// SOSStatus is the alert lifecycle:
//
//	active -> acknowledged -> responding -> resolved
//
// with cancelled reachable from any non-terminal state.
type SOSStatus string

const (
	SOSActive       SOSStatus = "active"
	SOSAcknowledged SOSStatus = "acknowledged"
	SOSResponding   SOSStatus = "responding"
	SOSResolved     SOSStatus = "resolved"
	SOSCancelled    SOSStatus = "cancelled"
)

// ResponderStatus tracks one responder's progress against an alert.
type ResponderStatus string

const (
	ResponderNotified  ResponderStatus = "notified"
	ResponderEnRoute   ResponderStatus = "en_route"
	ResponderOnScene   ResponderStatus = "on_scene"
	ResponderCompleted ResponderStatus = "completed"
)

// Responder is an assigned rescue asset.
type Responder struct {
	ID         string
	Name       string
	Role       string
	Status     ResponderStatus
	AssignedAt time.Time
}

// EmergencyContact is a person to notify about the alert.
type EmergencyContact struct {
	Name  string
	Phone string
}

// TimelineEntry is one event in an alert's ordered history.
type TimelineEntry struct {
	At       time.Time
	Event    string
	Detail   string
	Location *Location
}

// SOSAlert is a distress alert originated by a terminal.
//
// Invariant: once an alert is active it carries at least one
// responder; an SOS with zero responders is not actionable.
type SOSAlert struct {
	ID         string
	TerminalID string
	Type       SOSType
	Status     SOSStatus

	Location Location
	Message  string

	Contacts   []EmergencyContact
	Responders []Responder
	Timeline   []TimelineEntry

	// MessageID links the sos-type message sent through the pipeline.
	MessageID string

	CreatedAt  time.Time
	ResolvedAt time.Time
}

// TerminalState reports whether the alert can no longer transition.
func (a *SOSAlert) TerminalState() bool {
	return a.Status == SOSResolved || a.Status == SOSCancelled
}
