package model

import "time"

// MessageType classifies outbound traffic.
type MessageType string

const (
	MessageData      MessageType = "data"
	MessageVoice     MessageType = "voice"
	MessageSMS       MessageType = "sms"
	MessageSOS       MessageType = "sos"
	MessagePosition  MessageType = "position"
	MessageBroadcast MessageType = "broadcast"
)

// MessagePriority orders transmissions; PrioritySOS preempts quota
// ordering concerns in the UI but not the per-terminal FIFO.
type MessagePriority string

const (
	PriorityLow    MessagePriority = "low"
	PriorityNormal MessagePriority = "normal"
	PriorityHigh   MessagePriority = "high"
	PriorityUrgent MessagePriority = "urgent"
	PrioritySOS    MessagePriority = "sos"
)

// MessageStatus forms a directed lattice:
//
//	queued -> transmitting -> transmitted -> delivered
//
// with transmitting -> transmitting on retry, and the terminal states
// failed (from queued or transmitting) and expired (time based).
// Observed statuses for a message are non-decreasing in the lattice.
type MessageStatus string

const (
	MessageQueued       MessageStatus = "queued"
	MessageTransmitting MessageStatus = "transmitting"
	MessageTransmitted  MessageStatus = "transmitted"
	MessageDelivered    MessageStatus = "delivered"
	MessageFailed       MessageStatus = "failed"
	MessageExpired      MessageStatus = "expired"
)

// Payload is the message body plus framing metadata.
type Payload struct {
	Content    string
	SizeBytes  int64
	Compressed bool
	Encrypted  bool
	Checksum   string
}

// Routing records where a message came from and which network
// elements carried it.
type Routing struct {
	Source      Location
	Destination string
	// ViaSatellite / ViaGroundStation are filled in when the message
	// is successfully transmitted.
	ViaSatellite     string
	ViaGroundStation string
}

// Transmission is the attempt bookkeeping for a message.
type Transmission struct {
	Attempts      int
	FirstAttempt  time.Time
	LastAttempt   time.Time
	TransmittedAt time.Time
	LastError     string
}

// Message is one unit of outbound traffic owned by a terminal.
type Message struct {
	ID         string
	TerminalID string
	Type       MessageType
	Priority   MessagePriority

	Payload      Payload
	Routing      Routing
	Transmission Transmission

	Status    MessageStatus
	CreatedAt time.Time
	// ExpiresAt is CreatedAt + 24h; messages still queued or
	// transmitting past this instant are expired on read.
	ExpiresAt time.Time
}

// Terminal reports whether the message is in a terminal (final) status.
func (m *Message) Terminal() bool {
	switch m.Status {
	case MessageDelivered, MessageFailed, MessageExpired:
		return true
	}
	return false
}
