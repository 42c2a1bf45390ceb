package model

import "time"

// TerminalType describes the physical form factor of a terminal.
type TerminalType string

const (
	TerminalFixed    TerminalType = "fixed"
	TerminalPortable TerminalType = "portable"
	TerminalHandheld TerminalType = "handheld"
	TerminalVehicle  TerminalType = "vehicle"
	TerminalMaritime TerminalType = "maritime"
	TerminalAircraft TerminalType = "aircraft"
)

// TerminalStatus is the connection lifecycle state of a terminal.
//
// Invariant: a terminal holds a non-nil Connection exactly when its
// status is TerminalConnected or TerminalHandoff.
type TerminalStatus string

const (
	TerminalDisconnected TerminalStatus = "disconnected"
	TerminalSearching    TerminalStatus = "searching"
	TerminalConnecting   TerminalStatus = "connecting"
	TerminalConnected    TerminalStatus = "connected"
	TerminalHandoff      TerminalStatus = "handoff"
)

// TerminalCapabilities are the service flags a terminal supports.
type TerminalCapabilities struct {
	Voice bool
	Data  bool
	SMS   bool
	SOS   bool
	GPS   bool
}

// Subscription is the terminal's service plan and quota counters.
type Subscription struct {
	Plan string
	// DataAllowanceBytes is the plan's data budget.
	DataAllowanceBytes int64
	// DataUsedBytes is consumed allowance; only successful
	// transmissions count against it.
	DataUsedBytes int64
	ValidUntil    time.Time
}

// TerminalMetrics are rolling usage counters for one terminal.
type TerminalMetrics struct {
	MessagesSent     int64
	MessagesReceived int64
	BytesSent        int64
	BytesReceived    int64
	Drops            int64
	// AvgLatencyMs is an exponentially-weighted link latency estimate.
	AvgLatencyMs float64
}

// Connection is a live satellite link owned exclusively by one
// terminal. It is destroyed on disconnect; on handoff the satellite,
// signal and latency fields are replaced in place while the ground
// station and beam are retained.
type Connection struct {
	SatelliteID     string
	GroundStationID string
	BeamID          string

	SignalStrengthDBm float64
	SNRdB             float64
	UplinkMHz         float64
	DownlinkMHz       float64
	BandwidthKbps     float64
	LatencyMs         float64
	PacketLoss        float64

	EstablishedAt time.Time
	LastActivity  time.Time
}

// Terminal is a registered user device with its last-known location,
// quota and at most one active connection.
type Terminal struct {
	ID      string
	Name    string
	Type    TerminalType
	Network Network

	LastLocation Location
	Capabilities TerminalCapabilities
	Subscription Subscription
	Metrics      TerminalMetrics

	// Connection is nil unless Status is connected or handoff.
	Connection *Connection
	Status     TerminalStatus

	RegisteredAt time.Time
}
