package comms

import (
	"errors"

	"github.com/signalsfoundry/satlink/core"
)

var (
	// ErrTerminalNotFound indicates an unknown terminal ID.
	ErrTerminalNotFound = errors.New("terminal not found")
	// ErrTerminalBadInput indicates a terminal spec failed validation.
	ErrTerminalBadInput = errors.New("invalid terminal")
	// ErrMessageNotFound indicates an unknown message ID.
	ErrMessageNotFound = errors.New("message not found")
	// ErrAlertNotFound indicates an unknown SOS alert ID.
	ErrAlertNotFound = errors.New("sos alert not found")

	// ErrNoCoverage indicates no satellite footprint contains the
	// terminal's location.
	ErrNoCoverage = errors.New("no satellite coverage")
	// ErrNoGroundStation indicates no online station with spare
	// capacity serves the chosen satellite.
	ErrNoGroundStation = errors.New("no ground station available")
	// ErrNotConnected indicates the operation requires an active
	// connection.
	ErrNotConnected = errors.New("terminal not connected")
	// ErrQuotaExceeded indicates the transmission would exceed the
	// terminal's data allowance.
	ErrQuotaExceeded = errors.New("data quota exceeded")
	// ErrMaxRetriesExceeded indicates transmission failed after the
	// retry budget was spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrSOSNotSupported indicates the terminal lacks the SOS
	// capability.
	ErrSOSNotSupported = errors.New("terminal does not support SOS")
	// ErrInvalidTransition indicates an illegal state-machine move.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrTerminalDisconnected marks in-flight work aborted by a
	// disconnect.
	ErrTerminalDisconnected = errors.New("terminal disconnected")
)

// Re-export registry sentinels so callers can depend on comms.*
// instead of core.* directly if they want to.
var (
	ErrSatelliteNotFound = core.ErrSatelliteNotFound
	ErrStationNotFound   = core.ErrStationNotFound
	ErrStationFull       = core.ErrStationFull
)
