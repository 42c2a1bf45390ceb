package model

import "time"

// Network identifies the commercial satellite network a terminal or
// satellite belongs to.
type Network string

const (
	NetworkIridium    Network = "iridium"
	NetworkInmarsat   Network = "inmarsat"
	NetworkStarlink   Network = "starlink"
	NetworkGlobalstar Network = "globalstar"
	NetworkThuraya    Network = "thuraya"
)

// OrbitClass is the broad orbital regime of a satellite.
type OrbitClass string

const (
	OrbitLEO OrbitClass = "LEO"
	OrbitMEO OrbitClass = "MEO"
	OrbitGEO OrbitClass = "GEO"
	OrbitHEO OrbitClass = "HEO"
)

// SatelliteStatus is the operational state of a satellite. Satellites
// are never deleted from the registry, only flipped to offline.
type SatelliteStatus string

const (
	SatelliteOperational SatelliteStatus = "operational"
	SatelliteDegraded    SatelliteStatus = "degraded"
	SatelliteOffline     SatelliteStatus = "offline"
)

// Beam is a sub-division of a satellite's footprint with its own
// capacity accounting.
type Beam struct {
	ID string
	// Capacity is the number of simultaneous connections the beam supports.
	Capacity int
	// Active is the current number of connections through the beam.
	Active int
}

// Footprint models the ground area a satellite can serve as a circle
// on the sphere: a centre point plus a great-circle radius.
type Footprint struct {
	CenterLat float64
	CenterLon float64
	// RadiusKm is the great-circle radius of the coverage circle.
	RadiusKm float64
	// MinElevationDeg is the minimum elevation angle a terminal needs
	// to close the link.
	MinElevationDeg float64
	Beams           []Beam
}

// SatelliteCapability describes what traffic the satellite carries.
type SatelliteCapability struct {
	Voice bool
	Data  bool
	// BandwidthKbps is the nominal per-connection bandwidth.
	BandwidthKbps float64
	// BaseLatencyMs is the transponder latency excluding propagation.
	BaseLatencyMs float64
}

// SatelliteHealth carries the subsystem health flags mutated by
// periodic status updates.
type SatelliteHealth struct {
	PayloadOK    bool
	PowerOK      bool
	ThermalOK    bool
	LastContact  time.Time
	BatteryLevel float64 // 0..1
}

// Satellite is a registry entry for one spacecraft. Position is
// updated in place by the motion layer; footprint centre follows the
// subpoint for non-geostationary birds.
type Satellite struct {
	ID      string
	Name    string
	Network Network
	Orbit   OrbitClass

	// AltitudeKm is the nominal orbital altitude.
	AltitudeKm float64

	// OrbitalPeriodMin is the orbital period in minutes. 0 means
	// "derive from altitude" (see core.OrbitalPeriodMinutes).
	OrbitalPeriodMin float64

	// TLELine1/TLELine2 enable SGP4 propagation when present.
	TLELine1 string
	TLELine2 string

	Position   Location
	Footprint  Footprint
	Capability SatelliteCapability
	Health     SatelliteHealth
	Status     SatelliteStatus
}
