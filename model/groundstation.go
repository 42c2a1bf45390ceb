package model

// StationStatus is the administrative state of a ground station.
type StationStatus string

const (
	StationOnline      StationStatus = "online"
	StationMaintenance StationStatus = "maintenance"
	StationOffline     StationStatus = "offline"
)

// Antenna describes one dish at a ground station.
type Antenna struct {
	ID string
	// DiameterM is the dish diameter in metres.
	DiameterM float64
	// BandGHz is the centre frequency of the supported band.
	BandGHz float64
}

// GroundStation is a gateway between the satellite network and the
// terrestrial side. CurrentConnections is mutated whenever a terminal
// connection is established or torn down through the station.
type GroundStation struct {
	ID       string
	Name     string
	Location Location

	// Networks lists the satellite networks the station can serve.
	Networks []Network

	Antennas []Antenna

	// MaxConnections caps simultaneous terminal connections.
	MaxConnections int
	// CurrentConnections is the live connection count.
	CurrentConnections int

	Status StationStatus
}

// RemainingCapacity returns the spare connection slots at the station.
func (g *GroundStation) RemainingCapacity() int {
	return g.MaxConnections - g.CurrentConnections
}

// SupportsNetwork reports whether the station serves the given network.
func (g *GroundStation) SupportsNetwork(n Network) bool {
	for _, candidate := range g.Networks {
		if candidate == n {
			return true
		}
	}
	return false
}
