package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/satlink/model"
)

var (
	ErrStationExists   = errors.New("ground station already exists")
	ErrStationNotFound = errors.New("ground station not found")
	ErrStationBadInput = errors.New("invalid ground station")
	ErrStationFull     = errors.New("ground station at capacity")
)

// GroundStationRegistry is the concurrency-safe store of ground
// stations. Connection capacity bookkeeping goes through Reserve and
// Release so concurrent terminals contend here, not in the caller.
type GroundStationRegistry struct {
	mu sync.RWMutex

	stations map[string]*model.GroundStation
}

// NewGroundStationRegistry creates an empty registry.
func NewGroundStationRegistry() *GroundStationRegistry {
	return &GroundStationRegistry{
		stations: make(map[string]*model.GroundStation),
	}
}

// Register adds a ground station.
func (r *GroundStationRegistry) Register(gs *model.GroundStation) error {
	if gs == nil || gs.ID == "" {
		return fmt.Errorf("%w: nil or empty ID", ErrStationBadInput)
	}
	if gs.MaxConnections <= 0 {
		return fmt.Errorf("%w: %q has no connection capacity", ErrStationBadInput, gs.ID)
	}
	if gs.Status == "" {
		gs.Status = model.StationOnline
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stations[gs.ID]; exists {
		return fmt.Errorf("%w: %q", ErrStationExists, gs.ID)
	}
	r.stations[gs.ID] = gs
	return nil
}

// Get returns a station by ID, or nil if not found.
func (r *GroundStationRegistry) Get(id string) *model.GroundStation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stations[id]
}

// List returns all stations sorted by ID.
func (r *GroundStationRegistry) List() []*model.GroundStation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.GroundStation, 0, len(r.stations))
	for _, gs := range r.stations {
		out = append(out, gs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindBestFor returns the online station that supports the satellite's
// network and has spare capacity, preferring the largest remaining
// capacity as a load-balancing tie-break. Returns nil when no station
// qualifies.
func (r *GroundStationRegistry) FindBestFor(sat *model.Satellite) *model.GroundStation {
	if sat == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *model.GroundStation
	for _, gs := range r.stations {
		if gs.Status != model.StationOnline {
			continue
		}
		if !gs.SupportsNetwork(sat.Network) {
			continue
		}
		if gs.RemainingCapacity() <= 0 {
			continue
		}
		if best == nil ||
			gs.RemainingCapacity() > best.RemainingCapacity() ||
			(gs.RemainingCapacity() == best.RemainingCapacity() && gs.ID < best.ID) {
			best = gs
		}
	}
	return best
}

// Reserve takes one connection slot at a station.
func (r *GroundStationRegistry) Reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gs, ok := r.stations[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStationNotFound, id)
	}
	if gs.RemainingCapacity() <= 0 {
		return fmt.Errorf("%w: %q", ErrStationFull, id)
	}
	gs.CurrentConnections++
	return nil
}

// Release returns a connection slot to a station. Releasing an
// unknown station is an error; releasing below zero is clamped.
func (r *GroundStationRegistry) Release(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gs, ok := r.stations[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStationNotFound, id)
	}
	if gs.CurrentConnections > 0 {
		gs.CurrentConnections--
	}
	return nil
}

// SetStatus flips a station's administrative status.
func (r *GroundStationRegistry) SetStatus(id string, status model.StationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gs, ok := r.stations[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStationNotFound, id)
	}
	gs.Status = status
	return nil
}

// Count returns the number of stations, optionally restricted to
// those serving a network.
func (r *GroundStationRegistry) Count(network model.Network) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if network == "" {
		return len(r.stations)
	}
	n := 0
	for _, gs := range r.stations {
		if gs.SupportsNetwork(network) {
			n++
		}
	}
	return n
}
