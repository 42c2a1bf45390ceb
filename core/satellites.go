package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/satlink/model"
)

var (
	ErrSatelliteExists   = errors.New("satellite already exists")
	ErrSatelliteNotFound = errors.New("satellite not found")
	ErrSatelliteBadInput = errors.New("invalid satellite")
)

// SatelliteRegistry is the concurrency-safe store of known satellites.
// Satellites are seeded at startup or registered by an operator;
// positions and health are mutated by periodic updates. Entries are
// never deleted, only marked offline.
type SatelliteRegistry struct {
	mu sync.RWMutex

	sats map[string]*model.Satellite

	// motions holds SGP4 propagators for TLE-carrying satellites,
	// keyed by satellite ID.
	motions map[string]MotionModel
}

// NewSatelliteRegistry creates an empty registry.
func NewSatelliteRegistry() *SatelliteRegistry {
	return &SatelliteRegistry{
		sats:    make(map[string]*model.Satellite),
		motions: make(map[string]MotionModel),
	}
}

// Register adds a satellite. A satellite with TLE lines gets an SGP4
// motion model so Tick can track its subpoint.
func (r *SatelliteRegistry) Register(sat *model.Satellite) error {
	if sat == nil || sat.ID == "" {
		return fmt.Errorf("%w: nil or empty ID", ErrSatelliteBadInput)
	}
	if sat.Status == "" {
		sat.Status = model.SatelliteOperational
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sats[sat.ID]; exists {
		return fmt.Errorf("%w: %q", ErrSatelliteExists, sat.ID)
	}
	r.sats[sat.ID] = sat
	r.motions[sat.ID] = NewMotionModel(sat)
	return nil
}

// Get returns a satellite by ID, or nil if not found.
func (r *SatelliteRegistry) Get(id string) *model.Satellite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sats[id]
}

// SatelliteFilter narrows List results. Zero values match everything.
type SatelliteFilter struct {
	Network model.Network
	Status  model.SatelliteStatus
	Orbit   model.OrbitClass
}

// List returns satellites matching the filter, sorted by ID for
// stable output.
func (r *SatelliteRegistry) List(filter SatelliteFilter) []*model.Satellite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Satellite, 0, len(r.sats))
	for _, sat := range r.sats {
		if filter.Network != "" && sat.Network != filter.Network {
			continue
		}
		if filter.Status != "" && sat.Status != filter.Status {
			continue
		}
		if filter.Orbit != "" && sat.Orbit != filter.Orbit {
			continue
		}
		out = append(out, sat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindAvailable returns operational satellites of the given network
// whose footprint contains loc (great-circle distance from the
// footprint centre within the footprint radius), sorted by ascending
// distance. Closer is preferred as a proxy for stronger signal.
func (r *SatelliteRegistry) FindAvailable(loc model.Location, network model.Network) []*model.Satellite {
	type candidate struct {
		sat    *model.Satellite
		distKm float64
	}

	r.mu.RLock()
	cands := make([]candidate, 0, len(r.sats))
	for _, sat := range r.sats {
		if sat.Status != model.SatelliteOperational {
			continue
		}
		if network != "" && sat.Network != network {
			continue
		}
		dist := GreatCircleKm(loc.Latitude, loc.Longitude, sat.Footprint.CenterLat, sat.Footprint.CenterLon)
		if dist > sat.Footprint.RadiusKm {
			continue
		}
		cands = append(cands, candidate{sat: sat, distKm: dist})
	}
	r.mu.RUnlock()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distKm != cands[j].distKm {
			return cands[i].distKm < cands[j].distKm
		}
		return cands[i].sat.ID < cands[j].sat.ID
	})

	out := make([]*model.Satellite, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.sat)
	}
	return out
}

// DistanceToFootprintCenter returns the great-circle distance from loc
// to the satellite's footprint centre.
func DistanceToFootprintCenter(loc model.Location, sat *model.Satellite) float64 {
	return GreatCircleKm(loc.Latitude, loc.Longitude, sat.Footprint.CenterLat, sat.Footprint.CenterLon)
}

// SetStatus flips a satellite's operational status. Removal from
// service is modelled as a flip to offline, never a delete.
func (r *SatelliteRegistry) SetStatus(id string, status model.SatelliteStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sat, ok := r.sats[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSatelliteNotFound, id)
	}
	sat.Status = status
	return nil
}

// UpdateHealth overwrites the health block for a satellite.
func (r *SatelliteRegistry) UpdateHealth(id string, health model.SatelliteHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sat, ok := r.sats[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSatelliteNotFound, id)
	}
	sat.Health = health
	return nil
}

// UpdatePosition manually overrides a satellite position (used for
// satellites without TLE data).
func (r *SatelliteRegistry) UpdatePosition(id string, pos model.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sat, ok := r.sats[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSatelliteNotFound, id)
	}
	sat.Position = pos
	sat.Footprint.CenterLat = pos.Latitude
	sat.Footprint.CenterLon = pos.Longitude
	return nil
}

// Tick propagates every TLE-carrying satellite to simTime, moving its
// position and footprint centre along the orbit.
func (r *SatelliteRegistry) Tick(simTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, motion := range r.motions {
		sat := r.sats[id]
		if sat == nil || motion == nil {
			continue
		}
		motion.Propagate(simTime, sat)
	}
}

// ClaimBeam takes one slot on the first beam of the satellite with
// spare capacity and returns its ID. Satellites without beams return
// an empty ID; the connection then rides the whole footprint.
func (r *SatelliteRegistry) ClaimBeam(satID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sat, ok := r.sats[satID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSatelliteNotFound, satID)
	}
	for i := range sat.Footprint.Beams {
		beam := &sat.Footprint.Beams[i]
		if beam.Capacity <= 0 || beam.Active < beam.Capacity {
			beam.Active++
			return beam.ID, nil
		}
	}
	return "", nil
}

// ReleaseBeam returns a slot to a beam. Handoffs keep the original
// beam while the satellite changes, so when the beam is not on the
// given satellite the other entries are scanned for it.
func (r *SatelliteRegistry) ReleaseBeam(satID, beamID string) {
	if beamID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sat, ok := r.sats[satID]; ok && releaseBeamOn(sat, beamID) {
		return
	}
	for _, sat := range r.sats {
		if releaseBeamOn(sat, beamID) {
			return
		}
	}
}

func releaseBeamOn(sat *model.Satellite, beamID string) bool {
	for i := range sat.Footprint.Beams {
		beam := &sat.Footprint.Beams[i]
		if beam.ID == beamID {
			if beam.Active > 0 {
				beam.Active--
			}
			return true
		}
	}
	return false
}

// Count returns the number of satellites, optionally restricted to a
// network.
func (r *SatelliteRegistry) Count(network model.Network) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if network == "" {
		return len(r.sats)
	}
	n := 0
	for _, sat := range r.sats {
		if sat.Network == network {
			n++
		}
	}
	return n
}
