// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/satlink/model"
)

// ConstellationScenario is a small summary of what was loaded from
// JSON. It's mainly useful for logging from main().
type ConstellationScenario struct {
	SatelliteIDs []string
	StationIDs   []string
}

// internal JSON shapes – keep them unexported so we're free to evolve them.
type constellationJSON struct {
	Satellites     []satelliteJSON     `json:"satellites"`
	GroundStations []groundStationJSON `json:"ground_stations"`
}

type satelliteJSON struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Network          string  `json:"network"`
	Orbit            string  `json:"orbit"` // "LEO" | "MEO" | "GEO" | "HEO"
	AltitudeKm       float64 `json:"altitude_km"`
	OrbitalPeriodMin float64 `json:"orbital_period_min"`
	TLELine1         string  `json:"tle_line1"`
	TLELine2         string  `json:"tle_line2"`

	FootprintLat    float64 `json:"footprint_lat"`
	FootprintLon    float64 `json:"footprint_lon"`
	FootprintKm     float64 `json:"footprint_km"`
	MinElevationDeg float64 `json:"min_elevation_deg"`
	Beams           int     `json:"beams"`
	BeamCapacity    int     `json:"beam_capacity"`

	Voice         bool    `json:"voice"`
	Data          bool    `json:"data"`
	BandwidthKbps float64 `json:"bandwidth_kbps"`
	BaseLatencyMs float64 `json:"base_latency_ms"`
}

type groundStationJSON struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	Networks       []string `json:"networks"`
	MaxConnections int      `json:"max_connections"`
}

// LoadConstellation reads a JSON scenario from r and populates the
// satellite and ground-station registries, returning a summary of
// what was loaded. It fails on JSON/structural errors and on registry
// rejections (duplicate IDs, missing capacity).
func LoadConstellation(sats *SatelliteRegistry, stations *GroundStationRegistry, r io.Reader) (*ConstellationScenario, error) {
	if sats == nil || stations == nil {
		return nil, fmt.Errorf("LoadConstellation: nil registry")
	}

	var payload constellationJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadConstellation: decode failed: %w", err)
	}

	result := &ConstellationScenario{
		SatelliteIDs: make([]string, 0, len(payload.Satellites)),
		StationIDs:   make([]string, 0, len(payload.GroundStations)),
	}

	for _, js := range payload.Satellites {
		if js.ID == "" {
			return nil, fmt.Errorf("LoadConstellation: satellite with empty id")
		}

		beams := make([]model.Beam, 0, js.Beams)
		for i := 0; i < js.Beams; i++ {
			beams = append(beams, model.Beam{
				ID:       fmt.Sprintf("%s-beam-%d", js.ID, i+1),
				Capacity: js.BeamCapacity,
			})
		}

		sat := &model.Satellite{
			ID:               js.ID,
			Name:             js.Name,
			Network:          model.Network(strings.ToLower(js.Network)),
			Orbit:            orbitFromString(js.Orbit),
			AltitudeKm:       js.AltitudeKm,
			OrbitalPeriodMin: js.OrbitalPeriodMin,
			TLELine1:         js.TLELine1,
			TLELine2:         js.TLELine2,
			Position: model.Location{
				Latitude:  js.FootprintLat,
				Longitude: js.FootprintLon,
				Altitude:  js.AltitudeKm * 1000,
			},
			Footprint: model.Footprint{
				CenterLat:       js.FootprintLat,
				CenterLon:       js.FootprintLon,
				RadiusKm:        js.FootprintKm,
				MinElevationDeg: js.MinElevationDeg,
				Beams:           beams,
			},
			Capability: model.SatelliteCapability{
				Voice:         js.Voice,
				Data:          js.Data,
				BandwidthKbps: js.BandwidthKbps,
				BaseLatencyMs: js.BaseLatencyMs,
			},
			Health: model.SatelliteHealth{PayloadOK: true, PowerOK: true, ThermalOK: true, BatteryLevel: 1},
			Status: model.SatelliteOperational,
		}
		if err := sats.Register(sat); err != nil {
			return nil, fmt.Errorf("LoadConstellation: %w", err)
		}
		result.SatelliteIDs = append(result.SatelliteIDs, js.ID)
	}

	for _, js := range payload.GroundStations {
		if js.ID == "" {
			return nil, fmt.Errorf("LoadConstellation: ground station with empty id")
		}
		networks := make([]model.Network, 0, len(js.Networks))
		for _, n := range js.Networks {
			networks = append(networks, model.Network(strings.ToLower(n)))
		}
		gs := &model.GroundStation{
			ID:             js.ID,
			Name:           js.Name,
			Location:       model.Location{Latitude: js.Lat, Longitude: js.Lon},
			Networks:       networks,
			MaxConnections: js.MaxConnections,
			Status:         model.StationOnline,
		}
		if err := stations.Register(gs); err != nil {
			return nil, fmt.Errorf("LoadConstellation: %w", err)
		}
		result.StationIDs = append(result.StationIDs, js.ID)
	}

	return result, nil
}

// orbitFromString maps the JSON "orbit" string to an OrbitClass.
// Unknown / empty values default to LEO, which is what fallback
// constellations mostly are.
func orbitFromString(s string) model.OrbitClass {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEO":
		return model.OrbitMEO
	case "GEO":
		return model.OrbitGEO
	case "HEO":
		return model.OrbitHEO
	default:
		return model.OrbitLEO
	}
}
