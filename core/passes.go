package core

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/satlink/internal/rng"
	"github.com/signalsfoundry/satlink/model"
)

// PassQuality buckets a predicted pass by its maximum elevation.
type PassQuality string

const (
	PassExcellent PassQuality = "excellent"
	PassGood      PassQuality = "good"
	PassFair      PassQuality = "fair"
	PassPoor      PassQuality = "poor"
)

// SatellitePass is one predicted visibility window.
type SatellitePass struct {
	SatelliteID   string
	SatelliteName string
	Start         time.Time
	End           time.Time
	// MaxElevationDeg is the peak elevation of the pass.
	MaxElevationDeg float64
	Quality         PassQuality
}

// PassPredictor computes approximate visibility windows for a location
// against the registry's LEO satellites.
//
// This is intentionally an approximation layer, not a physics engine:
// pass counts come from the orbital period, durations and elevations
// are drawn from the injected random source. Callers must not treat
// the output as authoritative orbital prediction.
type PassPredictor struct {
	Sats *SatelliteRegistry
	Rand rng.Source
}

// NewPassPredictor constructs a predictor over the given registry.
func NewPassPredictor(sats *SatelliteRegistry, src rng.Source) *PassPredictor {
	if src == nil {
		src = rng.System()
	}
	return &PassPredictor{Sats: sats, Rand: src}
}

// Predict returns the approximate passes over loc within the horizon,
// sorted by start time. Only operational LEO satellites produce
// passes; higher orbits are either stationary (GEO) or too slow for
// this estimate to mean anything.
func (p *PassPredictor) Predict(now time.Time, loc model.Location, horizon time.Duration) []SatellitePass {
	horizonMin := horizon.Minutes()
	if horizonMin <= 0 {
		return nil
	}

	var passes []SatellitePass
	for _, sat := range p.Sats.List(SatelliteFilter{Status: model.SatelliteOperational, Orbit: model.OrbitLEO}) {
		periodMin := sat.OrbitalPeriodMin
		if periodMin <= 0 {
			periodMin = OrbitalPeriodMinutes(sat.AltitudeKm)
		}
		if periodMin <= 0 {
			continue
		}

		count := int(math.Floor(horizonMin / periodMin))
		for i := 0; i < count; i++ {
			durationMin := 10 + p.Rand.Float64()*5
			maxElev := 20 + p.Rand.Float64()*60

			// Place the pass somewhere inside its orbit slot. Periods
			// shorter than the pass duration leave no slack, so the
			// pass sits at the slot start.
			slackMin := periodMin - durationMin
			if slackMin < 0 {
				slackMin = 0
			}
			offsetMin := float64(i)*periodMin + p.Rand.Float64()*slackMin
			start := now.Add(time.Duration(offsetMin * float64(time.Minute)))

			passes = append(passes, SatellitePass{
				SatelliteID:     sat.ID,
				SatelliteName:   sat.Name,
				Start:           start,
				End:             start.Add(time.Duration(durationMin * float64(time.Minute))),
				MaxElevationDeg: maxElev,
				Quality:         QualityFromElevation(maxElev),
			})
		}
	}

	sort.Slice(passes, func(i, j int) bool { return passes[i].Start.Before(passes[j].Start) })
	return passes
}

// QualityFromElevation buckets a max elevation into a pass quality.
func QualityFromElevation(elevDeg float64) PassQuality {
	switch {
	case elevDeg >= 60:
		return PassExcellent
	case elevDeg >= 40:
		return PassGood
	case elevDeg >= 20:
		return PassFair
	default:
		return PassPoor
	}
}
