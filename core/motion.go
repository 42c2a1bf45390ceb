package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/satlink/model"
)

// MotionModel updates a satellite's position for a given simulation time.
type MotionModel interface {
	Propagate(simTime time.Time, s *model.Satellite)
}

// StaticMotionModel leaves the satellite where it was seeded. Used for
// GEO birds and for entries without TLE data.
type StaticMotionModel struct{}

// Propagate for static motion does nothing.
func (m *StaticMotionModel) Propagate(simTime time.Time, s *model.Satellite) {
	// no-op
}

// OrbitalSGP4MotionModel propagates a TLE with SGP4 and projects the
// result to a subpoint so coverage queries track the orbit.
type OrbitalSGP4MotionModel struct {
	sat satellite.Satellite
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(line1, line2 string) *OrbitalSGP4MotionModel {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{sat: sat}
}

// Propagate moves the satellite to simTime. go-satellite works in
// kilometres ECI; we rotate to ECEF and store the geodetic subpoint,
// dragging the footprint centre along with it.
func (m *OrbitalSGP4MotionModel) Propagate(simTime time.Time, s *model.Satellite) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	latDeg, lonDeg, altKm := SubpointFromECEF(posECEF.X, posECEF.Y, posECEF.Z)

	s.Position = model.Location{
		Latitude:  latDeg,
		Longitude: lonDeg,
		Altitude:  altKm * 1000,
		Timestamp: simTime,
	}
	s.AltitudeKm = altKm
	s.Footprint.CenterLat = latDeg
	s.Footprint.CenterLon = lonDeg
}

// NewMotionModel chooses an appropriate MotionModel for the satellite:
// SGP4 when TLE lines are present, otherwise static.
func NewMotionModel(s *model.Satellite) MotionModel {
	if s.TLELine1 != "" && s.TLELine2 != "" {
		return NewOrbitalModelFromTLE(s.TLELine1, s.TLELine2)
	}
	return &StaticMotionModel{}
}
