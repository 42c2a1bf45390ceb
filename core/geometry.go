package core

import "math"

// EarthRadiusKm is the mean Earth radius used for all simple geometry
// in the link layer (kilometres).
const EarthRadiusKm = 6371.0

// SpeedOfLightKmPerSec is the vacuum speed of light in km/s.
const SpeedOfLightKmPerSec = 299792.458

// earthMuKm3PerSec2 is the standard gravitational parameter of the
// Earth, used to derive orbital periods from altitude.
const earthMuKm3PerSec2 = 398600.4418

// GreatCircleKm returns the great-circle (haversine) distance between
// two geodetic points, in kilometres. Altitude is ignored; coverage
// footprints are circles on the sphere.
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180.0

	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// PropagationDelayMs returns the round-trip free-space propagation
// delay for a satellite at the given altitude, in milliseconds:
// 2 * altitude / c.
func PropagationDelayMs(altitudeKm float64) float64 {
	if altitudeKm <= 0 {
		return 0
	}
	return 2 * altitudeKm / SpeedOfLightKmPerSec * 1000
}

// OrbitalPeriodMinutes derives a circular orbital period from altitude
// via Kepler's third law. Good enough for pass-count estimates; not an
// ephemeris.
func OrbitalPeriodMinutes(altitudeKm float64) float64 {
	a := EarthRadiusKm + altitudeKm
	if a <= 0 {
		return 0
	}
	periodSec := 2 * math.Pi * math.Sqrt(a*a*a/earthMuKm3PerSec2)
	return periodSec / 60
}

// SubpointFromECEF converts an ECEF position (kilometres) to a
// spherical-Earth subpoint: latitude/longitude in degrees plus
// altitude above the mean radius in kilometres.
func SubpointFromECEF(x, y, z float64) (latDeg, lonDeg, altKm float64) {
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0, 0, -EarthRadiusKm
	}
	latDeg = math.Asin(z/r) * 180.0 / math.Pi
	lonDeg = math.Atan2(y, x) * 180.0 / math.Pi
	altKm = r - EarthRadiusKm
	return latDeg, lonDeg, altKm
}
