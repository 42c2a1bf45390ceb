package model

import "time"

// Location is a geodetic position report. Latitude and longitude are
// degrees, altitude is metres above the reference ellipsoid.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64

	// AccuracyM is the reported horizontal accuracy in metres; 0 = unknown.
	AccuracyM float64

	// Timestamp records when the fix was taken.
	Timestamp time.Time
}
