package core

// Signal model constants. The link budget here is deliberately a
// monotonic distance-vs-strength relationship, not an engineering-grade
// RF model: received strength starts at a strong baseline and degrades
// linearly as the terminal approaches the footprint edge.
const (
	// BaseSignalDBm is the received strength directly under the beam centre.
	BaseSignalDBm = -70.0

	// MaxDegradationDB is the additional loss at the footprint edge.
	MaxDegradationDB = 30.0

	// HandoffThresholdDBm is the strength below which a connected
	// terminal starts looking for a replacement satellite.
	HandoffThresholdDBm = -100.0

	// noiseFloorDBm anchors the SNR estimate derived from strength.
	noiseFloorDBm = -110.0
)

// SignalStrengthDBm estimates received signal strength for a terminal
// at distanceKm from the footprint centre of a satellite whose
// footprint radius is radiusKm. jitterDB models fast fading and is
// subtracted as-is; callers draw it from their random source so tests
// stay deterministic.
func SignalStrengthDBm(distanceKm, radiusKm, jitterDB float64) float64 {
	ratio := 0.0
	if radiusKm > 0 {
		ratio = distanceKm / radiusKm
	}
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return BaseSignalDBm - MaxDegradationDB*ratio - jitterDB
}

// SNRFromStrength converts a received strength into a simple SNR
// estimate against a fixed noise floor.
func SNRFromStrength(strengthDBm float64) float64 {
	snr := strengthDBm - noiseFloorDBm
	if snr < 0 {
		snr = 0
	}
	return snr
}
