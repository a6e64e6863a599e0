package cleaner

import (
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"math"
)

// FilterCoordinates rejects fixes with non-finite or out-of-range coordinates.
func FilterCoordinates(f sample.Fix) bool {
	return common.IsFinite(f.Latitude, f.Longitude) &&
		math.Abs(f.Latitude) <= 90 && math.Abs(f.Longitude) <= 180
}

func FilterAccuracy(f sample.Fix, cfg *params.TrackCleaningConfig) bool {
	return common.IsFinite(f.Accuracy) &&
		f.Accuracy > 0 && f.Accuracy < cfg.AccuracyThreshold
}

func FilterSpeed(f sample.Fix) bool {
	// NaN speed means not reported, which is fine.
	return math.IsNaN(f.Speed) || f.Speed < common.SpeedOfSound
}

func FilterElevation(f sample.Fix, cfg *params.TrackCleaningConfig) bool {
	if math.IsNaN(f.Altitude) {
		return true
	}
	return f.Altitude > cfg.MinElevation && f.Altitude < cfg.MaxElevation
}

// Sane runs every sanity filter and reports the first that failed.
func Sane(f sample.Fix, cfg *params.TrackCleaningConfig) (ok bool, reason string) {
	switch {
	case !FilterCoordinates(f):
		return false, "bad coordinates"
	case !FilterAccuracy(f, cfg):
		return false, "poor accuracy"
	case !FilterSpeed(f):
		return false, "impossible speed"
	case !FilterElevation(f, cfg):
		return false, "wild elevation"
	}
	return true, ""
}
