package params

import "time"

type TrackCleaningConfig struct {
	// AccuracyThreshold is the threshold to determine if a fix is accurate.
	// If the accuracy is greater than this value, it's considered inaccurate.
	AccuracyThreshold float64

	// MinElevation and MaxElevation bound plausible fix altitudes.
	MinElevation float64
	MaxElevation float64

	// DedupeCacheSize is the number of recent fixes remembered to drop exact repeats.
	DedupeCacheSize int

	// WangUrbanCanyonDistance is the distance threshold to determine if a fix is in an urban canyon.
	// It is measured between the target fix and the centroids of the 5 fixes before and after it.
	WangUrbanCanyonDistance float64

	// WangUrbanCanyonWindow bounds the time spanned by the fixes around the target.
	// Wider spans are treated as signal loss and never filtered.
	WangUrbanCanyonWindow time.Duration

	// TeleportSpeedFactor is the factor to determine teleportation.
	// If calculated speed is X times faster than reported speed, it's a teleportation.
	TeleportSpeedFactor float64

	// TeleportMinDistance is the minimum distance between two fixes to consider teleportation.
	// This helps remove spurious teleportations for small distances (e.g. speed=0.04, distance=10).
	TeleportMinDistance float64

	// Teleportations must happen within this window of time.
	// Otherwise, it'll be considered signal loss instead.
	TeleportWindow time.Duration
}

func DefaultCleanConfig() *TrackCleaningConfig {
	return &TrackCleaningConfig{
		AccuracyThreshold:       100.0,
		MinElevation:            -500,
		MaxElevation:            12_000,
		DedupeCacheSize:         64,
		WangUrbanCanyonDistance: 200.0,
		WangUrbanCanyonWindow:   60 * time.Second,
		TeleportSpeedFactor:     10.0,
		TeleportWindow:          60 * time.Second,
		TeleportMinDistance:     25.0,
	}
}

type ArbiterConfig struct {
	// Staleness is the age difference past which a fix is treated as
	// significantly newer (accepted) or significantly older (rejected)
	// regardless of accuracy. Zero derives it from the output rate.
	Staleness time.Duration

	// SignificantAccuracyDelta is how much worse (meters) a newer fix from the
	// same provider may be and still replace the current best.
	SignificantAccuracyDelta float64
}

// FixInterval is the nominal interval between positioning fixes.
const FixInterval = time.Second

// StalenessForRate derives the arbiter staleness threshold from the output rate.
func StalenessForRate(rate int) time.Duration {
	if rate < 1 {
		rate = 1
	}
	return time.Duration(rate) * FixInterval * 2
}

// ForRate returns c with Staleness derived from rate, unless it was set.
func (c ArbiterConfig) ForRate(rate int) ArbiterConfig {
	if c.Staleness <= 0 {
		c.Staleness = StalenessForRate(rate)
	}
	return c
}

func DefaultArbiterConfig() ArbiterConfig {
	return ArbiterConfig{
		SignificantAccuracyDelta: 200,
	}
}
