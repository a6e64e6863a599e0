package params

import "time"

type SimConfig struct {
	Seed int64

	// CenterLat and CenterLon are the centre of the simulated circuit, degrees.
	CenterLat float64
	CenterLon float64

	// Radius of the circuit, meters.
	Radius float64
	// Speed along the circuit, m/s.
	Speed float64

	// FixAccuracy is the standard deviation of simulated GPS noise, meters.
	FixAccuracy float64
	// FixInterval is the interval between simulated fixes.
	FixInterval time.Duration

	// AccelerationNoise is the standard deviation of simulated accelerometer noise, m/s^2.
	AccelerationNoise float64
	SampleRate        float64

	Provider string
}

func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		Seed:              1,
		CenterLat:         46.9292804,
		CenterLon:         -114.0877518,
		Radius:            200,
		Speed:             8,
		FixAccuracy:       10,
		FixInterval:       FixInterval,
		AccelerationNoise: 0.05,
		SampleRate:        10,
		Provider:          "gps",
	}
}

type ReplayConfig struct {
	Fusion *FusionConfig

	// GeoJSONOut and NDJSONOut are optional output paths.
	GeoJSONOut string
	NDJSONOut  string

	// Baseline also runs a GPS-only filter for comparison.
	Baseline bool
	// BaselineSpeed and BaselineAcceleration tune the baseline filter's
	// process noise, m/s and m/s^2.
	BaselineSpeed        float64
	BaselineAcceleration float64

	// Clean runs the teleportation and urban canyon filters over the
	// recorded fixes before replaying them.
	Clean bool
}

func DefaultReplayConfig() *ReplayConfig {
	return &ReplayConfig{
		Fusion:               DefaultFusionConfig(),
		Baseline:             true,
		BaselineSpeed:        10,
		BaselineAcceleration: 2,
	}
}
