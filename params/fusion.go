package params

import (
	"fmt"
	"slices"
	"time"
)

// ValidRates are the allowed output rate divisors.
var ValidRates = []int{1, 3, 5, 10}

const DefaultRate = 3

func IsValidRate(rate int) bool {
	return slices.Contains(ValidRates, rate)
}

type EstimatorConfig struct {
	// AccelerationNoise is the process noise standard deviation, m/s^2.
	AccelerationNoise float64

	// MinPositionNoise floors measurement noise, meters, so that R and the
	// initial covariance are never singular.
	MinPositionNoise float64
}

func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		AccelerationNoise: 0.1,
		MinPositionNoise:  0.1,
	}
}

type FusionConfig struct {
	EstimatorConfig
	Arbiter ArbiterConfig
	Clean   *TrackCleaningConfig
	Sensor  SensorConfig

	// Rate emits one correction output per Rate accepted positioning events.
	Rate int

	// PollInterval is how often the event queue is drained.
	PollInterval time.Duration

	// LookAhead is the number of inertial steps since the last correction
	// after which every further prediction is emitted.
	LookAhead int

	// MeterInterval is how often throughput is logged. Zero disables.
	MeterInterval time.Duration
}

func DefaultFusionConfig() *FusionConfig {
	return &FusionConfig{
		EstimatorConfig: DefaultEstimatorConfig(),
		Arbiter:         DefaultArbiterConfig(),
		Clean:           DefaultCleanConfig(),
		Sensor:          DefaultSensorConfig(),
		Rate:            DefaultRate,
		PollInterval:    500 * time.Millisecond,
		LookAhead:       5,
		MeterInterval:   time.Minute,
	}
}

func (c *FusionConfig) Validate() error {
	if !IsValidRate(c.Rate) {
		return fmt.Errorf("invalid rate %d, want one of %v", c.Rate, ValidRates)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval %v", c.PollInterval)
	}
	if c.AccelerationNoise < 0 {
		return fmt.Errorf("invalid acceleration noise %v", c.AccelerationNoise)
	}
	if c.LookAhead < 0 {
		return fmt.Errorf("invalid look-ahead %d", c.LookAhead)
	}
	return nil
}

type SensorConfig struct {
	// SampleRate is the inertial sampling rate, Hz.
	SampleRate float64

	// Declination is the fixed magnetic declination, degrees east of true north.
	Declination float64
}

func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		SampleRate:  10,
		Declination: 0,
	}
}
