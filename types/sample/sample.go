/*
Package sample defines the timestamped sensor events consumed by the estimator,
and the raw payloads delivered by the sensor collaborators that they are built from.

Timestamps are milliseconds on a single monotonic clock shared by every producer.
*/
package sample

import (
	"fmt"
	"github.com/paulmach/orb"
	"time"
)

// Event is either an Inertial or a Positioning value.
// The interface is sealed; switch on the concrete type.
type Event interface {
	Timestamp() int64
	isEvent()
}

// Inertial is a world-frame acceleration sample.
type Inertial struct {
	// EastAcceleration and NorthAcceleration are in m/s^2, already rotated into
	// the local fixed frame and corrected for magnetic declination.
	EastAcceleration  float64 `json:"east_acceleration"`
	NorthAcceleration float64 `json:"north_acceleration"`

	// PositionNoise is the accuracy radius of the most recently accepted fix.
	PositionNoise float64 `json:"position_noise"`

	Time int64 `json:"timestamp"`
}

func (i Inertial) Timestamp() int64 { return i.Time }
func (Inertial) isEvent()           {}

func (i Inertial) String() string {
	return fmt.Sprintf("inertial@%d e=%.3f n=%.3f", i.Time, i.EastAcceleration, i.NorthAcceleration)
}

// Positioning is an accepted GPS fix, ready to correct the estimator.
type Positioning struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	// Speed is in m/s.
	Speed float64 `json:"speed"`
	// Course is in degrees clockwise from true north.
	Course float64 `json:"course"`
	// PositionNoise is the 1-sigma accuracy radius in meters.
	PositionNoise float64 `json:"position_noise"`
	Provider      string  `json:"provider,omitempty"`

	Time int64 `json:"timestamp"`
}

func (p Positioning) Timestamp() int64 { return p.Time }
func (Positioning) isEvent()           {}

func (p Positioning) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

func (p Positioning) String() string {
	return fmt.Sprintf("positioning@%d %.7f,%.7f acc=%.1f", p.Time, p.Latitude, p.Longitude, p.PositionNoise)
}

// Fix is the payload of a positioning collaborator callback.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	// Bearing is in degrees clockwise from true north.
	Bearing float64 `json:"bearing"`
	// Accuracy is the 1-sigma horizontal accuracy radius in meters.
	Accuracy float64 `json:"accuracy"`
	Provider string  `json:"provider"`
	// Timestamp is monotonic milliseconds.
	Timestamp int64 `json:"timestamp"`
}

func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// Time returns the fix timestamp as a time.Time on the monotonic epoch.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Positioning converts an accepted fix into an estimator event.
func (f Fix) Positioning() Positioning {
	return Positioning{
		Latitude:      f.Latitude,
		Longitude:     f.Longitude,
		Altitude:      f.Altitude,
		Speed:         f.Speed,
		Course:        f.Bearing,
		PositionNoise: f.Accuracy,
		Provider:      f.Provider,
		Time:          f.Timestamp,
	}
}

// Motion is the payload of an inertial collaborator callback.
type Motion struct {
	// LinearAcceleration is in the device frame, gravity removed, m/s^2.
	LinearAcceleration [3]float64 `json:"linear_acceleration"`

	// RotationVector is the device attitude as the vector part of a unit quaternion
	// (x*sin(θ/2), y*sin(θ/2), z*sin(θ/2)), optionally followed by the scalar part cos(θ/2).
	// A nil vector means this sample carries acceleration only.
	RotationVector []float64 `json:"rotation_vector,omitempty"`

	// HasAcceleration is false for rotation-only samples.
	HasAcceleration bool `json:"has_acceleration"`

	Timestamp int64 `json:"timestamp"`
}
