/*
Package sim provides deterministic simulated sensors: an object driving
circles around a centre point, observed by a noisy GPS and a noisy
accelerometer whose device frame is aligned with east/north/up.
*/
package sim

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/geo/proj"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"math"
	"math/rand"
	"time"
)

// Kinematics is the true state at an instant, in planar meters.
type Kinematics struct {
	Point  orb.Point
	X, Y   float64
	VX, VY float64
	AX, AY float64
}

// Circuit is the true trajectory.
type Circuit struct {
	cfg    params.SimConfig
	cx, cy float64
	omega  float64
	// Epoch is the timestamp (ms) at which the object is at angle zero.
	Epoch int64
}

func NewCircuit(cfg *params.SimConfig, epoch int64) *Circuit {
	if cfg == nil {
		cfg = params.DefaultSimConfig()
	}
	c := &Circuit{cfg: *cfg, Epoch: epoch}
	c.cx, c.cy = proj.ToPlanarMeters(cfg.CenterLat, cfg.CenterLon)
	if cfg.Radius > 0 {
		c.omega = cfg.Speed / cfg.Radius
	}
	return c
}

// Truth returns the true kinematics at ts (ms).
func (c *Circuit) Truth(ts int64) Kinematics {
	t := float64(ts-c.Epoch) / 1000
	theta := c.omega * t
	sin, cos := math.Sincos(theta)
	r := c.cfg.Radius
	k := Kinematics{
		X:  c.cx + r*cos,
		Y:  c.cy + r*sin,
		VX: -r * c.omega * sin,
		VY: r * c.omega * cos,
		AX: -r * c.omega * c.omega * cos,
		AY: -r * c.omega * c.omega * sin,
	}
	k.Point = proj.PlanarToPoint(k.X, k.Y)
	return k
}

// Fix is a noisy GPS observation at ts.
func (c *Circuit) Fix(ts int64, rng *rand.Rand) sample.Fix {
	k := c.Truth(ts)
	sigma := c.cfg.FixAccuracy
	lat, lon := proj.FromPlanarMeters(k.X+sigma*rng.NormFloat64(), k.Y+sigma*rng.NormFloat64())
	return sample.Fix{
		Latitude:  lat,
		Longitude: lon,
		Speed:     math.Hypot(k.VX, k.VY),
		Bearing:   common.NormalizeBearing(common.RadiansToDegrees(math.Atan2(k.VX, k.VY))),
		Accuracy:  sigma,
		Provider:  c.cfg.Provider,
		Timestamp: ts,
	}
}

// Motion is a noisy accelerometer sample at ts with identity orientation.
func (c *Circuit) Motion(ts int64, rng *rand.Rand) sample.Motion {
	k := c.Truth(ts)
	sigma := c.cfg.AccelerationNoise
	return sample.Motion{
		LinearAcceleration: [3]float64{
			k.AX + sigma*rng.NormFloat64(),
			k.AY + sigma*rng.NormFloat64(),
			sigma * rng.NormFloat64(),
		},
		RotationVector:  []float64{0, 0, 0, 1},
		HasAcceleration: true,
		Timestamp:       ts,
	}
}

func (c *Circuit) sampleInterval() time.Duration {
	if c.cfg.SampleRate <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(float64(time.Second) / c.cfg.SampleRate)
}

func (c *Circuit) fixInterval() time.Duration {
	if c.cfg.FixInterval <= 0 {
		return params.FixInterval
	}
	return c.cfg.FixInterval
}

// Generate returns the fixes and motion samples observed over d starting at
// the circuit epoch, each in ascending timestamp order.
// The same config always yields the same samples.
func (c *Circuit) Generate(d time.Duration) ([]sample.Fix, []sample.Motion) {
	fixRng := rand.New(rand.NewSource(c.cfg.Seed))
	motionRng := rand.New(rand.NewSource(c.cfg.Seed + 1))

	var fixes []sample.Fix
	for at := time.Duration(0); at <= d; at += c.fixInterval() {
		fixes = append(fixes, c.Fix(c.Epoch+at.Milliseconds(), fixRng))
	}
	var motions []sample.Motion
	for at := c.sampleInterval(); at <= d; at += c.sampleInterval() {
		motions = append(motions, c.Motion(c.Epoch+at.Milliseconds(), motionRng))
	}
	return fixes, motions
}
