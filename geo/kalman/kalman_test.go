package kalman

import (
	"errors"
	"github.com/rotblauer/catfuse/geo/proj"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"math"
	"math/rand"
	"testing"
)

func fixAt(x, y, noise float64, ts int64) sample.Positioning {
	lat, lon := proj.FromPlanarMeters(x, y)
	return sample.Positioning{
		Latitude:      lat,
		Longitude:     lon,
		PositionNoise: noise,
		Provider:      "gps",
		Time:          ts,
	}
}

func TestEstimator_NotInitialized(t *testing.T) {
	e := New(params.DefaultEstimatorConfig())
	if _, err := e.Predict(sample.Inertial{Time: 1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected %v, but got %v", ErrNotInitialized, err)
	}
	if _, err := e.Correct(sample.Positioning{Time: 1}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected %v, but got %v", ErrNotInitialized, err)
	}
	if e.Covariance() != nil {
		t.Error("Expected nil covariance")
	}
}

func TestEstimator_Initialize(t *testing.T) {
	e := New(params.DefaultEstimatorConfig())
	first := fixAt(1000, 2000, 5, 10_000)
	first.Speed = 10
	first.Course = 90 // due east
	if err := e.Initialize(first); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(first); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Expected %v, but got %v", ErrAlreadyInitialized, err)
	}
	s := e.State()
	if math.Abs(s.X-1000) > 1e-3 || math.Abs(s.Y-2000) > 1e-3 {
		t.Errorf("Expected 1000,2000, but got %f,%f", s.X, s.Y)
	}
	if math.Abs(s.VX-10) > 1e-9 || math.Abs(s.VY) > 1e-9 {
		t.Errorf("Expected velocity 10,0, but got %f,%f", s.VX, s.VY)
	}
	if math.Abs(s.Course-90) > 1e-9 {
		t.Errorf("Expected course 90, but got %f", s.Course)
	}
	cov := e.Covariance()
	for i := 0; i < 4; i++ {
		if cov[i*4+i] != 25 {
			t.Errorf("Expected P[%d][%d]=25, but got %f", i, i, cov[i*4+i])
		}
	}
}

func TestEstimator_InitializeFloorsNoise(t *testing.T) {
	cfg := params.DefaultEstimatorConfig()
	e := New(cfg)
	if err := e.Initialize(fixAt(0, 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	want := cfg.MinPositionNoise * cfg.MinPositionNoise
	if got := e.Covariance()[0]; math.Abs(got-want) > 1e-15 {
		t.Errorf("Expected %v, but got %v", want, got)
	}
}

func TestEstimator_PredictKinematics(t *testing.T) {
	e := New(params.EstimatorConfig{AccelerationNoise: 0.1, MinPositionNoise: 0.1})
	if err := e.Initialize(fixAt(0, 0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	// 2 seconds at 1 m/s^2 east: x = a*t^2/2 = 2, vx = 2.
	s, err := e.Predict(sample.Inertial{EastAcceleration: 1, Time: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.X-2) > 1e-9 || math.Abs(s.VX-2) > 1e-9 {
		t.Errorf("Expected x=2 vx=2, but got x=%f vx=%f", s.X, s.VX)
	}
	if s.Y != 0 || s.VY != 0 {
		t.Errorf("Expected no north motion, but got y=%f vy=%f", s.Y, s.VY)
	}
	if s.Timestamp != 2000 {
		t.Errorf("Expected timestamp 2000, but got %d", s.Timestamp)
	}

	// Out-of-order sample is applied with dt=0: no movement, watermark kept.
	before := e.State()
	s, err = e.Predict(sample.Inertial{EastAcceleration: 100, Time: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if s.X != before.X || s.VX != before.VX {
		t.Errorf("Expected unchanged state, but got %+v", s)
	}
	if e.watermark != 2000 {
		t.Errorf("Expected watermark 2000, but got %d", e.watermark)
	}
	if s.Timestamp != 2000 {
		t.Errorf("Expected timestamp to stay at 2000, but got %d", s.Timestamp)
	}
}

func TestEstimator_CovarianceNotReset(t *testing.T) {
	e := New(params.DefaultEstimatorConfig())
	if err := e.Initialize(fixAt(0, 0, 10, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Correct(fixAt(1, 1, 10, 0)); err != nil {
		t.Fatal(err)
	}
	afterCorrect := e.Covariance()[0]
	if afterCorrect >= 100 {
		t.Fatalf("Expected correction to shrink P, but got %f", afterCorrect)
	}
	if _, err := e.Predict(sample.Inertial{Time: 100}); err != nil {
		t.Fatal(err)
	}
	// A short predict grows P slightly but never resets it to the initial value.
	if got := e.Covariance()[0]; got >= 100 || got < afterCorrect {
		t.Errorf("Expected P in [%f, 100), but got %f", afterCorrect, got)
	}
}

// TestEstimator_Converges drives the estimator with a simulated constant
// acceleration trajectory and noisy fixes, and checks the estimate error is
// well below the measurement error.
func TestEstimator_Converges(t *testing.T) {
	const (
		steps    = 60
		dtMillis = 100
		sigma    = 10.0
		accNoise = 0.2
	)
	rng := rand.New(rand.NewSource(1))
	cfg := params.EstimatorConfig{AccelerationNoise: accNoise, MinPositionNoise: 0.1}
	e := New(cfg)

	// Truth.
	x, y, vx, vy := 500.0, -300.0, 2.0, 1.0
	ax, ay := 0.1, 0.05

	first := fixAt(x+sigma*rng.NormFloat64(), y+sigma*rng.NormFloat64(), sigma, 0)
	first.Speed = math.Hypot(vx, vy)
	first.Course = math.Atan2(vx, vy) * 180 / math.Pi
	if err := e.Initialize(first); err != nil {
		t.Fatal(err)
	}

	var estSq, measSq float64
	var n int
	dt := float64(dtMillis) / 1000
	for i := 1; i <= steps; i++ {
		ts := int64(i * dtMillis)
		pn := accNoise * rng.NormFloat64()
		x += vx*dt + ax*dt*dt/2 + pn*dt*dt/2
		y += vy*dt + ay*dt*dt/2 + pn*dt*dt/2
		vx += ax*dt + pn*dt
		vy += ay*dt + pn*dt

		if _, err := e.Predict(sample.Inertial{EastAcceleration: ax, NorthAcceleration: ay, PositionNoise: sigma, Time: ts}); err != nil {
			t.Fatal(err)
		}
		zx, zy := x+sigma*rng.NormFloat64(), y+sigma*rng.NormFloat64()
		fix := fixAt(zx, zy, sigma, ts)
		e.UpdateMeasurementNoise(fix)
		s, err := e.Correct(fix)
		if err != nil {
			t.Fatal(err)
		}
		if i > steps/2 {
			estSq += (s.X-x)*(s.X-x) + (s.Y-y)*(s.Y-y)
			measSq += (zx-x)*(zx-x) + (zy-y)*(zy-y)
			n++
		}
	}
	estVar := estSq / float64(2*n)
	measVar := measSq / float64(2*n)
	t.Log("estimate variance", estVar, "measurement variance", measVar)
	if estVar >= sigma*sigma {
		t.Errorf("Expected estimate variance < %v, but got %v", sigma*sigma, estVar)
	}
	if estVar >= measVar {
		t.Errorf("Expected estimate variance below measurement variance %v, but got %v", measVar, estVar)
	}
}

// TestEstimator_ConvergesStationary feeds noisy fixes of a fixed position and
// checks the settled estimate error is below the measurement noise.
func TestEstimator_ConvergesStationary(t *testing.T) {
	const (
		steps    = 60
		dtMillis = 1000
		sigma    = 10.0
	)
	rng := rand.New(rand.NewSource(7))
	e := New(params.DefaultEstimatorConfig())
	x, y := -120.0, 40.0

	if err := e.Initialize(fixAt(x+sigma*rng.NormFloat64(), y+sigma*rng.NormFloat64(), sigma, 0)); err != nil {
		t.Fatal(err)
	}
	var estSq float64
	var n int
	for i := 1; i <= steps; i++ {
		ts := int64(i * dtMillis)
		if _, err := e.Predict(sample.Inertial{PositionNoise: sigma, Time: ts}); err != nil {
			t.Fatal(err)
		}
		fix := fixAt(x+sigma*rng.NormFloat64(), y+sigma*rng.NormFloat64(), sigma, ts)
		e.UpdateMeasurementNoise(fix)
		s, err := e.Correct(fix)
		if err != nil {
			t.Fatal(err)
		}
		if i > steps/2 {
			estSq += (s.X-x)*(s.X-x) + (s.Y-y)*(s.Y-y)
			n++
		}
	}
	estVar := estSq / float64(2*n)
	t.Log("estimate variance", estVar)
	if estVar >= sigma*sigma {
		t.Errorf("Expected estimate variance < %v, but got %v", sigma*sigma, estVar)
	}
}

func TestEstimator_NumericalFailureKeepsState(t *testing.T) {
	e := New(params.DefaultEstimatorConfig())
	if err := e.Initialize(fixAt(10, 10, 5, 0)); err != nil {
		t.Fatal(err)
	}
	before := e.State()
	beforeCov := e.Covariance()

	bad := fixAt(10, 10, 5, 100)
	bad.Latitude = math.NaN()
	if _, err := e.Correct(bad); !errors.Is(err, ErrNumerical) {
		t.Errorf("Expected %v, but got %v", ErrNumerical, err)
	}
	if _, err := e.Predict(sample.Inertial{EastAcceleration: math.Inf(1), Time: 200}); !errors.Is(err, ErrNumerical) {
		t.Errorf("Expected %v, but got %v", ErrNumerical, err)
	}
	after := e.State()
	if after != before {
		t.Errorf("Expected %+v, but got %+v", before, after)
	}
	for i, v := range e.Covariance() {
		if v != beforeCov[i] {
			t.Fatalf("Expected covariance unchanged at %d: %v vs %v", i, beforeCov[i], v)
		}
	}
	if e.watermark != 0 {
		t.Errorf("Expected watermark 0, but got %d", e.watermark)
	}

	// The estimator keeps working after a failed step.
	if _, err := e.Predict(sample.Inertial{Time: 300}); err != nil {
		t.Errorf("Expected recovery, but got %v", err)
	}
}
