/*
Package kalman is a linear Kalman filter over a constant-acceleration-input
planar motion model.

The state is [x, y, vx, vy]: planar meters east and north of the (0°,0°)
origin (see geo/proj) and their velocities in m/s. Inertial samples drive the
prediction as a control input u = [east, north] acceleration; positioning
fixes correct the position components.

An Estimator is not safe for concurrent use. It is meant to be owned by a
single goroutine.
*/
package kalman

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/geo/proj"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"gonum.org/v1/gonum/mat"
	"math"
)

var (
	ErrNotInitialized     = errors.New("estimator not initialized")
	ErrAlreadyInitialized = errors.New("estimator already initialized")

	// ErrNumerical is returned when a step would produce a singular innovation
	// covariance or a non-finite state. The step is discarded.
	ErrNumerical = errors.New("numerical failure")
)

const (
	stateDim   = 4
	measureDim = 2
	controlDim = 2
)

// State is a snapshot of the estimate.
type State struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	// Point is the estimated position as [lon, lat].
	Point orb.Point `json:"point"`
	// Speed is |v| in m/s.
	Speed float64 `json:"speed"`
	// Course is the direction of travel, degrees clockwise from north in [0, 360).
	Course float64 `json:"course"`

	Timestamp int64 `json:"timestamp"`
}

type Estimator struct {
	cfg params.EstimatorConfig

	x *mat.VecDense
	p *mat.Dense
	h *mat.Dense
	r *mat.Dense

	// watermark is the timestamp of the last prediction, ms.
	watermark int64
	// stamp is the timestamp of the last applied event, ms.
	stamp int64

	initialized bool
}

func New(cfg params.EstimatorConfig) *Estimator {
	h := mat.NewDense(measureDim, stateDim, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	return &Estimator{
		cfg: cfg,
		h:   h,
	}
}

func (e *Estimator) Initialized() bool {
	return e.initialized
}

func (e *Estimator) noise(n float64) float64 {
	// Catches NaN too.
	if !(n >= e.cfg.MinPositionNoise) {
		return e.cfg.MinPositionNoise
	}
	return n
}

// Initialize seeds the state from the first accepted fix.
func (e *Estimator) Initialize(first sample.Positioning) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if !common.IsFinite(first.Latitude, first.Longitude) {
		return fmt.Errorf("%w: non-finite initial fix %v", ErrNumerical, first)
	}
	x, y := proj.ToPlanarMeters(first.Latitude, first.Longitude)

	vx, vy := 0.0, 0.0
	if common.IsFinite(first.Speed, first.Course) && first.Speed > 0 {
		course := common.DegreesToRadians(first.Course)
		vx = first.Speed * math.Sin(course)
		vy = first.Speed * math.Cos(course)
	}
	e.x = mat.NewVecDense(stateDim, []float64{x, y, vx, vy})

	n := e.noise(first.PositionNoise)
	e.p = scaledIdentity(stateDim, n*n)
	e.r = scaledIdentity(measureDim, n*n)

	e.watermark = first.Time
	e.stamp = first.Time
	e.initialized = true
	return nil
}

func scaledIdentity(n int, v float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, v)
	}
	return m
}

func transition(dt float64) *mat.Dense {
	return mat.NewDense(stateDim, stateDim, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func control(dt float64) *mat.Dense {
	dt2 := dt * dt / 2
	return mat.NewDense(stateDim, controlDim, []float64{
		dt2, 0,
		0, dt2,
		dt, 0,
		0, dt,
	})
}

func processNoise(dt, sigma float64) *mat.Dense {
	dt4 := math.Pow(dt, 4) / 4
	dt3 := math.Pow(dt, 3) / 2
	dt2 := dt * dt
	q := mat.NewDense(stateDim, stateDim, []float64{
		dt4, 0, dt3, 0,
		0, dt4, 0, dt3,
		dt3, 0, dt2, 0,
		0, dt3, 0, dt2,
	})
	q.Scale(sigma*sigma, q)
	return q
}

// Predict advances the state to the inertial sample's timestamp using its
// acceleration as control input. Samples older than the last prediction
// are applied with dt = 0.
func (e *Estimator) Predict(ev sample.Inertial) (State, error) {
	if !e.initialized {
		return State{}, ErrNotInitialized
	}
	dt := float64(ev.Time-e.watermark) / 1000.0
	if dt < 0 {
		dt = 0
	}
	a := transition(dt)
	b := control(dt)
	q := processNoise(dt, e.cfg.AccelerationNoise)
	u := mat.NewVecDense(controlDim, []float64{ev.EastAcceleration, ev.NorthAcceleration})

	var ax, bu mat.VecDense
	ax.MulVec(a, e.x)
	bu.MulVec(b, u)
	xPred := mat.NewVecDense(stateDim, nil)
	xPred.AddVec(&ax, &bu)

	var ap mat.Dense
	ap.Mul(a, e.p)
	pPred := mat.NewDense(stateDim, stateDim, nil)
	pPred.Mul(&ap, a.T())
	pPred.Add(pPred, q)

	if !finiteVec(xPred) || !finiteDense(pPred) {
		return e.State(), fmt.Errorf("%w: predict produced non-finite state (dt=%v u=%v,%v)",
			ErrNumerical, dt, ev.EastAcceleration, ev.NorthAcceleration)
	}

	e.x = xPred
	e.p = pPred
	if ev.Time > e.watermark {
		e.watermark = ev.Time
	}
	e.advance(ev.Time)
	return e.State(), nil
}

// UpdateMeasurementNoise rebuilds R from the fix's accuracy radius.
func (e *Estimator) UpdateMeasurementNoise(ev sample.Positioning) {
	n := e.noise(ev.PositionNoise)
	e.r = scaledIdentity(measureDim, n*n)
}

// Correct folds a positioning fix into the state.
func (e *Estimator) Correct(ev sample.Positioning) (State, error) {
	if !e.initialized {
		return State{}, ErrNotInitialized
	}
	zx, zy := proj.ToPlanarMeters(ev.Latitude, ev.Longitude)
	z := mat.NewVecDense(measureDim, []float64{zx, zy})

	// Innovation y = z - Hx.
	var hx, innov mat.VecDense
	hx.MulVec(e.h, e.x)
	innov.SubVec(z, &hx)

	// S = HPHᵀ + R.
	var hp, s mat.Dense
	hp.Mul(e.h, e.p)
	s.Mul(&hp, e.h.T())
	s.Add(&s, e.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return e.State(), fmt.Errorf("%w: innovation covariance: %v", ErrNumerical, err)
	}

	// K = PHᵀS⁻¹.
	var pht, k mat.Dense
	pht.Mul(e.p, e.h.T())
	k.Mul(&pht, &sInv)

	var kInnov mat.VecDense
	kInnov.MulVec(&k, &innov)
	xNew := mat.NewVecDense(stateDim, nil)
	xNew.AddVec(e.x, &kInnov)

	// P = (I - KH)P.
	var kh mat.Dense
	kh.Mul(&k, e.h)
	ikh := scaledIdentity(stateDim, 1)
	ikh.Sub(ikh, &kh)
	pNew := mat.NewDense(stateDim, stateDim, nil)
	pNew.Mul(ikh, e.p)

	if !finiteVec(xNew) || !finiteDense(pNew) {
		return e.State(), fmt.Errorf("%w: correct produced non-finite state (fix %v)", ErrNumerical, ev)
	}

	e.x = xNew
	e.p = pNew
	e.advance(ev.Time)
	return e.State(), nil
}

// advance moves the reported timestamp forward only.
func (e *Estimator) advance(ts int64) {
	if ts > e.stamp {
		e.stamp = ts
	}
}

// State returns the current estimate. It is the zero State before Initialize.
func (e *Estimator) State() State {
	if !e.initialized {
		return State{}
	}
	x, y := e.x.AtVec(0), e.x.AtVec(1)
	vx, vy := e.x.AtVec(2), e.x.AtVec(3)
	course := 0.0
	if vx != 0 || vy != 0 {
		course = common.NormalizeBearing(common.RadiansToDegrees(math.Atan2(vx, vy)))
	}
	return State{
		X:         x,
		Y:         y,
		VX:        vx,
		VY:        vy,
		Point:     proj.PlanarToPoint(x, y),
		Speed:     math.Hypot(vx, vy),
		Course:    course,
		Timestamp: e.stamp,
	}
}

// Covariance returns a row-major copy of P.
func (e *Estimator) Covariance() []float64 {
	if !e.initialized {
		return nil
	}
	out := make([]float64, 0, stateDim*stateDim)
	for i := 0; i < stateDim; i++ {
		out = append(out, e.p.RawRowView(i)...)
	}
	return out
}

// PositionAccuracy is the 1-sigma horizontal radius implied by P, meters.
func (e *Estimator) PositionAccuracy() float64 {
	if !e.initialized {
		return 0
	}
	return math.Sqrt((e.p.At(0, 0) + e.p.At(1, 1)) / 2)
}

func finiteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if !common.IsFinite(v.AtVec(i)) {
			return false
		}
	}
	return true
}

func finiteDense(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		if !common.IsFinite(m.RawRowView(i)[:c]...) {
			return false
		}
	}
	return true
}
