package sensors

import (
	"fmt"
	"github.com/rotblauer/catfuse/common"
	"gonum.org/v1/gonum/num/quat"
	"math"
)

// minQuatNorm is the smallest quaternion norm treated as a rotation.
const minQuatNorm = 1e-6

// OrientationFromVector builds a unit quaternion from a rotation vector
// (x·sin(θ/2), y·sin(θ/2), z·sin(θ/2)[, cos(θ/2)]).
// When the scalar part is absent it is derived, clamped at zero.
func OrientationFromVector(v []float64) (quat.Number, error) {
	if len(v) < 3 {
		return quat.Number{}, fmt.Errorf("%w: %d components", ErrDegenerateRotation, len(v))
	}
	if !common.IsFinite(v...) {
		return quat.Number{}, fmt.Errorf("%w: non-finite %v", ErrDegenerateRotation, v)
	}
	x, y, z := v[0], v[1], v[2]
	var w float64
	if len(v) >= 4 {
		w = v[3]
	} else {
		w = math.Sqrt(math.Max(0, 1-x*x-y*y-z*z))
	}
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	n := quat.Abs(q)
	if n < minQuatNorm {
		return quat.Number{}, fmt.Errorf("%w: zero length %v", ErrDegenerateRotation, v)
	}
	return quat.Scale(1/n, q), nil
}

// ToWorld rotates a device-frame vector into the world frame (east, north, up)
// by the unit quaternion q.
func ToWorld(q quat.Number, v [3]float64) [3]float64 {
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return [3]float64{r.Imag, r.Jmag, r.Kmag}
}

// CorrectDeclination rotates magnetic east/north components to true east/north.
// declination is in radians, positive east.
func CorrectDeclination(east, north, declination float64) (float64, float64) {
	c, s := math.Cos(declination), math.Sin(declination)
	return east*c - north*s, north*c + east*s
}
