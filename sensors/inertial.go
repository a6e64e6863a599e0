package sensors

import (
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/types/sample"
	"gonum.org/v1/gonum/num/quat"
	"log/slog"
	"sync"
)

var (
	inertialEmitted    = metrics.GetOrRegisterCounter("sensors/inertial/emitted", nil)
	inertialDegenerate = metrics.GetOrRegisterCounter("sensors/inertial/degenerate", nil)
	inertialUnoriented = metrics.GetOrRegisterCounter("sensors/inertial/unoriented", nil)
)

// Inertial turns motion samples into world-frame sample.Inertial events.
// It is safe for concurrent use.
type Inertial struct {
	mu          sync.Mutex
	sink        Sink
	orientation *quat.Number
	// declination in radians.
	declination   float64
	positionNoise float64
	logger        *slog.Logger
}

func NewInertial(sink Sink) *Inertial {
	return &Inertial{
		sink:   sink,
		logger: slog.With("d", "inertial"),
	}
}

// HandleMotion updates the orientation from the sample's rotation vector, if any,
// then emits the sample's acceleration, if any, rotated into the world frame.
// Degenerate rotations and accelerations before any orientation are dropped
// and reported as errors; neither stops the stream.
func (in *Inertial) HandleMotion(m sample.Motion) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if m.RotationVector != nil {
		q, err := OrientationFromVector(m.RotationVector)
		if err != nil {
			inertialDegenerate.Inc(1)
			in.logger.Debug("Dropped rotation", "error", err, "timestamp", m.Timestamp)
			return err
		}
		in.orientation = &q
	}
	if !m.HasAcceleration {
		return nil
	}
	if in.orientation == nil {
		inertialUnoriented.Inc(1)
		return ErrNoOrientation
	}
	if !common.IsFinite(m.LinearAcceleration[:]...) {
		inertialDegenerate.Inc(1)
		return ErrDegenerateRotation
	}

	world := ToWorld(*in.orientation, m.LinearAcceleration)
	east, north := CorrectDeclination(world[0], world[1], in.declination)
	in.sink.Push(sample.Inertial{
		EastAcceleration:  east,
		NorthAcceleration: north,
		PositionNoise:     in.positionNoise,
		Time:              m.Timestamp,
	})
	inertialEmitted.Inc(1)
	return nil
}

// SetDeclination sets the magnetic declination, degrees east of true north.
func (in *Inertial) SetDeclination(degrees float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.declination = common.DegreesToRadians(degrees)
}

// SetPositionNoise sets the accuracy radius carried on emitted events.
func (in *Inertial) SetPositionNoise(n float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.positionNoise = n
}
