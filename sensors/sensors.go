/*
Package sensors adapts raw collaborator callbacks into estimator events.

An InertialSource delivers device-frame motion samples; the Inertial front-end
rotates them into the local east/north frame and corrects for magnetic
declination. A PositioningSource delivers GPS fixes; the Positioning
front-end sanity-checks, dedupes and arbitrates them. Both push the resulting
sample.Event values into a Sink, normally a sample.Queue.
*/
package sensors

import (
	"errors"
	"github.com/rotblauer/catfuse/types/sample"
)

var (
	// ErrUnavailable is returned (wrapped) by sources that cannot deliver samples.
	ErrUnavailable = errors.New("sensor unavailable")

	// ErrDegenerateRotation is returned for rotation vectors that do not
	// describe a rotation. The sample is dropped and the previous orientation kept.
	ErrDegenerateRotation = errors.New("degenerate rotation vector")

	// ErrNoOrientation is returned for accelerations that arrive before any
	// orientation is known. The sample is dropped.
	ErrNoOrientation = errors.New("no orientation yet")
)

// InertialSource is an external motion sensor.
type InertialSource interface {
	// Available reports nil if the source can deliver samples.
	Available() error
	Register(handler func(sample.Motion)) error
	Unregister()
}

// PositioningSource is an external positioning provider.
type PositioningSource interface {
	Available() error
	Register(handler func(sample.Fix)) error
	Unregister()
}

// Sink receives events built by the front-ends.
type Sink interface {
	Push(ev sample.Event)
}
