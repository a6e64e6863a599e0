package sim

import (
	"errors"
	"github.com/rotblauer/catfuse/types/sample"
	"math/rand"
	"sync"
	"time"
)

var ErrAlreadyRegistered = errors.New("handler already registered")

// pump ticks a callback from its own goroutine until stopped.
type pump struct {
	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}
}

func (p *pump) start(interval time.Duration, tick func(now time.Time)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quit != nil {
		return ErrAlreadyRegistered
	}
	quit, done := make(chan struct{}), make(chan struct{})
	p.quit, p.done = quit, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case now := <-ticker.C:
				tick(now)
			}
		}
	}()
	return nil
}

func (p *pump) stop() {
	p.mu.Lock()
	quit, done := p.quit, p.done
	p.quit, p.done = nil, nil
	p.mu.Unlock()
	if quit == nil {
		return
	}
	close(quit)
	<-done
}

// InertialSource emits motion samples along a Circuit at the sample rate,
// timestamped with the wall clock.
type InertialSource struct {
	circuit *Circuit
	rng     *rand.Rand
	pump    pump

	// Err, when set, is reported by Available.
	Err error
}

func NewInertialSource(c *Circuit) *InertialSource {
	return &InertialSource{
		circuit: c,
		rng:     rand.New(rand.NewSource(c.cfg.Seed + 1)),
	}
}

func (s *InertialSource) Available() error { return s.Err }

func (s *InertialSource) Register(handler func(sample.Motion)) error {
	return s.pump.start(s.circuit.sampleInterval(), func(now time.Time) {
		handler(s.circuit.Motion(now.UnixMilli(), s.rng))
	})
}

func (s *InertialSource) Unregister() { s.pump.stop() }

// PositioningSource emits noisy fixes along a Circuit at the fix interval,
// timestamped with the wall clock.
type PositioningSource struct {
	circuit *Circuit
	rng     *rand.Rand
	pump    pump

	// Err, when set, is reported by Available.
	Err error
}

func NewPositioningSource(c *Circuit) *PositioningSource {
	return &PositioningSource{
		circuit: c,
		rng:     rand.New(rand.NewSource(c.cfg.Seed)),
	}
}

func (s *PositioningSource) Available() error { return s.Err }

func (s *PositioningSource) Register(handler func(sample.Fix)) error {
	return s.pump.start(s.circuit.fixInterval(), func(now time.Time) {
		handler(s.circuit.Fix(now.UnixMilli(), s.rng))
	})
}

func (s *PositioningSource) Unregister() { s.pump.stop() }
