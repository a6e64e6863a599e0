/*
Package fusion merges inertial and positioning events in timestamp order and
drives the Kalman estimator with them.

Samplers push events into a shared queue from their own goroutines. A single
drain goroutine wakes every poll interval, pops events lowest timestamp first
and applies them: inertial events predict, positioning events correct.
Outputs are sent on an event feed: one per Rate corrections, every prediction
after LookAhead predictions without a correction, and one for the fix that
initializes the estimator.

Stop is relaxed: an event pushed while Stop runs may be dropped.
*/
package fusion

import (
	"context"
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/catfuse/geo/cleaner"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/sensors"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSamplerUnavailable = errors.New("sampler unavailable")
	ErrAlreadyRunning     = errors.New("already running")
	ErrInvalidRate        = fmt.Errorf("invalid rate, want one of %v", params.ValidRates)
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State       State     `json:"state"`
	Rate        int       `json:"rate"`
	Queued      int       `json:"queued"`
	Initialized bool      `json:"initialized"`
	Counters    Counters  `json:"counters"`
	Last        *Output   `json:"last,omitempty"`
	Started     time.Time `json:"started"`
}

// run is one Start..Stop lifetime.
type run struct {
	running  atomic.Bool
	queue    *sample.Queue
	pipeline *Pipeline
	meter    *tickMeter
	quit     chan struct{}
	done     chan struct{}
	started  time.Time
}

// Since returns how long the current run has been going, or zero.
func (st Status) Since() time.Duration {
	if st.State != StateRunning || st.Started.IsZero() {
		return 0
	}
	return time.Since(st.Started)
}

type Scheduler struct {
	cfg         params.FusionConfig
	inertialSrc sensors.InertialSource
	fixSrc      sensors.PositioningSource
	declinator  sensors.Declinator

	mu      sync.Mutex
	state   State
	rate    int
	current *run
	arbiter *cleaner.Arbiter

	feed   event.FeedOf[Output]
	logger *slog.Logger
}

func New(cfg *params.FusionConfig, inertial sensors.InertialSource, positioning sensors.PositioningSource) *Scheduler {
	if cfg == nil {
		cfg = params.DefaultFusionConfig()
	}
	rate := cfg.Rate
	if !params.IsValidRate(rate) {
		rate = params.DefaultRate
	}
	return &Scheduler{
		cfg:         *cfg,
		inertialSrc: inertial,
		fixSrc:      positioning,
		declinator:  sensors.FixedDeclination(cfg.Sensor.Declination),
		rate:        rate,
		logger:      slog.With("d", "fusion"),
	}
}

// SetDeclinator replaces the fixed declination from config.
// It takes effect on the next Start.
func (s *Scheduler) SetDeclinator(d sensors.Declinator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declinator = d
}

// Subscribe registers ch for outputs. Sends block until every subscriber
// has received, so ch should be buffered and drained promptly.
// Subscriptions survive Stop and Start.
func (s *Scheduler) Subscribe(ch chan<- Output) event.Subscription {
	return s.feed.Subscribe(ch)
}

// Start checks both samplers, builds a fresh estimator, arbiter and queue,
// registers the samplers and launches the drain loop.
// The loop stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyRunning
	}
	if s.inertialSrc == nil || s.fixSrc == nil {
		return fmt.Errorf("%w: missing source", ErrSamplerUnavailable)
	}
	if err := s.inertialSrc.Available(); err != nil {
		return fmt.Errorf("%w: inertial: %w", ErrSamplerUnavailable, err)
	}
	if err := s.fixSrc.Available(); err != nil {
		return fmt.Errorf("%w: positioning: %w", ErrSamplerUnavailable, err)
	}

	cfg := s.cfg
	cfg.Rate = s.rate
	// Each run starts without a best fix.
	if s.arbiter == nil {
		s.arbiter = cleaner.NewArbiter(cfg.Arbiter.ForRate(s.rate))
	} else {
		s.arbiter.Reset()
		s.arbiter.SetStaleness(cfg.Arbiter.ForRate(s.rate))
	}

	r := &run{
		queue:    sample.NewQueue(),
		pipeline: NewPipeline(&cfg, &s.feed),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	inertial := sensors.NewInertial(r.queue)
	positioning := sensors.NewPositioning(cfg.Clean, s.arbiter, s.declinator, inertial, r.queue)

	if err := s.inertialSrc.Register(func(m sample.Motion) {
		if !r.running.Load() {
			return
		}
		_ = inertial.HandleMotion(m)
	}); err != nil {
		return fmt.Errorf("%w: inertial: %w", ErrSamplerUnavailable, err)
	}
	if err := s.fixSrc.Register(func(f sample.Fix) {
		if !r.running.Load() {
			return
		}
		positioning.HandleFix(f)
	}); err != nil {
		s.inertialSrc.Unregister()
		return fmt.Errorf("%w: positioning: %w", ErrSamplerUnavailable, err)
	}

	if cfg.MeterInterval > 0 {
		r.meter = newTickMeter(s.logger, cfg.MeterInterval)
		r.pipeline.meter = r.meter
	}

	r.running.Store(true)
	s.current = r
	s.state = StateRunning
	go s.loop(ctx, r)

	s.logger.Info("Fusion started", "rate", s.rate, "poll", cfg.PollInterval, "lookahead", cfg.LookAhead)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, r *run) {
	defer close(r.done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stop(r)
			return
		case <-r.quit:
			return
		case <-ticker.C:
		}
		if !r.running.Load() {
			return
		}
		r.pipeline.Drain(r.queue, r.running.Load)
	}
}

// Stop halts the drain loop and unregisters both samplers.
// It is idempotent and a no-op on a scheduler that never started.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	s.stop(r)
	return nil
}

func (s *Scheduler) stop(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != r || s.state != StateRunning {
		return
	}
	// Flag first so the loop bails between events, then detach the samplers,
	// then drop whatever they left behind.
	r.running.Store(false)
	s.inertialSrc.Unregister()
	s.fixSrc.Unregister()
	r.queue.Clear()
	r.meter.stop()
	close(r.quit)
	s.state = StateStopped
	s.logger.Info("Fusion stopped", "counters", r.pipeline.Counters())
}

// Done is closed when the current run's drain loop has exited.
// It is nil before the first Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.done
}

// SetRate changes the output rate divisor, and the arbiter staleness when
// that is derived from the rate.
func (s *Scheduler) SetRate(rate int) error {
	if !params.IsValidRate(rate) {
		return ErrInvalidRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	if s.current != nil {
		_ = s.current.pipeline.SetRate(rate)
	}
	if s.arbiter != nil {
		s.arbiter.SetStaleness(s.cfg.Arbiter.ForRate(rate))
	}
	return nil
}

func (s *Scheduler) Rate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State: s.state,
		Rate:  s.rate,
	}
	if r := s.current; r != nil {
		st.Queued = r.queue.Len()
		st.Initialized = r.pipeline.Initialized()
		st.Counters = r.pipeline.Counters()
		st.Started = r.started
		if last, ok := r.pipeline.Last(); ok {
			st.Last = &last
		}
	}
	return st
}
