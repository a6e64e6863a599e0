package fusion

import (
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catfuse/geo/kalman"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	processedCounter = metrics.GetOrRegisterCounter("fusion/processed", nil)
	droppedCounter   = metrics.GetOrRegisterCounter("fusion/dropped", nil)
	failedCounter    = metrics.GetOrRegisterCounter("fusion/failed", nil)
	emittedCounter   = metrics.GetOrRegisterCounter("fusion/emitted", nil)
)

// Counters is a snapshot of the pipeline's bookkeeping.
type Counters struct {
	// Steps is the number of predictions since the last correction.
	Steps int `json:"steps"`
	// Corrections is the number of corrections since the last correction output.
	Corrections int `json:"corrections"`

	Processed uint64 `json:"processed"`
	// Dropped counts inertial events that arrived before initialization.
	Dropped uint64 `json:"dropped"`
	// Failed counts events skipped on numerical failure.
	Failed  uint64 `json:"failed"`
	Emitted uint64 `json:"emitted"`
}

// Pipeline owns an estimator and applies events to it one at a time,
// emitting outputs per the rate and look-ahead policy.
// Process and Drain must be called from a single goroutine;
// every other method is safe for concurrent use.
type Pipeline struct {
	cfg       params.FusionConfig
	estimator *kalman.Estimator
	rate      atomic.Int64
	feed      *event.FeedOf[Output]
	meter     *tickMeter
	logger    *slog.Logger

	mu       sync.Mutex
	counters Counters
	last     *Output
}

// NewPipeline builds a pipeline sending outputs on feed.
// A nil feed gets a private one; use Subscribe to listen.
func NewPipeline(cfg *params.FusionConfig, feed *event.FeedOf[Output]) *Pipeline {
	if cfg == nil {
		cfg = params.DefaultFusionConfig()
	}
	if feed == nil {
		feed = new(event.FeedOf[Output])
	}
	p := &Pipeline{
		cfg:       *cfg,
		estimator: kalman.New(cfg.EstimatorConfig),
		feed:      feed,
		logger:    slog.With("d", "fusion"),
	}
	rate := cfg.Rate
	if !params.IsValidRate(rate) {
		rate = params.DefaultRate
	}
	p.rate.Store(int64(rate))
	return p
}

func (p *Pipeline) Subscribe(ch chan<- Output) event.Subscription {
	return p.feed.Subscribe(ch)
}

// SetRate changes the correction output divisor.
func (p *Pipeline) SetRate(rate int) error {
	if !params.IsValidRate(rate) {
		return ErrInvalidRate
	}
	p.rate.Store(int64(rate))
	return nil
}

func (p *Pipeline) Rate() int {
	return int(p.rate.Load())
}

func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.estimator.Initialized()
}

func (p *Pipeline) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Last returns the most recent output.
func (p *Pipeline) Last() (Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Output{}, false
	}
	return *p.last, true
}

// State returns the current estimate.
func (p *Pipeline) State() kalman.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.estimator.State()
}

// Process applies one event and returns the output it produced, if any.
// Outputs are also sent on the feed, which blocks until every subscriber
// has received.
// A numerical failure is logged and skipped and is the only error returned.
func (p *Pipeline) Process(ev sample.Event) (*Output, error) {
	out, err := p.apply(ev)
	if err != nil {
		failedCounter.Inc(1)
		p.logger.Warn("Skipped event", "event", ev, "error", err)
		return nil, err
	}
	if out != nil {
		emittedCounter.Inc(1)
		p.meter.markEmit()
		p.feed.Send(*out)
	}
	return out, nil
}

func (p *Pipeline) apply(ev sample.Event) (*Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counters.Processed++
	processedCounter.Inc(1)

	var out *Output

	switch e := ev.(type) {
	case sample.Positioning:
		if !p.estimator.Initialized() {
			if err := p.estimator.Initialize(e); err != nil {
				p.counters.Failed++
				return nil, err
			}
			p.counters.Steps = 0
			p.counters.Corrections = 0
			o := newEstimateOutput(KindInitial, p.estimator.State(), p.estimator.PositionAccuracy())
			// The first fix is the estimate.
			pt := e.Point()
			o.Estimated = &pt
			o = withMeasured(o, e)
			out = &o
			p.logger.Info("Estimator initialized", "fix", e)
			break
		}
		p.estimator.UpdateMeasurementNoise(e)
		st, err := p.estimator.Correct(e)
		if err != nil {
			p.counters.Failed++
			return nil, err
		}
		p.meter.markCorrect(e.Time)
		p.counters.Steps = 0
		p.counters.Corrections++
		if p.counters.Corrections >= int(p.rate.Load()) {
			p.counters.Corrections = 0
			o := withMeasured(newEstimateOutput(KindCorrection, st, p.estimator.PositionAccuracy()), e)
			out = &o
		}

	case sample.Inertial:
		if !p.estimator.Initialized() {
			p.counters.Dropped++
			droppedCounter.Inc(1)
			return nil, nil
		}
		st, err := p.estimator.Predict(e)
		if err != nil {
			p.counters.Failed++
			return nil, err
		}
		p.meter.markPredict(e.Time)
		p.counters.Steps++
		if p.counters.Steps > p.cfg.LookAhead {
			o := newEstimateOutput(KindLookAhead, st, p.estimator.PositionAccuracy())
			out = &o
		}

	default:
		return nil, errors.New("unknown event type")
	}

	if out != nil {
		p.counters.Emitted++
		last := *out
		p.last = &last
	}
	return out, nil
}

// Drain processes queued events lowest timestamp first until the queue is
// empty or running reports false. It returns the number of events processed.
func (p *Pipeline) Drain(q *sample.Queue, running func() bool) int {
	n := 0
	for running == nil || running() {
		ev, ok := q.Pop()
		if !ok {
			break
		}
		_, _ = p.Process(ev)
		n++
	}
	return n
}
