package fusion

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catfuse/common"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// tickMeter periodically logs pipeline throughput.
type tickMeter struct {
	logger   *slog.Logger
	interval time.Duration
	started  time.Time
	label    atomic.Int64 // last event timestamp

	reg      metrics.Registry
	events   metrics.Meter
	predicts metrics.Counter
	corrects metrics.Counter
	emitted  metrics.Meter
	stopOnce sync.Once
	quit     chan struct{}
}

func newTickMeter(logger *slog.Logger, interval time.Duration) *tickMeter {
	reg := metrics.NewRegistry()
	tm := &tickMeter{
		logger:   logger,
		interval: interval,
		started:  time.Now(),
		reg:      reg,
		events:   metrics.NewMeter(),
		predicts: metrics.NewCounter(),
		corrects: metrics.NewCounter(),
		emitted:  metrics.NewMeter(),
		quit:     make(chan struct{}),
	}
	if err := reg.Register("event.meter", tm.events); err != nil {
		panic(err)
	}
	if err := reg.Register("predict.count", tm.predicts); err != nil {
		panic(err)
	}
	if err := reg.Register("correct.count", tm.corrects); err != nil {
		panic(err)
	}
	if err := reg.Register("emit.meter", tm.emitted); err != nil {
		panic(err)
	}
	if interval > 0 {
		go tm.run()
	}
	return tm
}

func (tm *tickMeter) markPredict(ts int64) {
	if tm == nil {
		return
	}
	tm.label.Store(ts)
	tm.events.Mark(1)
	tm.predicts.Inc(1)
}

func (tm *tickMeter) markCorrect(ts int64) {
	if tm == nil {
		return
	}
	tm.label.Store(ts)
	tm.events.Mark(1)
	tm.corrects.Inc(1)
}

func (tm *tickMeter) markEmit() {
	if tm == nil {
		return
	}
	tm.emitted.Mark(1)
}

func (tm *tickMeter) run() {
	ticker := time.NewTicker(tm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-tm.quit:
			return
		case <-ticker.C:
			tm.log()
		}
	}
}

func (tm *tickMeter) log() {
	eventSnap := tm.events.Snapshot()
	emitSnap := tm.emitted.Snapshot()

	tm.logger.Info("Fusion throughput",
		"events", humanize.Comma(eventSnap.Count()),
		"predicts", humanize.Comma(tm.predicts.Snapshot().Count()),
		"corrects", humanize.Comma(tm.corrects.Snapshot().Count()),
		"emitted", humanize.Comma(emitSnap.Count()),
		"event.last", time.UnixMilli(tm.label.Load()).Format(time.TimeOnly),
		"eps", common.DecimalToFixed(eventSnap.Rate1(), 1),
		"ops", common.DecimalToFixed(emitSnap.Rate1(), 1),
		"running", time.Since(tm.started).Round(time.Second))
}

func (tm *tickMeter) stop() {
	if tm == nil {
		return
	}
	tm.stopOnce.Do(func() {
		close(tm.quit)
		tm.events.Stop()
		tm.emitted.Stop()
	})
}
