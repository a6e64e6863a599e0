package stream

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catfuse/common"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type tickScanMeter struct {
	label      atomic.Int64 // last record timestamp
	interval   time.Duration
	started    time.Time
	nn         atomic.Uint64
	reg        metrics.Registry
	size       metrics.Counter
	countMeter metrics.Meter
	sizeMeter  metrics.Meter
	quit       chan struct{}
	stopOnce   sync.Once
}

func newTickScanMeter(interval time.Duration) *tickScanMeter {
	reg := metrics.NewRegistry()
	rl := &tickScanMeter{
		reg:        reg,
		interval:   interval,
		started:    time.Now(),
		size:       metrics.NewCounter(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
		quit:       make(chan struct{}),
	}
	if err := reg.Register("size.count", rl.size); err != nil {
		panic(err)
	}
	if err := reg.Register("line.meter", rl.countMeter); err != nil {
		panic(err)
	}
	if err := reg.Register("size.meter", rl.sizeMeter); err != nil {
		panic(err)
	}
	go rl.run()
	return rl
}

func (rl *tickScanMeter) mark(label int64, data []byte) {
	rl.label.Store(label)
	rl.nn.Add(1)
	rl.size.Inc(int64(len(data)))
	rl.countMeter.Mark(1)
	rl.sizeMeter.Mark(int64(len(data)))
}

func (rl *tickScanMeter) run() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.quit:
			return
		case <-ticker.C:
			rl.log()
		}
	}
}

func (rl *tickScanMeter) log() {
	countSnap := rl.countMeter.Snapshot()
	sizeSnap := rl.sizeMeter.Snapshot()

	slog.Info("Read records", "n", humanize.Comma(countSnap.Count()),
		"read.last", time.UnixMilli(rl.label.Load()).Format(time.DateTime),
		"rps", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(rl.started).Round(time.Second))
}

func (rl *tickScanMeter) stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() {
		close(rl.quit)
		rl.countMeter.Stop()
		rl.sizeMeter.Stop()
	})
}
