package webd

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/params"
	"sync"
	"testing"
)

type fakeController struct {
	mu   sync.Mutex
	rate int
	last *fusion.Output
	feed event.FeedOf[fusion.Output]
}

func (f *fakeController) Status() fusion.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fusion.Status{State: fusion.StateRunning, Rate: f.rate, Last: f.last}
}

func (f *fakeController) Rate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeController) SetRate(rate int) error {
	if !params.IsValidRate(rate) {
		return fusion.ErrInvalidRate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	return nil
}

func (f *fakeController) Subscribe(ch chan<- fusion.Output) event.Subscription {
	return f.feed.Subscribe(ch)
}

// send delivers o to the daemon and waits until it has been taken.
func (f *fakeController) send(o fusion.Output) {
	f.feed.Send(o)
}

func newTestDaemon(t *testing.T) (*WebDaemon, *fakeController) {
	t.Helper()
	ctl := &fakeController{rate: params.DefaultRate}
	d, err := NewWebDaemon(params.DefaultTestWebDaemonConfig(), ctl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, ctl
}

func testOutput(kind fusion.Kind, ts int64) fusion.Output {
	est := orb.Point{-93.25 + float64(ts)*1e-6, 44.98}
	o := fusion.Output{Kind: kind, Estimated: &est, Accuracy: 3, Timestamp: ts}
	if kind != fusion.KindLookAhead {
		meas := orb.Point{-93.25, 44.98 + float64(ts)*1e-6}
		o.Measured = &meas
	}
	return o
}
