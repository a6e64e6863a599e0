package cleaner

import (
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"sync"
	"testing"
	"time"
)

func testArbiterConfig() params.ArbiterConfig {
	return params.ArbiterConfig{
		Staleness:                6 * time.Second,
		SignificantAccuracyDelta: 200,
	}
}

func TestIsBetterFix(t *testing.T) {
	cfg := testArbiterConfig()
	best := &sample.Fix{Accuracy: 10, Provider: "gps", Timestamp: 100_000}

	cases := []struct {
		name   string
		fix    sample.Fix
		best   *sample.Fix
		accept bool
		reason string
	}{
		{"no best", sample.Fix{Accuracy: 500}, nil, true, ReasonFirstFix},
		// Much newer wins even though it is much less accurate.
		{"stale best", sample.Fix{Accuracy: 1000, Provider: "network", Timestamp: 106_001}, best, true, ReasonSignificantlyNewer},
		// At exactly the staleness boundary the rule does not fire.
		{"boundary newer", sample.Fix{Accuracy: 1000, Provider: "network", Timestamp: 106_000}, best, false, ReasonRetained},
		// Much older loses even though it is more accurate.
		{"stale new", sample.Fix{Accuracy: 1, Provider: "gps", Timestamp: 93_999}, best, false, ReasonSignificantlyOlder},
		{"boundary older", sample.Fix{Accuracy: 1, Provider: "gps", Timestamp: 94_000}, best, true, ReasonMoreAccurate},
		// Older but more accurate is still accepted.
		{"older more accurate", sample.Fix{Accuracy: 5, Provider: "gps", Timestamp: 99_000}, best, true, ReasonMoreAccurate},
		{"newer same accuracy", sample.Fix{Accuracy: 10, Provider: "network", Timestamp: 101_000}, best, true, ReasonNewerNotLessAccurate},
		{"same time same accuracy", sample.Fix{Accuracy: 10, Provider: "gps", Timestamp: 100_000}, best, false, ReasonRetained},
		{"newer worse same provider", sample.Fix{Accuracy: 210, Provider: "gps", Timestamp: 101_000}, best, true, ReasonNewerSameProvider},
		{"newer worse other provider", sample.Fix{Accuracy: 50, Provider: "network", Timestamp: 101_000}, best, false, ReasonRetained},
		{"newer much worse same provider", sample.Fix{Accuracy: 210.1, Provider: "gps", Timestamp: 101_000}, best, false, ReasonRetained},
		{"older worse", sample.Fix{Accuracy: 20, Provider: "gps", Timestamp: 99_000}, best, false, ReasonRetained},
	}
	for _, c := range cases {
		accept, reason := IsBetterFix(c.fix, c.best, cfg)
		if accept != c.accept || reason != c.reason {
			t.Errorf("%s: Expected %v %q, but got %v %q", c.name, c.accept, c.reason, accept, reason)
		}
	}
}

func TestIsBetterFix_StalenessDerivedFromRate(t *testing.T) {
	cfg := params.DefaultArbiterConfig().ForRate(params.DefaultRate)
	if cfg.Staleness != 6*time.Second {
		t.Errorf("Expected 6s, but got %v", cfg.Staleness)
	}
	// Set explicitly, the rate does not override it.
	if got := (params.ArbiterConfig{Staleness: time.Minute}).ForRate(1).Staleness; got != time.Minute {
		t.Errorf("Expected 1m, but got %v", got)
	}
	cfg = params.DefaultArbiterConfig().ForRate(10)
	best := &sample.Fix{Accuracy: 1, Provider: "gps", Timestamp: 0}
	// 10s newer is no longer "significantly" newer at rate 10.
	accept, reason := IsBetterFix(sample.Fix{Accuracy: 500, Provider: "network", Timestamp: 10_000}, best, cfg)
	if accept || reason != ReasonRetained {
		t.Errorf("Expected rejected, but got %v %q", accept, reason)
	}
}

func TestArbiter_Offer(t *testing.T) {
	a := NewArbiter(testArbiterConfig())
	if _, ok := a.Best(); ok {
		t.Fatal("Expected no best fix")
	}
	first := sample.Fix{Latitude: 1, Accuracy: 20, Provider: "gps", Timestamp: 1000}
	if ok, _ := a.Offer(first); !ok {
		t.Fatal("Expected first fix to be accepted")
	}
	worse := sample.Fix{Latitude: 2, Accuracy: 30, Provider: "network", Timestamp: 1500}
	if ok, _ := a.Offer(worse); ok {
		t.Error("Expected worse fix from another provider to be rejected")
	}
	best, _ := a.Best()
	if best != first {
		t.Errorf("Expected %v, but got %v", first, best)
	}

	// The returned fix is a copy.
	best.Latitude = 99
	if again, _ := a.Best(); again.Latitude != 1 {
		t.Errorf("Expected 1, but got %v", again.Latitude)
	}

	a.Reset()
	if _, ok := a.Best(); ok {
		t.Error("Expected no best fix after reset")
	}
}

func TestArbiter_Concurrent(t *testing.T) {
	a := NewArbiter(testArbiterConfig())
	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Offer(sample.Fix{Accuracy: float64(j%10 + 1), Provider: "gps", Timestamp: int64(i*1000 + j)})
				a.Best()
			}
		}(i)
	}
	wg.Wait()
	if _, ok := a.Best(); !ok {
		t.Error("Expected a best fix")
	}
}
