package baseline

import (
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catfuse/types/sample"
	"testing"
)

func TestFilter(t *testing.T) {
	first := sample.Fix{Latitude: 46.9292804, Longitude: -114.0877518, Accuracy: 5, Provider: "gps", Timestamp: 1000}
	f, err := New(first, 1, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	pt, _ := f.Estimate()
	if pt != first.Point() {
		t.Errorf("Expected %v, but got %v", first.Point(), pt)
	}

	// Same timestamp is ignored.
	if err := f.Observe(first); err != nil {
		t.Fatal(err)
	}
	if f.Observed() != 0 {
		t.Errorf("Expected 0 observed, but got %d", f.Observed())
	}

	for i := 1; i <= 20; i++ {
		fix := first
		fix.Timestamp = first.Timestamp + int64(i*1000)
		// Small alternating jitter around the true point.
		if i%2 == 0 {
			fix.Latitude += 0.00002
		} else {
			fix.Latitude -= 0.00002
		}
		if err := f.Observe(fix); err != nil {
			t.Fatal(err)
		}
	}
	if f.Observed() != 20 {
		t.Errorf("Expected 20 observed, but got %d", f.Observed())
	}
	pt, _ = f.Estimate()
	if d := geo.Distance(pt, first.Point()); d > 25 {
		t.Errorf("Expected estimate near the stationary point, but got %v (%.1fm)", pt, d)
	}
}
