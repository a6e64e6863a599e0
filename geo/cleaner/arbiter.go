package cleaner

import (
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"sync"
)

const (
	ReasonFirstFix             = "first fix"
	ReasonSignificantlyNewer   = "significantly newer"
	ReasonSignificantlyOlder   = "significantly older"
	ReasonMoreAccurate         = "more accurate"
	ReasonNewerNotLessAccurate = "newer, not less accurate"
	ReasonNewerSameProvider    = "newer, same provider"
	ReasonRetained             = "retained current best"
)

// IsBetterFix decides whether newFix should replace best.
// The rules are evaluated in order and the first match wins.
func IsBetterFix(newFix sample.Fix, best *sample.Fix, cfg params.ArbiterConfig) (accept bool, reason string) {
	if best == nil {
		return true, ReasonFirstFix
	}

	timeDelta := newFix.Timestamp - best.Timestamp
	staleness := cfg.Staleness.Milliseconds()
	if timeDelta > staleness {
		return true, ReasonSignificantlyNewer
	}
	if timeDelta < -staleness {
		return false, ReasonSignificantlyOlder
	}
	isNewer := timeDelta > 0

	accuracyDelta := newFix.Accuracy - best.Accuracy
	if accuracyDelta < 0 {
		return true, ReasonMoreAccurate
	}
	if isNewer && accuracyDelta <= 0 {
		return true, ReasonNewerNotLessAccurate
	}
	if isNewer && accuracyDelta <= cfg.SignificantAccuracyDelta && newFix.Provider == best.Provider {
		return true, ReasonNewerSameProvider
	}
	return false, ReasonRetained
}

// Arbiter holds the best-known-good fix.
type Arbiter struct {
	mu   sync.Mutex
	cfg  params.ArbiterConfig
	best *sample.Fix
}

func NewArbiter(cfg params.ArbiterConfig) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Offer evaluates f against the current best and adopts it if accepted.
func (a *Arbiter) Offer(f sample.Fix) (accept bool, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	accept, reason = IsBetterFix(f, a.best, a.cfg)
	if accept {
		fix := f
		a.best = &fix
	}
	return accept, reason
}

// Best returns a copy of the current best fix.
func (a *Arbiter) Best() (sample.Fix, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.best == nil {
		return sample.Fix{}, false
	}
	return *a.best, true
}

// SetStaleness changes the staleness threshold, eg. after a rate change.
func (a *Arbiter) SetStaleness(cfg params.ArbiterConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// Reset forgets the best fix.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.best = nil
}
