package sensors

import (
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catfuse/geo/cleaner"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
)

var (
	fixesAccepted = metrics.GetOrRegisterCounter("sensors/fix/accepted", nil)
	fixesInsane   = metrics.GetOrRegisterCounter("sensors/fix/insane", nil)
	fixesDupe     = metrics.GetOrRegisterCounter("sensors/fix/dupe", nil)
	fixesRejected = metrics.GetOrRegisterCounter("sensors/fix/rejected", nil)
)

const ReasonDuplicate = "duplicate"

// Positioning gates fixes and pushes the accepted ones as sample.Positioning events.
// An accepted fix also updates the paired Inertial front-end's declination
// and carried position noise.
type Positioning struct {
	cfg        *params.TrackCleaningConfig
	arbiter    *cleaner.Arbiter
	dedupe     func(sample.Fix) bool
	declinator Declinator
	inertial   *Inertial
	sink       Sink
	logger     *slog.Logger
}

// NewPositioning wires a front-end. inertial and declinator may be nil.
func NewPositioning(cfg *params.TrackCleaningConfig, arbiter *cleaner.Arbiter,
	declinator Declinator, inertial *Inertial, sink Sink) *Positioning {
	if cfg == nil {
		cfg = params.DefaultCleanConfig()
	}
	return &Positioning{
		cfg:        cfg,
		arbiter:    arbiter,
		dedupe:     cleaner.NewDedupeLRUFunc(cfg.DedupeCacheSize),
		declinator: declinator,
		inertial:   inertial,
		sink:       sink,
		logger:     slog.With("d", "positioning"),
	}
}

// HandleFix runs the fix through the sanity filters, dedupe and arbiter.
func (p *Positioning) HandleFix(f sample.Fix) (accepted bool, reason string) {
	if ok, why := cleaner.Sane(f, p.cfg); !ok {
		fixesInsane.Inc(1)
		p.logger.Debug("Dropped fix", "reason", why, "fix", f.Positioning())
		return false, why
	}
	if !p.dedupe(f) {
		fixesDupe.Inc(1)
		return false, ReasonDuplicate
	}
	accepted, reason = p.arbiter.Offer(f)
	if !accepted {
		fixesRejected.Inc(1)
		p.logger.Debug("Rejected fix", "reason", reason, "fix", f.Positioning())
		return false, reason
	}

	if p.inertial != nil {
		if p.declinator != nil {
			p.inertial.SetDeclination(p.declinator.Declination(f))
		}
		p.inertial.SetPositionNoise(f.Accuracy)
	}
	p.sink.Push(f.Positioning())
	fixesAccepted.Inc(1)
	return true, reason
}
