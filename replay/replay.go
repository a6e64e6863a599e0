/*
Package replay runs a recorded sensor log through the same front-ends and
pipeline the live scheduler uses, synchronously and on log time.

Records are handled in log order. The queue is drained whenever log time
crosses a poll boundary, so events are reordered within a poll window the
way the live drain loop would reorder them.
*/
package replay

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/geo/baseline"
	"github.com/rotblauer/catfuse/geo/cleaner"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/sensors"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
)

// Truth gives the true position at a timestamp, when known.
type Truth func(ts int64) orb.Point

type BaselineEstimate struct {
	Point     orb.Point `json:"point"`
	Timestamp int64     `json:"timestamp"`
}

type Result struct {
	Outputs  []fusion.Output    `json:"-"`
	Accepted []sample.Fix       `json:"-"`
	Baseline []BaselineEstimate `json:"-"`

	Records int `json:"records"`
	Fixes   int `json:"fixes"`
	// Cleaned is the number of fixes removed before replay.
	Cleaned int `json:"cleaned"`
	// Rejected counts fixes the front-end refused, by reason.
	Rejected     map[string]int  `json:"rejected"`
	MotionErrors int             `json:"motion_errors"`
	Counters     fusion.Counters `json:"counters"`
	Report       Report          `json:"report"`
}

// Run replays records and reports on the outputs.
// Cancelling ctx stops the replay and returns what was produced so far.
func Run(ctx context.Context, cfg *params.ReplayConfig, records []sample.Record, truth Truth) (*Result, error) {
	if cfg == nil {
		cfg = params.DefaultReplayConfig()
	}
	fcfg := cfg.Fusion
	if fcfg == nil {
		fcfg = params.DefaultFusionConfig()
	}
	if err := fcfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.With("d", "replay")

	res := &Result{Rejected: map[string]int{}}
	if cfg.Clean {
		fixes, motions := sample.SplitRecords(records)
		kept := cleanFixes(ctx, fcfg.Clean, fixes)
		res.Cleaned = len(fixes) - len(kept)
		records = sample.MergeRecords(kept, motions)
		logger.Info("Cleaned fixes", "in", len(fixes), "out", len(kept))
	}
	res.Records = len(records)

	q := sample.NewQueue()
	pipeline := fusion.NewPipeline(fcfg, nil)
	inertial := sensors.NewInertial(q)
	positioning := sensors.NewPositioning(fcfg.Clean, cleaner.NewArbiter(fcfg.Arbiter.ForRate(pipeline.Rate())),
		sensors.FixedDeclination(fcfg.Sensor.Declination), inertial, q)

	drain := func() {
		for _, ev := range q.DrainOrdered() {
			out, err := pipeline.Process(ev)
			if err != nil || out == nil {
				continue
			}
			res.Outputs = append(res.Outputs, *out)
		}
	}

	var bl *baseline.Filter
	useBaseline := cfg.Baseline
	observe := func(f sample.Fix) {
		if !useBaseline {
			return
		}
		if bl == nil {
			var err error
			bl, err = baseline.New(f, cfg.BaselineSpeed, cfg.BaselineAcceleration)
			if err != nil {
				logger.Error("Baseline disabled", "error", err)
				useBaseline = false
				return
			}
		} else if err := bl.Observe(f); err != nil {
			return
		}
		pt, _ := bl.Estimate()
		res.Baseline = append(res.Baseline, BaselineEstimate{Point: pt, Timestamp: f.Timestamp})
	}

	poll := fcfg.PollInterval.Milliseconds()
	if poll <= 0 {
		poll = 1
	}
	var nextDrain int64
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			res.Counters = pipeline.Counters()
			return res, err
		}
		ts := rec.Timestamp()
		if i == 0 {
			nextDrain = ts + poll
		}
		if ts >= nextDrain {
			drain()
			nextDrain += ((ts-nextDrain)/poll + 1) * poll
		}

		switch {
		case rec.Fix != nil:
			res.Fixes++
			accepted, reason := positioning.HandleFix(*rec.Fix)
			if !accepted {
				res.Rejected[reason]++
				continue
			}
			res.Accepted = append(res.Accepted, *rec.Fix)
			observe(*rec.Fix)
		case rec.Motion != nil:
			if err := inertial.HandleMotion(*rec.Motion); err != nil {
				res.MotionErrors++
			}
		default:
			return res, fmt.Errorf("record %d: %w", i, rec.Validate())
		}
	}
	drain()

	res.Counters = pipeline.Counters()
	res.Report = NewReport(res, truth)
	logger.Info("Replay done", "records", res.Records, "outputs", len(res.Outputs),
		"accepted", len(res.Accepted), "rejected", res.Rejected)
	return res, nil
}

func cleanFixes(ctx context.Context, cfg *params.TrackCleaningConfig, fixes []sample.Fix) []sample.Fix {
	if cfg == nil {
		cfg = params.DefaultCleanConfig()
	}
	wang := &cleaner.WangUrbanCanyonFilter{Config: cfg}
	return stream.Collect(ctx,
		wang.Filter(ctx,
			cleaner.TeleportationFilter(ctx, cfg,
				stream.Slice(ctx, fixes))))
}
