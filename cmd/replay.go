/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/catdb/flat"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/replay"
	"github.com/rotblauer/catfuse/sim"
	"github.com/rotblauer/catfuse/state"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/types/sample"
	"github.com/spf13/cobra"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"
)

var replayCfg = params.DefaultReplayConfig()
var replaySim = params.DefaultSimConfig()

var optReplaySince string
var optReplayUntil string
var optReplaySimTruth bool
var optReplaySimEpoch int64

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [records.ndjson[.gz]]",
	Short: "Replay a recorded sensor log",
	Long: `Replay runs a sensor log through the fusion pipeline on log time and
reports how the estimates compare to the raw fixes and to a GPS-only
Kalman smoother.

With no argument, the log recorded by 'catfuse run --record' in the data
directory is used. Use - for stdin. Files ending in .gz are decompressed.

Flags:

  --since, --until  Only replay records in this window (RFC3339).
  --sim-truth       The log was made by 'catfuse sim' with the same circuit
                    flags and --epoch; report errors against the true path.
  --geojson         Write measured, fused and baseline tracks as GeoJSON.
  --ndjson          Write the outputs as JSON lines.

Examples:

  catfuse sim --duration 10m > circuit.ndjson
  catfuse replay circuit.ndjson --sim-truth --rate 5 --geojson circuit.geojson
  catfuse replay --since 2024-11-20T08:00:00Z --clean
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		ctx, stop := common.InterruptContext(context.Background())
		defer stop()

		records, err := readReplayRecords(args)
		if err != nil {
			log.Fatalln(err)
		}
		records, err = windowRecords(ctx, records, optReplaySince, optReplayUntil)
		if err != nil {
			log.Fatalln(err)
		}
		slog.Info("Replaying", "records", len(records))

		var truth replay.Truth
		if optReplaySimTruth {
			c := sim.NewCircuit(replaySim, optReplaySimEpoch)
			truth = func(ts int64) orb.Point { return c.Truth(ts).Point }
		}

		res, err := replay.Run(ctx, replayCfg, records, truth)
		if err != nil {
			log.Fatalln(err)
		}

		if replayCfg.GeoJSONOut != "" {
			if err := writeFile(replayCfg.GeoJSONOut, func(w io.Writer) error {
				return replay.WriteGeoJSON(w, res)
			}); err != nil {
				log.Fatalln(err)
			}
		}
		if replayCfg.NDJSONOut != "" {
			if err := writeFile(replayCfg.NDJSONOut, func(w io.Writer) error {
				return replay.WriteOutputs(w, res)
			}); err != nil {
				log.Fatalln(err)
			}
		}
		fmt.Println(res.Report.String())
	},
}

func readReplayRecords(args []string) ([]sample.Record, error) {
	if len(args) == 0 {
		st, err := state.Open(params.DefaultStateConfig(), true)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.ReadRecords()
	}
	name := args[0]
	if name == "-" {
		return stream.ReadRecords(os.Stdin)
	}
	if strings.HasSuffix(name, ".gz") {
		gzr, err := flat.NewFlatGZReader(name)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		r, err := gzr.Reader()
		if err != nil {
			return nil, err
		}
		return stream.ReadRecords(r)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return stream.ReadRecords(f)
}

// windowRecords keeps the records timestamped within [since, until].
// Empty bounds are open.
func windowRecords(ctx context.Context, records []sample.Record, since, until string) ([]sample.Record, error) {
	if since == "" && until == "" {
		return records, nil
	}
	lo, hi := int64(0), int64(math.MaxInt64)
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("since: %w", err)
		}
		lo = t.UnixMilli()
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, fmt.Errorf("until: %w", err)
		}
		hi = t.UnixMilli()
	}
	in := stream.Filter(ctx, func(r sample.Record) bool {
		ts := r.Timestamp()
		return ts >= lo && ts <= hi
	}, stream.Slice(ctx, records))
	return stream.Collect(ctx, in), nil
}

func writeFile(name string, write func(w io.Writer) error) error {
	if name == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(replayCmd)

	pFlags := replayCmd.PersistentFlags()
	pFlags.IntVar(&replayCfg.Fusion.Rate, "rate", replayCfg.Fusion.Rate, "Emit a correction every N accepted fixes (1, 3, 5 or 10)")
	pFlags.DurationVar(&replayCfg.Fusion.PollInterval, "poll-interval", replayCfg.Fusion.PollInterval, "Event queue drain interval, on log time")
	pFlags.IntVar(&replayCfg.Fusion.LookAhead, "look-ahead", replayCfg.Fusion.LookAhead, "Inertial steps after a correction before predictions are emitted")
	pFlags.Float64Var(&replayCfg.Fusion.AccelerationNoise, "acceleration-noise", replayCfg.Fusion.AccelerationNoise, "Process noise, m/s^2")
	pFlags.DurationVar(&replayCfg.Fusion.Arbiter.Staleness, "staleness", 0, "Fix age gap that overrides accuracy (0 derives it from --rate)")
	pFlags.Float64Var(&replayCfg.Fusion.Sensor.Declination, "declination", replayCfg.Fusion.Sensor.Declination, "Fixed magnetic declination, degrees east")

	pFlags.BoolVar(&replayCfg.Clean, "clean", false, "Drop teleporting and urban canyon fixes before replay")
	pFlags.BoolVar(&replayCfg.Baseline, "baseline", replayCfg.Baseline, "Also run a GPS-only Kalman smoother")
	pFlags.StringVar(&replayCfg.GeoJSONOut, "geojson", "", "Write tracks as GeoJSON to this file (- for stdout)")
	pFlags.StringVar(&replayCfg.NDJSONOut, "ndjson", "", "Write outputs as JSON lines to this file (- for stdout)")

	pFlags.StringVar(&optReplaySince, "since", "", "Only replay records at or after this time (RFC3339)")
	pFlags.StringVar(&optReplayUntil, "until", "", "Only replay records at or before this time (RFC3339)")

	pFlags.BoolVar(&optReplaySimTruth, "sim-truth", false, "Report errors against the simulated circuit")
	addCircuitFlags(pFlags, replaySim, &optReplaySimEpoch)
}
