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
	"bufio"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/sim"
	"github.com/rotblauer/catfuse/types/sample"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"log"
	"log/slog"
	"os"
	"time"
)

var simCfg = params.DefaultSimConfig()
var optSimEpoch int64
var optSimDuration time.Duration

// simCmd represents the sim command
var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Write a simulated sensor log to stdout",
	Long: `Sim drives the simulated circuit on simulated time and writes its
fixes and motion samples as JSON lines, in timestamp order.

The log can be replayed with 'catfuse replay --sim-truth' using the same
circuit flags and --epoch.

Examples:

  catfuse sim --duration 10m --fix-accuracy 15 | gzip > circuit.ndjson.gz
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		c := sim.NewCircuit(simCfg, optSimEpoch)
		fixes, motions := c.Generate(optSimDuration)
		records := sample.MergeRecords(fixes, motions)

		w := bufio.NewWriter(os.Stdout)
		if err := stream.WriteNDJSON(w, records); err != nil {
			log.Fatalln(err)
		}
		if err := w.Flush(); err != nil {
			log.Fatalln(err)
		}
		slog.Info("Simulated", "fixes", len(fixes), "motions", len(motions), "duration", optSimDuration)
	},
}

// addCircuitFlags registers the flags describing a simulated circuit.
func addCircuitFlags(flags *pflag.FlagSet, cfg *params.SimConfig, epoch *int64) {
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Simulation seed")
	flags.Int64Var(epoch, "epoch", 1_700_000_000_000, "Simulation start, unix milliseconds")
	flags.Float64Var(&cfg.CenterLat, "center-lat", cfg.CenterLat, "Circuit centre latitude")
	flags.Float64Var(&cfg.CenterLon, "center-lon", cfg.CenterLon, "Circuit centre longitude")
	flags.Float64Var(&cfg.Radius, "radius", cfg.Radius, "Circuit radius, meters")
	flags.Float64Var(&cfg.Speed, "speed", cfg.Speed, "Speed, m/s")
	flags.Float64Var(&cfg.FixAccuracy, "fix-accuracy", cfg.FixAccuracy, "GPS noise, meters")
	flags.Float64Var(&cfg.AccelerationNoise, "sim-acceleration-noise", cfg.AccelerationNoise, "Accelerometer noise, m/s^2")
}

func init() {
	rootCmd.AddCommand(simCmd)

	pFlags := simCmd.PersistentFlags()
	addCircuitFlags(pFlags, simCfg, &optSimEpoch)
	pFlags.DurationVar(&optSimDuration, "duration", 5*time.Minute, "Simulated duration")
}
