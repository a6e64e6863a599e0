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
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/daemon/webd"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/metrics/influxdb"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/sensors"
	"github.com/rotblauer/catfuse/sim"
	"github.com/rotblauer/catfuse/state"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
	"sync"
	"time"
)

var runFusion = params.DefaultFusionConfig()
var runSim = params.DefaultSimConfig()
var runWeb = params.DefaultWebDaemonConfig()
var runInflux = params.DefaultInfluxConfig()

var optRunDeclinationModel string
var optRunRecord bool
var optRunNoWeb bool
var optRunInfluxInterval time.Duration

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the fusion daemon",
	Long: `Run fuses positioning and inertial samples as they arrive.

Samples come from simulated sensors circling --center-lat/--center-lon.
Outputs are appended to outputs.ndjson.gz in the data directory, the
last estimate is kept in state.db, and the web daemon streams outputs
to websocket clients at /socat.

With --record, every sample is also appended to records.ndjson.gz,
which 'catfuse replay' reads back.

Examples:

  catfuse run --rate 5 --address localhost:3000
  catfuse run --record --influx-url http://localhost:8086 --influx-token $TOKEN
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		if err := runFusion.Validate(); err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, err := state.Open(params.DefaultStateConfig(), false)
		if err != nil {
			log.Fatalln(err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("Failed to close state", "error", err)
			}
		}()
		if last, err := st.Last(); err == nil {
			slog.Info("Last known estimate", "output", last.String())
		}

		circuit := sim.NewCircuit(runSim, time.Now().UnixMilli())
		var inertial sensors.InertialSource = sim.NewInertialSource(circuit)
		var positioning sensors.PositioningSource = sim.NewPositioningSource(circuit)

		if optRunRecord {
			rec, err := st.NewRecorder()
			if err != nil {
				log.Fatalln(err)
			}
			defer func() {
				if err := rec.Close(); err != nil {
					slog.Error("Failed to close recorder", "error", err)
				}
			}()
			inertial = rec.Inertial(inertial)
			positioning = rec.Positioning(positioning)
		}

		scheduler := fusion.New(runFusion, inertial, positioning)
		switch optRunDeclinationModel {
		case "fixed":
		case "dipole":
			decl, err := sensors.NewCachedDeclinator(sensors.DipoleDeclination{}, 1024)
			if err != nil {
				log.Fatalln(err)
			}
			scheduler.SetDeclinator(decl)
		default:
			log.Fatalln("unknown declination model", optRunDeclinationModel)
		}

		writer, err := st.NewOutputWriter()
		if err != nil {
			log.Fatalln(err)
		}

		var exporter *influxdb.Exporter
		exporterQuit := make(chan struct{})
		exporterWG := new(sync.WaitGroup)
		if runInflux.Enabled() {
			exporter = influxdb.NewExporter(runInflux, optRunInfluxInterval)
			exporterWG.Add(1)
			go func() {
				defer exporterWG.Done()
				exporter.Run(exporterQuit, func(err error) {
					slog.Warn("Failed to export outputs", "error", err)
				})
			}()
		}

		outputs := make(chan fusion.Output, params.DefaultBufferSize)
		sub := scheduler.Subscribe(outputs)
		writerWG := new(sync.WaitGroup)
		writerWG.Add(1)
		go func() {
			defer writerWG.Done()
			for {
				select {
				case o := <-outputs:
					if err := writer.Write(o); err != nil {
						slog.Error("Failed to write output", "error", err)
					}
					if exporter != nil {
						exporter.Add(o)
					}
				case <-sub.Err():
					return
				}
			}
		}()

		var web *webd.WebDaemon
		if !optRunNoWeb {
			web, err = webd.NewWebDaemon(runWeb, scheduler)
			if err != nil {
				log.Fatalln(err)
			}
			go func() {
				if err := web.Run(ctx); err != nil {
					slog.Error("Web daemon failed", "error", err)
					cancel()
				}
			}()
		}

		if err := scheduler.Start(ctx); err != nil {
			log.Fatalln(err)
		}

		select {
		case sig := <-common.Interrupted():
			slog.Warn("Received signal", "signal", sig)
		case <-scheduler.Done():
			slog.Warn("Fusion loop exited")
		}

		if err := scheduler.Stop(); err != nil {
			slog.Error("Failed to stop fusion", "error", err)
		}
		cancel()
		if web != nil {
			if err := web.Close(); err != nil {
				slog.Warn("Failed to close web daemon", "error", err)
			}
		}
		sub.Unsubscribe()
		writerWG.Wait()
		if err := writer.Close(); err != nil {
			slog.Error("Failed to close output writer", "error", err)
		}
		close(exporterQuit)
		exporterWG.Wait()
		slog.Info("Run done", "status", scheduler.Status().Counters)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	pFlags := runCmd.PersistentFlags()
	pFlags.IntVar(&runFusion.Rate, "rate", runFusion.Rate, "Emit a correction every N accepted fixes (1, 3, 5 or 10)")
	pFlags.DurationVar(&runFusion.PollInterval, "poll-interval", runFusion.PollInterval, "Event queue drain interval")
	pFlags.IntVar(&runFusion.LookAhead, "look-ahead", runFusion.LookAhead, "Inertial steps after a correction before predictions are emitted")
	pFlags.Float64Var(&runFusion.AccelerationNoise, "acceleration-noise", runFusion.AccelerationNoise, "Process noise, m/s^2")
	pFlags.DurationVar(&runFusion.Arbiter.Staleness, "staleness", 0, "Fix age gap that overrides accuracy (0 derives it from --rate)")
	pFlags.DurationVar(&runFusion.MeterInterval, "meter-interval", runFusion.MeterInterval, "Throughput log interval, 0 to disable")
	pFlags.Float64Var(&runFusion.Sensor.Declination, "declination", runFusion.Sensor.Declination, "Fixed magnetic declination, degrees east")
	pFlags.StringVar(&optRunDeclinationModel, "declination-model", "fixed", "Declination model: fixed or dipole")

	pFlags.Int64Var(&runSim.Seed, "seed", runSim.Seed, "Simulation seed")
	pFlags.Float64Var(&runSim.CenterLat, "center-lat", runSim.CenterLat, "Simulated circuit centre latitude")
	pFlags.Float64Var(&runSim.CenterLon, "center-lon", runSim.CenterLon, "Simulated circuit centre longitude")
	pFlags.Float64Var(&runSim.Radius, "radius", runSim.Radius, "Simulated circuit radius, meters")
	pFlags.Float64Var(&runSim.Speed, "speed", runSim.Speed, "Simulated speed, m/s")
	pFlags.Float64Var(&runSim.FixAccuracy, "fix-accuracy", runSim.FixAccuracy, "Simulated GPS noise, meters")

	pFlags.BoolVar(&optRunRecord, "record", false, "Record samples to records.ndjson.gz")

	pFlags.BoolVar(&optRunNoWeb, "no-web", false, "Do not start the web daemon")
	pFlags.StringVar(&runWeb.Address, "address", runWeb.Address, "HTTP address to listen on")
	pFlags.IntVar(&runWeb.ReplaySize, "replay-size", runWeb.ReplaySize, "Recent outputs sent to new websocket clients")
	pFlags.BoolVar(&runWeb.ShowMeasured, "show-measured", runWeb.ShowMeasured, "Push measured positions to websocket clients")
	pFlags.BoolVar(&runWeb.ShowEstimated, "show-estimated", runWeb.ShowEstimated, "Push estimated positions to websocket clients")

	pFlags.StringVar(&runInflux.URL, "influx-url", "", "InfluxDB URL, empty to disable export")
	pFlags.StringVar(&runInflux.Token, "influx-token", "", "InfluxDB token")
	pFlags.StringVar(&runInflux.Org, "influx-org", runInflux.Org, "InfluxDB organization")
	pFlags.StringVar(&runInflux.Bucket, "influx-bucket", runInflux.Bucket, "InfluxDB bucket")
	pFlags.DurationVar(&optRunInfluxInterval, "influx-interval", 10*time.Second, "InfluxDB export interval")
}
