package influxdb

import (
	"errors"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/params"
	"sync"
	"time"
)

var ErrDisabled = errors.New("influxdb export disabled")

// OutputPoint converts an output to a line protocol point.
func OutputPoint(measurement string, o fusion.Output) *write.Point {
	p := influxdb2.NewPointWithMeasurement(measurement).
		SetTime(time.UnixMilli(o.Timestamp)).
		AddTag("kind", o.Kind.String()).
		AddField("speed", o.Speed).
		AddField("course", o.Course).
		AddField("accuracy", o.Accuracy)
	if o.Estimated != nil {
		p.AddField("latitude", o.Estimated.Lat()).
			AddField("longitude", o.Estimated.Lon())
	}
	if o.Measured != nil {
		p.AddField("measured_latitude", o.Measured.Lat()).
			AddField("measured_longitude", o.Measured.Lon())
	}
	return p
}

// ExportOutputs posts outputs to an InfluxDB Write API.
// Because it accepts a slice, use batches. The Write API will buffer and flush.
// The last error encountered is returned.
func ExportOutputs(cfg *params.InfluxConfig, outputs []fusion.Output) error {
	if !cfg.Enabled() {
		return ErrDisabled
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	// https://github.com/influxdata/influxdb-client-go?tab=readme-ov-file#reading-async-errors
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, o := range outputs {
		writeAPI.WritePoint(OutputPoint(cfg.Measurement, o))
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// Exporter batches outputs from a live feed and exports them every interval.
type Exporter struct {
	cfg      *params.InfluxConfig
	interval time.Duration

	mu    sync.Mutex
	batch []fusion.Output
}

func NewExporter(cfg *params.InfluxConfig, interval time.Duration) *Exporter {
	return &Exporter{cfg: cfg, interval: interval}
}

func (e *Exporter) Add(o fusion.Output) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batch = append(e.batch, o)
}

// Flush exports and clears the pending batch.
func (e *Exporter) Flush() error {
	e.mu.Lock()
	batch := e.batch
	e.batch = nil
	e.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return ExportOutputs(e.cfg, batch)
}

// Run flushes every interval until quit is closed, then flushes once more.
func (e *Exporter) Run(quit <-chan struct{}, onError func(error)) {
	interval := e.interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			if err := e.Flush(); err != nil && onError != nil {
				onError(err)
			}
			return
		case <-ticker.C:
			if err := e.Flush(); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
