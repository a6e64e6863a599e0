package replay

import (
	"bytes"
	"context"
	"errors"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/geo/proj"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/sim"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/types/sample"
	"github.com/tidwall/gjson"
	"log/slog"
	"testing"
	"time"
)

func simulated(t *testing.T, d time.Duration) ([]sample.Record, Truth) {
	t.Helper()
	c := sim.NewCircuit(params.DefaultSimConfig(), 1_000_000)
	fixes, motions := c.Generate(d)
	return sample.MergeRecords(fixes, motions), func(ts int64) orb.Point {
		return c.Truth(ts).Point
	}
}

func TestRun_Simulated(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	records, truth := simulated(t, time.Minute)

	res, err := Run(context.Background(), params.DefaultReplayConfig(), records, truth)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fixes != 61 || len(res.Accepted) != 61 {
		t.Errorf("Expected all 61 fixes accepted, but got %d of %d (%v)", len(res.Accepted), res.Fixes, res.Rejected)
	}
	if res.MotionErrors != 0 {
		t.Errorf("Expected no motion errors, but got %d", res.MotionErrors)
	}
	kinds := res.Report.Kinds
	if kinds[fusion.KindInitial] != 1 {
		t.Errorf("Expected one initial output, but got %d", kinds[fusion.KindInitial])
	}
	// 60 corrections at the default rate of 3.
	if kinds[fusion.KindCorrection] != 20 {
		t.Errorf("Expected 20 correction outputs, but got %d", kinds[fusion.KindCorrection])
	}
	// Ten predictions per second between fixes, the last few of each emitted.
	if kinds[fusion.KindLookAhead] < 250 {
		t.Errorf("Expected look-ahead outputs, but got %d", kinds[fusion.KindLookAhead])
	}
	for i := 1; i < len(res.Outputs); i++ {
		if res.Outputs[i].Timestamp < res.Outputs[i-1].Timestamp {
			t.Fatalf("Expected outputs in time order, but %d came after %d",
				res.Outputs[i].Timestamp, res.Outputs[i-1].Timestamp)
		}
	}
	if len(res.Baseline) != 61 {
		t.Errorf("Expected a baseline estimate per accepted fix, but got %d", len(res.Baseline))
	}

	r := res.Report
	if r.FusedError.N == 0 || r.RawError.N != 61 {
		t.Fatalf("Expected truth summaries, but got %+v", r)
	}
	if r.FusedError.Mean >= r.RawError.Mean {
		t.Errorf("Expected fused error below raw error, but got %v vs %v", r.FusedError, r.RawError)
	}
	if r.Innovation.N != 21 {
		t.Errorf("Expected an innovation per measured output, but got %d", r.Innovation.N)
	}
	t.Log("\n" + r.String())
}

func TestRun_Clean(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	c := sim.NewCircuit(params.DefaultSimConfig(), 0)
	fixes, motions := c.Generate(30 * time.Second)
	far := fixes[15]
	pt := proj.Destination(far.Point(), 5000, 45)
	far.Latitude, far.Longitude = pt.Lat(), pt.Lon()
	fixes[15] = far
	records := sample.MergeRecords(fixes, motions)

	cfg := params.DefaultReplayConfig()
	cfg.Clean = true
	res, err := Run(context.Background(), cfg, records, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cleaned < 1 {
		t.Errorf("Expected the teleported fix cleaned, but got %d", res.Cleaned)
	}
	for _, f := range res.Accepted {
		if f.Timestamp == far.Timestamp {
			t.Errorf("Expected %v removed", far)
		}
	}
	if res.Report.FusedError.N != 0 {
		t.Error("Expected no truth summaries without truth")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := params.DefaultReplayConfig()
	cfg.Fusion.Rate = 4
	if _, err := Run(context.Background(), cfg, nil, nil); err == nil {
		t.Error("Expected invalid rate error")
	}
}

func TestRun_Cancelled(t *testing.T) {
	records, _ := simulated(t, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, nil, records, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected %v, but got %v", context.Canceled, err)
	}
	if res == nil || len(res.Outputs) != 0 {
		t.Errorf("Expected empty partial result, but got %v", res)
	}
}

func TestExport(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	records, _ := simulated(t, 5*time.Second)
	res, err := Run(context.Background(), nil, records, nil)
	if err != nil {
		t.Fatal(err)
	}

	buf := new(bytes.Buffer)
	if err := WriteGeoJSON(buf, res); err != nil {
		t.Fatal(err)
	}
	js := buf.Bytes()
	if n := gjson.GetBytes(js, "features.#").Int(); n != int64(2+len(res.Accepted)) {
		t.Errorf("Expected %d features, but got %d", 2+len(res.Accepted), n)
	}
	if name := gjson.GetBytes(js, "features.0.properties.Name").String(); name != "fused" {
		t.Errorf("Expected fused first, but got %q", name)
	}
	if typ := gjson.GetBytes(js, "features.2.geometry.type").String(); typ != "Point" {
		t.Errorf("Expected measured points, but got %q", typ)
	}

	buf.Reset()
	if err := WriteOutputs(buf, res); err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != len(res.Outputs) {
		t.Fatalf("Expected %d lines, but got %d", len(res.Outputs), len(lines))
	}
	if kind := gjson.GetBytes(lines[0], "kind").String(); kind != "initial" {
		t.Errorf("Expected initial first, but got %q", kind)
	}

	// Records survive a write and read back.
	buf.Reset()
	if err := stream.WriteNDJSON(buf, records); err != nil {
		t.Fatal(err)
	}
	back, err := stream.ReadRecords(buf)
	if err != nil || len(back) != len(records) {
		t.Fatalf("Expected %d records back, but got %d (%v)", len(records), len(back), err)
	}
	res2, err := Run(context.Background(), nil, back, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res2.Outputs) != len(res.Outputs) {
		t.Errorf("Expected identical replay, but got %d vs %d outputs", len(res2.Outputs), len(res.Outputs))
	}
}
