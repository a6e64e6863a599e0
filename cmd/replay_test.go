package cmd

import (
	"context"
	"github.com/rotblauer/catfuse/catdb/flat"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/sim"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/types/sample"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadReplayRecords(t *testing.T) {
	c := sim.NewCircuit(params.DefaultSimConfig(), 1_700_000_000_000)
	fixes, motions := c.Generate(10 * time.Second)
	records := sample.MergeRecords(fixes, motions)

	dir := t.TempDir()
	plain := filepath.Join(dir, "circuit.ndjson")
	if err := writeFile(plain, func(w io.Writer) error {
		return stream.WriteNDJSON(w, records)
	}); err != nil {
		t.Fatal(err)
	}

	gz, err := flat.NewFlatGZWriter(filepath.Join(dir, "circuit.ndjson.gz"), flat.DefaultGZFileWriterConfig())
	if err != nil {
		t.Fatal(err)
	}
	gzw, err := gz.Writer()
	if err != nil {
		t.Fatal(err)
	}
	if err := stream.WriteNDJSON(gzw, records); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{plain, gz.Path()} {
		got, err := readReplayRecords([]string{name})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(records) {
			t.Errorf("%s: Expected %d records, but got %d", filepath.Base(name), len(records), len(got))
		}
	}

	if _, err := readReplayRecords([]string{filepath.Join(dir, "missing.ndjson")}); !os.IsNotExist(err) {
		t.Errorf("Expected not exist error, but got %v", err)
	}
}

func TestWindowRecords(t *testing.T) {
	epoch := time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)
	var records []sample.Record
	for i := 0; i < 10; i++ {
		ts := epoch.Add(time.Duration(i) * time.Minute).UnixMilli()
		records = append(records, sample.FixRecord(sample.Fix{Accuracy: 5, Timestamp: ts}))
	}
	ctx := context.Background()

	got, err := windowRecords(ctx, records, "2024-11-20T08:02:00Z", "2024-11-20T08:05:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("Expected 4 records in window, but got %d", len(got))
	}
	if got[0].Timestamp() != epoch.Add(2*time.Minute).UnixMilli() {
		t.Errorf("Unexpected first record %d", got[0].Timestamp())
	}

	got, err = windowRecords(ctx, records, "", "")
	if err != nil || len(got) != len(records) {
		t.Errorf("Expected all records, but got %d (%v)", len(got), err)
	}

	if _, err := windowRecords(ctx, records, "yesterday", ""); err == nil {
		t.Error("Expected error for bad time")
	}
}
