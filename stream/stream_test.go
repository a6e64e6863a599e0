package stream

import (
	"bytes"
	"context"
	"errors"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
	"slices"
	"strings"
	"testing"
)

func divideByTwo(n int) int {
	return n / 2
}

func isNonZero(n int) bool {
	return n != 0
}

func TestStream1(t *testing.T) {
	data := []int{0, 2, 4, 6, 8}
	ctx := context.Background()
	result := Collect(ctx,
		Transform(ctx, divideByTwo,
			Filter(ctx, isNonZero,
				Slice(ctx, data))))

	if !slices.Equal([]int{1, 2, 3, 4}, result) {
		t.Errorf("Expected [1, 2, 3, 4], got %v", result)
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Must not block even though nothing is collected.
	_ = Collect(ctx, Filter(context.Background(), isNonZero, Slice(context.Background(), []int{1, 2, 3})))
}

func TestRecordsRoundTrip(t *testing.T) {
	fixes := []sample.Fix{
		{Latitude: 1, Longitude: 2, Accuracy: 5, Provider: "gps", Timestamp: 1000},
		{Latitude: 1.1, Longitude: 2.1, Accuracy: 6, Provider: "gps", Timestamp: 2000},
	}
	motions := []sample.Motion{
		{RotationVector: []float64{0, 0, 0, 1}, LinearAcceleration: [3]float64{0.1, 0.2, 0.3}, HasAcceleration: true, Timestamp: 1000},
		{LinearAcceleration: [3]float64{1, 2, 3}, HasAcceleration: true, Timestamp: 1500},
	}
	recs := sample.MergeRecords(fixes, motions)
	if recs[0].Kind != sample.RecordFix || recs[1].Kind != sample.RecordMotion {
		t.Fatalf("Expected fix before motion on equal timestamps, got %v", recs)
	}

	buf := new(bytes.Buffer)
	if err := WriteNDJSON(buf, recs); err != nil {
		t.Fatal(err)
	}
	got, err := ReadRecords(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(recs) {
		t.Fatalf("Expected %d records, got %d", len(recs), len(got))
	}
	gotFixes, gotMotions := sample.SplitRecords(got)
	if !slices.Equal(fixes, gotFixes) {
		t.Errorf("Expected %v, got %v", fixes, gotFixes)
	}
	for i := range motions {
		if gotMotions[i].LinearAcceleration != motions[i].LinearAcceleration ||
			!slices.Equal(gotMotions[i].RotationVector, motions[i].RotationVector) ||
			gotMotions[i].Timestamp != motions[i].Timestamp {
			t.Errorf("Expected %v, got %v", motions[i], gotMotions[i])
		}
	}
}

func TestScanRecordsBadLines(t *testing.T) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	in := strings.Join([]string{
		`{"kind":"fix","fix":{"latitude":1,"longitude":2,"accuracy":5,"timestamp":1}}`,
		`{"fix":{"latitude":1,"longitude":2,"timestamp":2}}`,
		`{"kind":"motion","motion":{"has_acceleration":true}}`,
		`{"kind":"boat","boat":{"timestamp":3}}`,
		`{"kind":"motion","motion":{"linear_acceleration":[1,0,0],"has_acceleration":true,"timestamp":4}}`,
	}, "\n")

	recs, errs := ScanRecords(strings.NewReader(in), nil)
	var got []sample.Record
	var bad []error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for err := range errs {
			bad = append(bad, err)
		}
	}()
	for r := range recs {
		got = append(got, r)
	}
	<-done

	if len(got) != 2 || got[0].Timestamp() != 1 || got[1].Timestamp() != 4 {
		t.Errorf("Expected records at 1 and 4, got %v", got)
	}
	missing := 0
	for _, err := range bad {
		if errors.Is(err, ErrMissingAttribute) {
			missing++
		}
	}
	if missing != 2 {
		t.Errorf("Expected 2 missing attribute errors, got %v", bad)
	}
}

func TestReadRecordsTruncated(t *testing.T) {
	in := `{"kind":"fix","fix":{"latitude":1,"longitude":2,"accuracy":5,"timestamp":1}}
{"kind":"fix","fix":{"lat`
	got, err := ReadRecords(strings.NewReader(in))
	if err == nil {
		t.Error("Expected error on truncated input")
	}
	if len(got) != 1 {
		t.Errorf("Expected the complete record, got %v", got)
	}
}
