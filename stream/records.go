package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/rotblauer/catfuse/types/sample"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"time"
)

const AttrKind = "kind"

var ErrMissingAttribute = errors.New("missing attribute in read line")

// ScanRecords decodes a recorded sensor log, one JSON record per line.
// Lines without a kind or a payload timestamp are reported on the error
// channel and skipped; a decode error ends the scan.
// The quit channel interrupts the read loop.
// Callers must drain the error channel alongside the records.
func ScanRecords(reader io.Reader, quit <-chan struct{}) (<-chan sample.Record, <-chan error) {
	out := make(chan sample.Record)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		dec := json.NewDecoder(reader)
		sendErr := func(err error) {
			select {
			case <-quit:
			case errs <- err:
			}
		}

		met := newTickScanMeter(5 * time.Second)
		defer met.stop()
		defer func() {
			slog.Debug("Record scanner done",
				"lines", humanize.Comma(met.countMeter.Snapshot().Count()),
				"bytes", humanize.Bytes(uint64(met.size.Snapshot().Count())),
				"running", time.Since(met.started).Round(time.Millisecond))
		}()

		for {
			select {
			case <-quit:
				slog.Info("Record scanner received quit")
				return
			default:
			}
			msg := json.RawMessage{}
			if err := dec.Decode(&msg); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				sendErr(fmt.Errorf("scanner(%w)", err))
				return
			}

			kind := gjson.GetBytes(msg, AttrKind)
			if !kind.Exists() {
				sendErr(fmt.Errorf("%w: %s in line: %s", ErrMissingAttribute, AttrKind, string(msg)))
				continue
			}
			attrTime := kind.String() + ".timestamp"
			ts := gjson.GetBytes(msg, attrTime)
			if !ts.Exists() {
				sendErr(fmt.Errorf("%w: %s in line: %s", ErrMissingAttribute, attrTime, string(msg)))
				continue
			}
			met.mark(ts.Int(), msg)

			var rec sample.Record
			if err := json.Unmarshal(msg, &rec); err != nil {
				sendErr(fmt.Errorf("record unmarshal error: %w", err))
				continue
			}
			if err := rec.Validate(); err != nil {
				sendErr(err)
				continue
			}

			select {
			case <-quit:
				slog.Info("Record scanner received quit")
				return
			case out <- rec:
			}
		}
	}()
	return out, errs
}

// ReadRecords scans every record from reader. Bad lines are logged and
// skipped; only a decode error is returned, along with what was read.
func ReadRecords(reader io.Reader) ([]sample.Record, error) {
	recs, errs := ScanRecords(reader, nil)
	var out []sample.Record
	var fatal error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for err := range errs {
			if errors.Is(err, ErrMissingAttribute) {
				slog.Warn("Skipped record", "error", err)
				continue
			}
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) || errors.Is(err, io.ErrUnexpectedEOF) {
				fatal = err
				continue
			}
			slog.Warn("Skipped record", "error", err)
		}
	}()
	for rec := range recs {
		out = append(out, rec)
	}
	<-done
	return out, fatal
}

// WriteNDJSON writes each element as one JSON line.
func WriteNDJSON[T any](w io.Writer, in []T) error {
	enc := json.NewEncoder(w)
	for _, element := range in {
		if err := enc.Encode(element); err != nil {
			return err
		}
	}
	return nil
}

