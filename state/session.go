package state

import (
	"encoding/json"
	"github.com/rotblauer/catfuse/catdb/flat"
	"github.com/rotblauer/catfuse/fusion"
	"github.com/rotblauer/catfuse/sensors"
	"github.com/rotblauer/catfuse/stream"
	"github.com/rotblauer/catfuse/types/sample"
	"sync"
)

// ndjsonGZ encodes values onto a locked gzip file. Safe for concurrent use.
type ndjsonGZ struct {
	mu  sync.Mutex
	w   *flat.GZFileWriter
	enc *json.Encoder
}

func newNDJSONGZ(w *flat.GZFileWriter) (*ndjsonGZ, error) {
	gzw, err := w.Writer()
	if err != nil {
		w.Close()
		return nil, err
	}
	return &ndjsonGZ{w: w, enc: json.NewEncoder(gzw)}, nil
}

func (n *ndjsonGZ) encode(v any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.Encode(v)
}

func (n *ndjsonGZ) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.w.Close()
}

// OutputWriter appends outputs to the session's outputs file and keeps
// the last one cached.
type OutputWriter struct {
	s   *State
	out *ndjsonGZ
}

func (s *State) NewOutputWriter() (*OutputWriter, error) {
	w, err := s.Flat.OutputsGZWriter()
	if err != nil {
		return nil, err
	}
	out, err := newNDJSONGZ(w)
	if err != nil {
		return nil, err
	}
	return &OutputWriter{s: s, out: out}, nil
}

func (w *OutputWriter) Write(o fusion.Output) error {
	w.s.SetLast(o)
	return w.out.encode(o)
}

// Close flushes the file and persists the last output, if any.
func (w *OutputWriter) Close() error {
	err := w.out.close()
	if lastErr := w.s.StoreLast(); lastErr != nil && lastErr != ErrNoLast && err == nil {
		err = lastErr
	}
	return err
}

// Recorder appends raw sensor samples to the session's records file,
// replayable with ReadRecords.
type Recorder struct {
	out *ndjsonGZ
}

func (s *State) NewRecorder() (*Recorder, error) {
	w, err := s.Flat.RecordsGZWriter()
	if err != nil {
		return nil, err
	}
	out, err := newNDJSONGZ(w)
	if err != nil {
		return nil, err
	}
	return &Recorder{out: out}, nil
}

func (r *Recorder) Record(rec sample.Record) error {
	return r.out.encode(rec)
}

func (r *Recorder) Close() error {
	return r.out.close()
}

// Inertial wraps src so that every motion sample is recorded before it is handled.
func (r *Recorder) Inertial(src sensors.InertialSource) sensors.InertialSource {
	return &recordingInertial{InertialSource: src, r: r}
}

// Positioning wraps src so that every fix is recorded before it is handled.
func (r *Recorder) Positioning(src sensors.PositioningSource) sensors.PositioningSource {
	return &recordingPositioning{PositioningSource: src, r: r}
}

type recordingInertial struct {
	sensors.InertialSource
	r *Recorder
}

func (ri *recordingInertial) Register(handler func(sample.Motion)) error {
	return ri.InertialSource.Register(func(m sample.Motion) {
		_ = ri.r.Record(sample.MotionRecord(m))
		handler(m)
	})
}

type recordingPositioning struct {
	sensors.PositioningSource
	r *Recorder
}

func (rp *recordingPositioning) Register(handler func(sample.Fix)) error {
	return rp.PositioningSource.Register(func(f sample.Fix) {
		_ = rp.r.Record(sample.FixRecord(f))
		handler(f)
	})
}

// ReadRecords reads back every recorded sample.
func (s *State) ReadRecords() ([]sample.Record, error) {
	r, err := s.Flat.NamedGZReader(flat.RecordsFileName)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	gzr, err := r.Reader()
	if err != nil {
		return nil, err
	}
	return stream.ReadRecords(gzr)
}
