package sample

import (
	"fmt"
	"sort"
)

const (
	RecordFix    = "fix"
	RecordMotion = "motion"
)

// Record is one line of a recorded sensor log: a raw fix or motion sample
// tagged with its kind.
type Record struct {
	Kind   string  `json:"kind"`
	Fix    *Fix    `json:"fix,omitempty"`
	Motion *Motion `json:"motion,omitempty"`
}

func FixRecord(f Fix) Record {
	return Record{Kind: RecordFix, Fix: &f}
}

func MotionRecord(m Motion) Record {
	return Record{Kind: RecordMotion, Motion: &m}
}

func (r Record) Timestamp() int64 {
	switch {
	case r.Fix != nil:
		return r.Fix.Timestamp
	case r.Motion != nil:
		return r.Motion.Timestamp
	}
	return 0
}

// Validate checks that the kind names exactly the payload present.
func (r Record) Validate() error {
	switch r.Kind {
	case RecordFix:
		if r.Fix == nil || r.Motion != nil {
			return fmt.Errorf("fix record must carry only a fix")
		}
	case RecordMotion:
		if r.Motion == nil || r.Fix != nil {
			return fmt.Errorf("motion record must carry only a motion")
		}
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	return nil
}

// MergeRecords interleaves fixes and motions into one log in ascending
// timestamp order. On equal timestamps fixes come first.
func MergeRecords(fixes []Fix, motions []Motion) []Record {
	out := make([]Record, 0, len(fixes)+len(motions))
	for _, f := range fixes {
		out = append(out, FixRecord(f))
	}
	for _, m := range motions {
		out = append(out, MotionRecord(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp() < out[j].Timestamp()
	})
	return out
}

// SplitRecords is the inverse of MergeRecords.
func SplitRecords(records []Record) (fixes []Fix, motions []Motion) {
	for _, r := range records {
		switch {
		case r.Fix != nil:
			fixes = append(fixes, *r.Fix)
		case r.Motion != nil:
			motions = append(motions, *r.Motion)
		}
	}
	return fixes, motions
}
