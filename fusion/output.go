package fusion

import (
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/catfuse/geo/kalman"
	"github.com/rotblauer/catfuse/types/sample"
)

// Kind says which event produced an Output.
type Kind int

const (
	// KindInitial is emitted once, for the fix that initialized the estimator.
	KindInitial Kind = iota
	// KindLookAhead is a prediction emitted between corrections.
	KindLookAhead
	// KindCorrection pairs a measured fix with the corrected estimate.
	KindCorrection
)

var kindNames = map[Kind]string{
	KindInitial:    "initial",
	KindLookAhead:  "lookahead",
	KindCorrection: "correction",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown output kind %q", string(b))
}

// Output is one emitted estimate, optionally paired with the fix it was corrected by.
type Output struct {
	Kind Kind `json:"kind"`

	// Measured is the raw fix position, [lon, lat]. Nil for look-ahead outputs.
	Measured *orb.Point `json:"measured,omitempty"`
	// Estimated is the filtered position, [lon, lat].
	Estimated *orb.Point `json:"estimated,omitempty"`

	// Speed (m/s) and Course (degrees from north) of the estimate.
	Speed  float64 `json:"speed"`
	Course float64 `json:"course"`
	// Accuracy is the 1-sigma horizontal radius of the estimate, meters.
	Accuracy float64 `json:"accuracy"`

	Timestamp int64 `json:"timestamp"`
}

func (o Output) String() string {
	s := fmt.Sprintf("%s@%d", o.Kind, o.Timestamp)
	if o.Measured != nil {
		s += fmt.Sprintf(" measured=%.7f,%.7f", o.Measured.Lat(), o.Measured.Lon())
	}
	if o.Estimated != nil {
		s += fmt.Sprintf(" estimated=%.7f,%.7f", o.Estimated.Lat(), o.Estimated.Lon())
	}
	return s
}

func newEstimateOutput(kind Kind, st kalman.State, accuracy float64) Output {
	pt := st.Point
	return Output{
		Kind:      kind,
		Estimated: &pt,
		Speed:     st.Speed,
		Course:    st.Course,
		Accuracy:  accuracy,
		Timestamp: st.Timestamp,
	}
}

func withMeasured(o Output, fix sample.Positioning) Output {
	pt := fix.Point()
	o.Measured = &pt
	return o
}
