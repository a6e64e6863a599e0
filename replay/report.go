package replay

import (
	"fmt"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/fusion"
	"strings"
)

// Summary describes a set of distances, meters.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

func (s Summary) String() string {
	if s.N == 0 {
		return "n=0"
	}
	return fmt.Sprintf("n=%d mean=%.2fm sd=%.2fm p95=%.2fm max=%.2fm", s.N, s.Mean, s.StdDev, s.P95, s.Max)
}

func summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	statsMustFloat := func(fn func() (float64, error)) float64 {
		out, err := fn()
		if err != nil {
			return 0
		}
		return common.DecimalToFixed(out, 3)
	}
	statsData := stats.Float64Data(data)
	return Summary{
		N:      len(data),
		Mean:   statsMustFloat(statsData.Mean),
		StdDev: statsMustFloat(statsData.StandardDeviation),
		P95: statsMustFloat(func() (float64, error) {
			return statsData.Percentile(95)
		}),
		Max: statsMustFloat(statsData.Max),
	}
}

type Report struct {
	Kinds map[fusion.Kind]int `json:"kinds"`

	// Innovation is the distance between each measured fix and the estimate
	// emitted with it.
	Innovation Summary `json:"innovation"`
	// BaselineDeviation is the distance between the fused and baseline
	// estimates at the same fix.
	BaselineDeviation Summary `json:"baseline_deviation"`

	// The remaining summaries are distances to the truth, when known.
	FusedError    Summary `json:"fused_error"`
	RawError      Summary `json:"raw_error"`
	BaselineError Summary `json:"baseline_error"`
}

func NewReport(res *Result, truth Truth) Report {
	r := Report{Kinds: map[fusion.Kind]int{}}

	var innovation, deviation, fused []float64
	baselineAt := make(map[int64]BaselineEstimate, len(res.Baseline))
	for _, b := range res.Baseline {
		baselineAt[b.Timestamp] = b
	}
	for _, o := range res.Outputs {
		r.Kinds[o.Kind]++
		if o.Estimated == nil {
			continue
		}
		if o.Measured != nil {
			innovation = append(innovation, geo.Distance(*o.Measured, *o.Estimated))
			if b, ok := baselineAt[o.Timestamp]; ok {
				deviation = append(deviation, geo.Distance(b.Point, *o.Estimated))
			}
		}
		if truth != nil {
			fused = append(fused, geo.Distance(truth(o.Timestamp), *o.Estimated))
		}
	}
	r.Innovation = summarize(innovation)
	r.BaselineDeviation = summarize(deviation)
	if truth == nil {
		return r
	}

	raw := make([]float64, 0, len(res.Accepted))
	for _, f := range res.Accepted {
		raw = append(raw, geo.Distance(truth(f.Timestamp), f.Point()))
	}
	base := make([]float64, 0, len(res.Baseline))
	for _, b := range res.Baseline {
		base = append(base, geo.Distance(truth(b.Timestamp), b.Point))
	}
	r.FusedError = summarize(fused)
	r.RawError = summarize(raw)
	r.BaselineError = summarize(base)
	return r
}

func (r Report) String() string {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "outputs: initial=%d correction=%d lookahead=%d\n",
		r.Kinds[fusion.KindInitial], r.Kinds[fusion.KindCorrection], r.Kinds[fusion.KindLookAhead])
	fmt.Fprintf(sb, "innovation:         %v\n", r.Innovation)
	fmt.Fprintf(sb, "baseline deviation: %v\n", r.BaselineDeviation)
	if r.FusedError.N > 0 {
		fmt.Fprintf(sb, "fused error:        %v\n", r.FusedError)
		fmt.Fprintf(sb, "raw error:          %v\n", r.RawError)
		fmt.Fprintf(sb, "baseline error:     %v\n", r.BaselineError)
	}
	return sb.String()
}
