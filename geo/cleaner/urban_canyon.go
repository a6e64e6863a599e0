package cleaner

import (
	"context"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
)

type WangUrbanCanyonFilter struct {
	Config   *params.TrackCleaningConfig
	Filtered int
}

// Filter drops fixes far from both the centre of the 5 fixes before them and
// the centre of the 5 fixes after them, as happens with reflected signals
// between tall buildings.
// > Wang: GPS points away from both the before and after 5 points center for
// > more than 200 m should be considered as shift points.
// Output lags input by 5 fixes; the remainder is flushed when in closes.
func (f *WangUrbanCanyonFilter) Filter(ctx context.Context, in <-chan sample.Fix) <-chan sample.Fix {
	out := make(chan sample.Fix)

	const bufferFront, bufferBack = 5, 5
	const bufferSize = bufferFront + 1 + bufferBack
	buffer := make([]sample.Fix, 0, bufferSize+1)

	send := func(fix sample.Fix) bool {
		select {
		case <-ctx.Done():
			return false
		case out <- fix:
			return true
		}
	}

	centroid := func(fixes []sample.Fix) orb.Point {
		mp := make(orb.MultiPoint, 0, len(fixes))
		for _, fx := range fixes {
			mp = append(mp, fx.Point())
		}
		c, _ := planar.CentroidArea(mp)
		return c
	}

	go func() {
		defer close(out)
		for fix := range in {
			buffer = append(buffer, fix)
			if len(buffer) < bufferSize {
				// The first fixes have no head to compare against.
				if len(buffer) <= bufferFront {
					if !send(fix) {
						return
					}
				}
				continue
			}
			if len(buffer) > bufferSize {
				buffer = buffer[1:]
			}

			head := buffer[:bufferFront]
			target := buffer[bufferFront]
			tail := buffer[bufferFront+1:]

			// Signal loss is not eligible for filtering.
			if tail[len(tail)-1].Time().Sub(head[0].Time()) > f.Config.WangUrbanCanyonWindow {
				if !send(target) {
					return
				}
				continue
			}

			limit := f.Config.WangUrbanCanyonDistance
			if geo.Distance(centroid(tail), target.Point()) > limit &&
				geo.Distance(centroid(head), target.Point()) > limit {
				f.Filtered++
				continue
			}
			if !send(target) {
				return
			}
		}

		// Trailing fixes never had a full tail.
		start := bufferFront + 1
		if len(buffer) < bufferSize {
			start = bufferFront
		}
		if start < len(buffer) {
			for _, fix := range buffer[start:] {
				if !send(fix) {
					return
				}
			}
		}
	}()

	return out
}
