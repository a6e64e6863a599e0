package cleaner

import (
	"context"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catfuse/params"
	"github.com/rotblauer/catfuse/types/sample"
)

// TeleportationFilter drops fixes whose implied speed from the last passed fix
// exceeds the reported speed by the configured factor.
func TeleportationFilter(ctx context.Context, cfg *params.TrackCleaningConfig, in <-chan sample.Fix) <-chan sample.Fix {
	out := make(chan sample.Fix)

	go func() {
		defer close(out)

		var last *sample.Fix

		for fix := range in {
			fix := fix
			pass := true

			if last != nil {
				interval := fix.Time().Sub(last.Time())
				dist := geo.Distance(last.Point(), fix.Point())

				// Signal loss is not teleportation, and neither is jitter.
				if interval > 0 && interval <= cfg.TeleportWindow && dist > cfg.TeleportMinDistance {
					calculatedSpeed := dist / interval.Seconds()
					if calculatedSpeed > fix.Speed*cfg.TeleportSpeedFactor {
						pass = false
					}
				}
			}
			if !pass {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- fix:
				last = &fix
			}
		}
	}()
	return out
}
