package replay

import (
	"encoding/json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catfuse/stream"
	"io"
	"time"
)

// FeatureCollection renders a replay as GeoJSON: the fused track, the
// baseline track and the accepted fixes.
func FeatureCollection(res *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	fused := orb.LineString{}
	for _, o := range res.Outputs {
		if o.Estimated != nil {
			fused = append(fused, *o.Estimated)
		}
	}
	if len(fused) > 0 {
		f := geojson.NewFeature(fused)
		f.Properties["Name"] = "fused"
		f.Properties["Count"] = len(fused)
		fc.Append(f)
	}

	if len(res.Baseline) > 0 {
		base := make(orb.LineString, 0, len(res.Baseline))
		for _, b := range res.Baseline {
			base = append(base, b.Point)
		}
		f := geojson.NewFeature(base)
		f.Properties["Name"] = "baseline"
		f.Properties["Count"] = len(base)
		fc.Append(f)
	}

	for _, fix := range res.Accepted {
		f := geojson.NewFeature(fix.Point())
		f.Properties["Name"] = "measured"
		f.Properties["Accuracy"] = fix.Accuracy
		f.Properties["Provider"] = fix.Provider
		f.Properties["Time"] = fix.Time().UTC().Format(time.RFC3339Nano)
		fc.Append(f)
	}
	return fc
}

func WriteGeoJSON(w io.Writer, res *Result) error {
	return json.NewEncoder(w).Encode(FeatureCollection(res))
}

// WriteOutputs writes every output as one JSON line.
func WriteOutputs(w io.Writer, res *Result) error {
	return stream.WriteNDJSON(w, res.Outputs)
}
