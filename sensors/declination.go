package sensors

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catfuse/common"
	"github.com/rotblauer/catfuse/types/sample"
)

// Declinator reports the magnetic declination at a fix, degrees east of true north.
type Declinator interface {
	Declination(f sample.Fix) float64
}

// FixedDeclination is the same declination everywhere.
type FixedDeclination float64

func (d FixedDeclination) Declination(sample.Fix) float64 { return float64(d) }

// DeclinatorFunc adapts a func to a Declinator.
type DeclinatorFunc func(f sample.Fix) float64

func (fn DeclinatorFunc) Declination(f sample.Fix) float64 { return fn(f) }

// GeomagneticNorth is the north pole of the IGRF-13 (2020) dipole, [lon, lat].
var GeomagneticNorth = orb.Point{-72.68, 80.65}

// DipoleDeclination approximates declination as the initial bearing from the
// fix to the geomagnetic north pole. Good to a handful of degrees away from
// the poles; use a fixed value where better numbers are known.
type DipoleDeclination struct{}

func (DipoleDeclination) Declination(f sample.Fix) float64 {
	return geo.Bearing(orb.Point{f.Longitude, f.Latitude}, GeomagneticNorth)
}

type cellKey struct {
	lat, lon int
}

// CachedDeclinator memoizes an underlying Declinator per whole-degree cell.
// Declination varies slowly enough that a degree cell is plenty.
type CachedDeclinator struct {
	next  Declinator
	cache *lru.Cache[cellKey, float64]
}

func NewCachedDeclinator(next Declinator, size int) (*CachedDeclinator, error) {
	cache, err := lru.New[cellKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedDeclinator{next: next, cache: cache}, nil
}

func (c *CachedDeclinator) Declination(f sample.Fix) float64 {
	key := cellKey{lat: common.Round(f.Latitude), lon: common.Round(f.Longitude)}
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := c.next.Declination(f)
	c.cache.Add(key, v)
	return v
}
