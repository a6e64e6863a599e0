/*
Package proj converts between geographic coordinates and a local planar
approximation in meters.

The planar frame is anchored at (0°,0°). Each axis is measured independently
as a signed great-circle distance from the origin: x along the equator (east),
y along the prime meridian (north). The inverse composes two destination-point
moves, first east by x and then north by y. That composition is not a true
geodesic inverse away from the axes, but it is exact for points produced by
ToPlanarMeters and its asymmetry is consistent, which is all the estimator
needs for short displacements.
*/
package proj

import (
	"github.com/paulmach/orb"
	"math"
)

// EarthRadius is the spherical Earth radius in meters.
// Note that orb uses the WGS84 equatorial radius instead; the two must not be mixed
// inside the estimator.
const EarthRadius = 6371 * 1000.0

func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

// Haversine returns the great-circle distance in meters between two points
// on a sphere of EarthRadius.
func Haversine(a, b orb.Point) float64 {
	return haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLon := degToRad(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(degToRad(lat1))*math.Cos(degToRad(lat2))*math.Pow(math.Sin(dLon/2), 2)
	// Rounding can push a a hair past 1 for antipodal inputs.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// LatitudeToMeters is the signed distance north of the equator along the prime meridian.
func LatitudeToMeters(lat float64) float64 {
	d := haversine(lat, 0, 0, 0)
	if lat < 0 {
		return -d
	}
	return d
}

// LongitudeToMeters is the signed distance east of the prime meridian along the equator.
func LongitudeToMeters(lon float64) float64 {
	d := haversine(0, lon, 0, 0)
	if lon < 0 {
		return -d
	}
	return d
}

// ToPlanarMeters projects a latitude/longitude pair (degrees) to planar meters,
// x east and y north.
func ToPlanarMeters(lat, lon float64) (x, y float64) {
	return LongitudeToMeters(lon), LatitudeToMeters(lat)
}

// FromPlanarMeters inverts ToPlanarMeters, returning latitude and longitude in degrees.
// The east move is always applied before the north move.
func FromPlanarMeters(x, y float64) (lat, lon float64) {
	east := Destination(orb.Point{0, 0}, x, 90)
	northEast := Destination(east, y, 0)
	return northEast.Lat(), northEast.Lon()
}

// PointToPlanar is ToPlanarMeters for an orb.Point ([lon, lat]).
func PointToPlanar(p orb.Point) (x, y float64) {
	return ToPlanarMeters(p.Lat(), p.Lon())
}

// PlanarToPoint is FromPlanarMeters returning an orb.Point ([lon, lat]).
func PlanarToPoint(x, y float64) orb.Point {
	lat, lon := FromPlanarMeters(x, y)
	return orb.Point{lon, lat}
}

// Destination moves p by distance meters along the initial bearing (degrees clockwise from north)
// on a sphere of EarthRadius. Negative distances move in the opposite direction.
func Destination(p orb.Point, distance, bearingDeg float64) orb.Point {
	delta := distance / EarthRadius
	bearing := degToRad(bearingDeg)
	lat1 := degToRad(p.Lat())
	lon1 := degToRad(p.Lon())

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(bearing))

	lon2 := lon1 + math.Atan2(
		math.Sin(bearing)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return orb.Point{radToDeg(wrapLongitude(lon2)), radToDeg(lat2)}
}

// wrapLongitude folds radians into (-π, π].
func wrapLongitude(lon float64) float64 {
	w := math.Mod(lon+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	w -= math.Pi
	if w <= -math.Pi {
		w += 2 * math.Pi
	}
	return w
}
