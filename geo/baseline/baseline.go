/*
Package baseline is a GPS-only position smoother used as a point of
comparison for the fused estimate.
*/
package baseline

import (
	"fmt"
	"github.com/paulmach/orb"
	rkalman "github.com/regnull/kalman"
	"github.com/rotblauer/catfuse/types/sample"
	"log/slog"
	"math"
)

type Filter struct {
	filter   *rkalman.GeoFilter
	last     int64
	observed int

	pt    orb.Point
	speed float64
}

// New builds a filter anchored at the latitude of the first fix.
// speed is the expected movement in m/s and acceleration the expected
// change of speed in m/s^2.
func New(first sample.Fix, speed, acceleration float64) (*Filter, error) {
	processNoise := &rkalman.GeoProcessNoise{
		// We assume the measurements take place at approximately the
		// same location, so that we can disregard the earth's curvature.
		BaseLat:           first.Latitude,
		DistancePerSecond: speed,
		SpeedPerSecond:    acceleration,
	}
	filter, err := rkalman.NewGeoFilter(processNoise)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize baseline filter: %w", err)
	}
	return &Filter{
		filter: filter,
		last:   first.Timestamp,
		pt:     first.Point(),
		speed:  first.Speed,
	}, nil
}

// Observe feeds a fix. Fixes not newer than the last seen are ignored.
func (f *Filter) Observe(fix sample.Fix) error {
	seconds := float64(fix.Timestamp-f.last) / 1000
	if seconds <= 0 {
		return nil
	}
	speed := fix.Speed
	if math.IsNaN(speed) {
		speed = 0
	}
	err := f.filter.Observe(seconds, &rkalman.GeoObserved{
		Lat:                fix.Latitude,
		Lng:                fix.Longitude,
		Altitude:           fix.Altitude,
		Speed:              speed,
		SpeedAccuracy:      0.2,
		Direction:          fix.Bearing,
		DirectionAccuracy:  0,
		HorizontalAccuracy: fix.Accuracy,
		VerticalAccuracy:   2.0,
	})
	if err != nil {
		slog.Error("Baseline observe failed", "error", err)
		return err
	}
	f.last = fix.Timestamp
	f.observed++
	if est := f.filter.Estimate(); est != nil {
		f.pt = orb.Point{est.Lng, est.Lat}
		f.speed = est.Speed
	}
	return nil
}

// Observed is the number of fixes folded in after the first.
func (f *Filter) Observed() int {
	return f.observed
}

// Estimate returns the smoothed position and speed.
// Before any observation it is the first fix as given.
func (f *Filter) Estimate() (pt orb.Point, speed float64) {
	return f.pt, f.speed
}
