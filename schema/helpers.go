package schema

import (
	"math"
	"time"
)

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// RoundPtr rounds the value behind v, preserving nil.
func RoundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v, places)
	return &r
}

// SuccessRate returns success / (success + failure) as a percentage with two
// decimals. Cancelled and unfinished runs are not part of the denominator.
// The boolean is false when there is no completed success or failure.
func SuccessRate(success, failure int) (float64, bool) {
	denom := success + failure
	if denom <= 0 {
		return 0, false
	}
	return Round(float64(success)/float64(denom)*100, 2), true
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// TimePtr returns a pointer to t in UTC.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
