package mip

import (
	"math"
	"sort"
)

// refPointPrecision controls the de-duplication grid: points are keyed by
// round(x * precision), so values within half a grid step collide.
const refPointPrecision = 1

// RefPoints is a set of x-coordinates anchoring a square approximation.
// Nearby insertions collapse onto one key, which keeps the refinement loop
// of the least-squares strategy finite.
type RefPoints struct {
	points map[int64]float64
}

// Insert stores x and reports whether its key was not present yet.
func (r *RefPoints) Insert(x float64) bool {
	if r.points == nil {
		r.points = make(map[int64]float64)
	}
	key := int64(math.Round(x * refPointPrecision))
	if _, ok := r.points[key]; ok {
		return false
	}
	r.points[key] = x
	return true
}

// Len reports the number of stored points.
func (r *RefPoints) Len() int {
	return len(r.points)
}

// Empty reports whether the set has no points.
func (r *RefPoints) Empty() bool {
	return len(r.points) == 0
}

// Points returns the stored values in ascending key order.
func (r *RefPoints) Points() []float64 {
	keys := make([]int64, 0, len(r.points))
	for key := range r.points {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	res := make([]float64, len(keys))
	for i, key := range keys {
		res[i] = r.points[key]
	}
	return res
}
