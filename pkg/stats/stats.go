// Package stats provides the summary statistics reported for a run.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of values using the
// empirical distribution. values is not modified. Returns 0 if empty.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(clamp(p/100), stat.Empirical, sorted, nil)
}

// Mean returns the arithmetic mean of values, or 0 if empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

func clamp(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	}
	return q
}
