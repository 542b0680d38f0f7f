package windowing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voxview/internal/services"
)

// Window is an intensity range clipped from a volume's histogram.
type Window struct {
	Min float64
	Max float64
}

// Width returns the window width.
func (w Window) Width() float64 { return w.Max - w.Min }

// Center returns the window midpoint.
func (w Window) Center() float64 { return (w.Min + w.Max) / 2 }

// Contains reports whether other nests inside w.
func (w Window) Contains(other Window) bool {
	return other.Min >= w.Min && other.Max <= w.Max
}

// ComputeRanges bins the samples into a histogram, builds the cumulative
// distribution, and derives one clipped window per preset. A preset value p
// clips p percent from each tail: the lower bound is the start of the first
// bin whose cumulative count reaches p% of the samples, the upper bound the
// end of the first bin reaching (100-p)%, both clamped to the true extrema.
func ComputeRanges(samples []float64, bins int, presets map[string]float64) (map[string]Window, error) {
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrValidation, "windowing", "autorange", "no samples", nil)
	}
	if bins < 1 {
		return nil, services.Wrap(services.ErrValidation, "windowing", "autorange", "bin count must be positive", nil)
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]

	ranges := make(map[string]Window, len(presets))
	if lo == hi {
		for name := range presets {
			ranges[name] = Window{Min: lo, Max: hi}
		}
		return ranges, nil
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// Histogram requires every sample strictly below the last divider.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	cumulative := make([]float64, len(counts))
	floats.CumSum(cumulative, counts)
	total := cumulative[len(cumulative)-1]

	for name, percentile := range presets {
		ranges[name] = clipWindow(dividers, cumulative, total, percentile, lo, hi)
	}
	return ranges, nil
}

func clipWindow(dividers, cumulative []float64, total, percentile, lo, hi float64) Window {
	lowerTarget := total * percentile / 100
	upperTarget := total * (100 - percentile) / 100

	window := Window{Min: lo, Max: hi}
	for i, count := range cumulative {
		if count >= lowerTarget {
			window.Min = dividers[i]
			break
		}
	}
	for i, count := range cumulative {
		if count >= upperTarget {
			window.Max = dividers[i+1]
			break
		}
	}
	if window.Min < lo {
		window.Min = lo
	}
	if window.Max > hi {
		window.Max = hi
	}
	if window.Max < window.Min {
		window.Min, window.Max = window.Max, window.Min
	}
	return window
}
