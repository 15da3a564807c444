// Package stats reduces a reading-group to a single value with a trimmed mean.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// ErrEmptyRange is returned when trimming would leave no samples to average.
var ErrEmptyRange = errors.New("trimmed range is empty")

// GroupSize is the number of samples that fit in window when one is drawn
// every interval.
func GroupSize(window, interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(window / interval)
}

// TrimCount returns how many samples are dropped from each tail of a group of
// n samples. ignoreFraction covers both tails, so half of it applies to each
// side. At least one sample per side is always dropped.
func TrimCount(n int, ignoreFraction float64) int {
	perSide := ignoreFraction / 2
	return int(math.Floor(perSide*float64(n))) + 1
}

// ValidateGroup reports whether a group of n samples still has a non-empty
// central range after trimming.
func ValidateGroup(n int, ignoreFraction float64) error {
	if n <= 0 {
		return fmt.Errorf("group size must be positive, got %d", n)
	}
	trim := TrimCount(n, ignoreFraction)
	if n-2*trim <= 0 {
		return fmt.Errorf("%w: n=%d trim=%d per side", ErrEmptyRange, n, trim)
	}
	return nil
}

// TrimmedMean sorts a copy of values and returns the mean of the elements in
// [trim, len(values)-trim). The input slice is left untouched.
func TrimmedMean(values []float64, trim int) (float64, error) {
	n := len(values)
	if trim < 0 {
		return 0, fmt.Errorf("negative trim %d", trim)
	}
	if n-2*trim <= 0 {
		return 0, fmt.Errorf("%w: n=%d trim=%d per side", ErrEmptyRange, n, trim)
	}

	sorted := slices.Clone(values)
	slices.SortStableFunc(sorted, compare)

	// Running mean; an all-equal group reduces to exactly its sample value.
	var mean float64
	for i, v := range sorted[trim : n-trim] {
		mean += (v - mean) / float64(i+1)
	}
	return mean, nil
}

func compare(a, b float64) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}
