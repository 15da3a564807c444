package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestGroupSize(t *testing.T) {
	tests := []struct {
		name     string
		window   time.Duration
		interval time.Duration
		want     int
	}{
		{name: "reference cadence", window: 45 * time.Second, interval: 2 * time.Second, want: 22},
		{name: "exact", window: 10 * time.Second, interval: time.Second, want: 10},
		{name: "window shorter than interval", window: time.Second, interval: 2 * time.Second, want: 0},
		{name: "zero interval", window: time.Minute, interval: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GroupSize(tt.window, tt.interval); got != tt.want {
				t.Errorf("GroupSize(%v, %v) = %d, want %d", tt.window, tt.interval, got, tt.want)
			}
		})
	}
}

func TestTrimCount(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		fraction float64
		want     int
	}{
		{name: "reference group at 5%", n: 22, fraction: 0.05, want: 1},
		{name: "zero fraction keeps one per side", n: 22, fraction: 0, want: 1},
		{name: "large group at 5%", n: 100, fraction: 0.05, want: 3},
		{name: "20% of 50", n: 50, fraction: 0.2, want: 6},
		{name: "tiny group", n: 3, fraction: 0.05, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimCount(tt.n, tt.fraction); got != tt.want {
				t.Errorf("TrimCount(%d, %v) = %d, want %d", tt.n, tt.fraction, got, tt.want)
			}
		})
	}
}

func TestValidateGroup(t *testing.T) {
	if err := ValidateGroup(22, 0.05); err != nil {
		t.Fatalf("ValidateGroup(22, 0.05) error = %v, want nil", err)
	}
	if err := ValidateGroup(3, 0.05); err != nil {
		t.Fatalf("ValidateGroup(3, 0.05) error = %v, want nil", err)
	}

	for _, n := range []int{1, 2} {
		err := ValidateGroup(n, 0.05)
		if !errors.Is(err, ErrEmptyRange) {
			t.Errorf("ValidateGroup(%d) error = %v, want ErrEmptyRange", n, err)
		}
	}
	if err := ValidateGroup(0, 0.05); err == nil {
		t.Error("ValidateGroup(0) error = nil, want non-nil")
	}
}

func TestTrimmedMean_AllEqual(t *testing.T) {
	values := make([]float64, 22)
	for i := range values {
		values[i] = 23.47
	}

	got, err := TrimmedMean(values, 1)
	if err != nil {
		t.Fatalf("TrimmedMean error = %v", err)
	}
	if got != 23.47 {
		t.Fatalf("TrimmedMean = %v, want 23.47", got)
	}
}

func TestTrimmedMean_PermutationInvariant(t *testing.T) {
	values := []float64{3, 9, 1, 7, 5, 2, 8, 6, 4, 10, 0.5, 12}
	want, err := TrimmedMean(values, 2)
	if err != nil {
		t.Fatalf("TrimmedMean error = %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]float64(nil), values...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := TrimmedMean(shuffled, 2)
		if err != nil {
			t.Fatalf("TrimmedMean error = %v", err)
		}
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("TrimmedMean(%v) = %v, want %v", shuffled, got, want)
		}
	}
}

func TestTrimmedMean_IgnoresOutliers(t *testing.T) {
	base := []float64{20, 21, 22, 23, 24}

	tests := []struct {
		name    string
		outlier float64
	}{
		{name: "high", outlier: 1e6},
		{name: "higher", outlier: 9e9},
		{name: "low", outlier: -1e6},
		{name: "lower", outlier: -9e9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := append([]float64{tt.outlier}, base...)
			got, err := TrimmedMean(values, 1)
			if err != nil {
				t.Fatalf("TrimmedMean error = %v", err)
			}
			// One tail removes the outlier, the other removes a base extreme.
			var want float64
			if tt.outlier > 0 {
				want = (21 + 22 + 23 + 24) / 4.0
			} else {
				want = (20 + 21 + 22 + 23) / 4.0
			}
			if got != want {
				t.Errorf("TrimmedMean = %v, want %v", got, want)
			}
		})
	}
}

func TestTrimmedMean_AveragesCentralRange(t *testing.T) {
	got, err := TrimmedMean([]float64{5, 1, 4, 2, 3}, 1)
	if err != nil {
		t.Fatalf("TrimmedMean error = %v", err)
	}
	if got != 3 {
		t.Fatalf("TrimmedMean = %v, want 3", got)
	}
}

func TestTrimmedMean_DoesNotMutateInput(t *testing.T) {
	values := []float64{3, 1, 2}
	if _, err := TrimmedMean(values, 1); err != nil {
		t.Fatalf("TrimmedMean error = %v", err)
	}
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Fatalf("input mutated: %v", values)
	}
}

func TestTrimmedMean_EmptyRange(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		trim   int
	}{
		{name: "nil", values: nil, trim: 1},
		{name: "two values", values: []float64{1, 2}, trim: 1},
		{name: "trim exceeds half", values: []float64{1, 2, 3, 4}, trim: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrimmedMean(tt.values, tt.trim)
			if !errors.Is(err, ErrEmptyRange) {
				t.Fatalf("TrimmedMean error = %v, want ErrEmptyRange", err)
			}
		})
	}
}

func TestTrimmedMean_NegativeTrim(t *testing.T) {
	if _, err := TrimmedMean([]float64{1, 2, 3}, -1); err == nil {
		t.Fatal("TrimmedMean error = nil, want non-nil")
	}
}
