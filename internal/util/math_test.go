package util

import (
	"math"
	"testing"
)

func TestMeanStd(t *testing.T) {
	cases := []struct {
		name     string
		in       []float64
		mean     float64
		std      float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{2.5}, 2.5, 0},
		{"uniform", []float64{3, 3, 3}, 3, 0},
		{"spread", []float64{1, 2, 3, 4}, 2.5, math.Sqrt(1.25)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mean, std := MeanStd(tc.in)
			if math.Abs(mean-tc.mean) > 1e-9 || math.Abs(std-tc.std) > 1e-9 {
				t.Fatalf("MeanStd(%v) = (%v, %v), want (%v, %v)", tc.in, mean, std, tc.mean, tc.std)
			}
		})
	}
}
