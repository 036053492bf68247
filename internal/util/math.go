package util

import "math"

// MeanStd returns the mean and population standard deviation of durations
// expressed in seconds. Empty input yields zeros.
func MeanStd(seconds []float64) (mean, std float64) {
	if len(seconds) == 0 {
		return 0, 0
	}

	for _, v := range seconds {
		mean += v
	}
	mean /= float64(len(seconds))

	for _, v := range seconds {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(seconds)))

	return mean, std
}
