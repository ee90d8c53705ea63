package utils

import "math"

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Mean of values, 0 for an empty slice
func Mean[T Numeric](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// StdDev is the population standard deviation (divides by n)
func StdDev[T Numeric](values []T) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		diff := float64(v) - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}
