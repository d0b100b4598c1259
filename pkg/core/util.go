package core

import "golang.org/x/exp/constraints"

// Clamp bounds value to the [lo, hi] interval
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
