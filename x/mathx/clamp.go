package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// AbsDiff returns |a-b| without overflowing unsigned types.
func AbsDiff[T constraints.Integer](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}

// SnapStep clamps v to [lo, hi] and rounds it to the nearest lo + k*step.
// A step <= 0 only clamps.
func SnapStep[T constraints.Signed](v, lo, hi, step T) T {
	v = Clamp(v, lo, hi)
	if step <= 0 {
		return v
	}
	k := (v - lo + step/2) / step
	v = lo + k*step
	if v > hi {
		v -= step
	}
	return v
}
