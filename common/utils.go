package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// DivCeil returns n divided by d, rounded up. Used to size dispatch counts so that every cell is
// covered by a workgroup. A zero divisor yields zero.
//
// Parameters:
//   - n: the dividend
//   - d: the divisor
//
// Returns:
//   - uint32: ceil(n / d)
func DivCeil(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}
