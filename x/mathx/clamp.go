package mathx

import "golang.org/x/exp/constraints"

// Clamp pins v into the closed range spanned by a and b, in either order.
func Clamp[T constraints.Ordered](v, a, b T) T {
	lo, hi := min(a, b), max(a, b)
	return min(max(v, lo), hi)
}

// Between reports whether v lies in the closed range spanned by a and b.
func Between[T constraints.Ordered](v, a, b T) bool {
	return v >= min(a, b) && v <= max(a, b)
}

func Abs[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
