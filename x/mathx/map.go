package mathx

import "golang.org/x/exp/constraints"

// MapRange linearly maps x from [inMin, inMax] onto [outMin, outMax],
// saturating outside the input range. The output range may be descending.
func MapRange[T constraints.Unsigned](x, inMin, inMax, outMin, outMax T) T {
	switch {
	case inMax <= inMin || x <= inMin:
		return outMin
	case x >= inMax:
		return outMax
	}
	num := uint64(x - inMin)
	den := uint64(inMax - inMin)
	if outMax >= outMin {
		return outMin + T(num*uint64(outMax-outMin)/den)
	}
	return outMin - T(num*uint64(outMin-outMax)/den)
}
