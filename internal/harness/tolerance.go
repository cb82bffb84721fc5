package harness

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerance is both the absolute and the relative bound used when comparing
// raynoise output against expected values.
const Tolerance = 1e-6

// WithinTolerance reports whether |actual-expected| <= max(Tolerance *
// max(|actual|, |expected|), Tolerance). NaN never compares equal.
func WithinTolerance(actual, expected float64) bool {
	return scalar.EqualWithinAbsOrRel(actual, expected, Tolerance, Tolerance)
}

// ToleranceRatio is |actual-expected| divided by the bound WithinTolerance
// applies. Values up to 1 pass.
func ToleranceRatio(actual, expected float64) float64 {
	bound := math.Max(Tolerance*math.Max(math.Abs(actual), math.Abs(expected)), Tolerance)
	return math.Abs(actual-expected) / bound
}
