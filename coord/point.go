package coord

import (
	"math"
)

// Point is a pair of axis values, in degrees.
//
// It is used both for recorded trajectory points (joint angles)
// and for accumulated encoder positions reported by the arm.
type Point struct{ A1, A2 float64 }

// StepResolution returns the smallest angle the mechanism can realize
// with the given number of microsteps per revolution.
func StepResolution(microsteps int) float64 {
	return 360 / float64(microsteps)
}

// Quantize rounds v to the nearest multiple of step.
func Quantize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	q := math.Round(v/step) * step
	if q == 0 {
		// avoid -0, which formats as "-0.000"
		return 0
	}
	return q
}

// Quantize will round each axis independently to the nearest multiple of step.
func (p Point) Quantize(step float64) Point {
	p.A1 = Quantize(p.A1, step)
	p.A2 = Quantize(p.A2, step)
	return p
}
