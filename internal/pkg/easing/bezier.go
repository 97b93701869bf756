// Package easing provides timing functions mapping [0,1] onto [0,1].
package easing

import (
	"fmt"
	"math"
)

// Func is a timing function.
type Func func(t float64) float64

// UnitBezier is a cubic Bezier timing curve through (0,0) and (1,1) with
// control points (p1x, p1y) and (p2x, p2y), as used by CSS transitions.
type UnitBezier struct {
	ax, bx, cx float64
	ay, by, cy float64
}

// NewUnitBezier builds the curve with the given control points.
func NewUnitBezier(p1x, p1y, p2x, p2y float64) UnitBezier {
	cx := 3 * p1x
	bx := 3*(p2x-p1x) - cx
	cy := 3 * p1y
	by := 3*(p2y-p1y) - cy
	return UnitBezier{
		ax: 1 - cx - bx, bx: bx, cx: cx,
		ay: 1 - cy - by, by: by, cy: cy,
	}
}

func (b UnitBezier) sampleX(t float64) float64 { return ((b.ax*t+b.bx)*t + b.cx) * t }
func (b UnitBezier) sampleY(t float64) float64 { return ((b.ay*t+b.by)*t + b.cy) * t }
func (b UnitBezier) slopeX(t float64) float64  { return (3*b.ax*t+2*b.bx)*t + b.cx }

// solveX finds the curve parameter whose x equals x: a few Newton steps,
// then bisection when the slope is too flat.
func (b UnitBezier) solveX(x, epsilon float64) float64 {
	t := x
	for i := 0; i < 8; i++ {
		dx := b.sampleX(t) - x
		if math.Abs(dx) < epsilon {
			return t
		}
		d := b.slopeX(t)
		if math.Abs(d) < 1e-6 {
			break
		}
		t -= dx / d
	}

	lo, hi := 0.0, 1.0
	t = x
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	for i := 0; i < 64 && lo < hi; i++ {
		sx := b.sampleX(t)
		if math.Abs(sx-x) < epsilon {
			return t
		}
		if x > sx {
			lo = t
		} else {
			hi = t
		}
		t = (hi-lo)*0.5 + lo
	}
	return t
}

// Solve evaluates the timing function. The end points are exact.
func (b UnitBezier) Solve(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return b.sampleY(b.solveX(x, 1e-6))
}

var (
	ease      = NewUnitBezier(0.25, 0.1, 0.25, 1)
	easeIn    = NewUnitBezier(0.42, 0, 1, 1)
	easeOut   = NewUnitBezier(0, 0, 0.58, 1)
	easeInOut = NewUnitBezier(0.42, 0, 0.58, 1)
)

// Ease is the default camera curve, cubic-bezier(0.25, 0.1, 0.25, 1).
func Ease(t float64) float64 { return ease.Solve(t) }

// Linear is the identity timing function.
func Linear(t float64) float64 { return t }

// ByName resolves a CSS-style timing function name.
func ByName(name string) (Func, error) {
	switch name {
	case "", "ease":
		return Ease, nil
	case "linear":
		return Linear, nil
	case "ease-in":
		return easeIn.Solve, nil
	case "ease-out":
		return easeOut.Solve, nil
	case "ease-in-out":
		return easeInOut.Solve, nil
	}
	return nil, fmt.Errorf("unknown easing %q", name)
}
