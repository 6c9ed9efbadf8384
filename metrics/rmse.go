// Package metrics accumulates accuracy statistics of fused estimates against
// ground truth.
package metrics

import "math"

// RMSE holds the root mean squared error of the four Cartesian components.
type RMSE struct {
	X, Y, Vx, Vy float64
}

// Accumulator keeps running squared-error sums so the RMSE after every step
// is available without retaining the full history.
type Accumulator struct {
	n                int
	sx, sy, svx, svy float64
}

// Add books one estimate/truth pair. Velocities are Cartesian; callers
// resolve the speed/heading state with Estimate.Velocity first.
func (a *Accumulator) Add(px, py, vx, vy, tpx, tpy, tvx, tvy float64) {
	a.n++
	a.sx += (px - tpx) * (px - tpx)
	a.sy += (py - tpy) * (py - tpy)
	a.svx += (vx - tvx) * (vx - tvx)
	a.svy += (vy - tvy) * (vy - tvy)
}

// Count returns the number of pairs accumulated.
func (a *Accumulator) Count() int { return a.n }

// Value returns the RMSE over everything accumulated so far, or zeros when
// nothing has been added.
func (a *Accumulator) Value() RMSE {
	if a.n == 0 {
		return RMSE{}
	}
	n := float64(a.n)
	return RMSE{
		X:  math.Sqrt(a.sx / n),
		Y:  math.Sqrt(a.sy / n),
		Vx: math.Sqrt(a.svx / n),
		Vy: math.Sqrt(a.svy / n),
	}
}
