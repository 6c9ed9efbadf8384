package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ctrvPropagate advances a CTRV state (px, py, v, yaw, yawd) by dt seconds
// using the closed-form constant-turn-rate integration. Below YawdEps the
// turn-rate term degenerates and the straight-line branch is used instead.
func ctrvPropagate(x mat.Vector, dt float64) *mat.VecDense {
	px, py := x.AtVec(0), x.AtVec(1)
	v, yaw, yawd := x.AtVec(2), x.AtVec(3), x.AtVec(4)

	var pxp, pyp float64
	if math.Abs(yawd) > YawdEps {
		pxp = px + v/yawd*(math.Sin(yaw+yawd*dt)-math.Sin(yaw))
		pyp = py + v/yawd*(-math.Cos(yaw+yawd*dt)+math.Cos(yaw))
	} else {
		pxp = px + v*dt*math.Cos(yaw)
		pyp = py + v*dt*math.Sin(yaw)
	}

	return mat.NewVecDense(StateDim, []float64{
		pxp,
		pyp,
		v,
		normalizeAngle(yaw + yawd*dt),
		yawd,
	})
}

// ctrvJacobian returns the 5x5 partial-derivative matrix of ctrvPropagate
// with respect to the state, evaluated at x. The same zero-turn-rate branch
// as the propagation applies.
func ctrvJacobian(x mat.Vector, dt float64) *mat.Dense {
	v, yaw, yawd := x.AtVec(2), x.AtVec(3), x.AtVec(4)

	f := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < StateDim; i++ {
		f.Set(i, i, 1)
	}
	f.Set(3, 4, dt)

	if math.Abs(yawd) > YawdEps {
		sy, cy := math.Sin(yaw), math.Cos(yaw)
		syd, cyd := math.Sin(yaw+yawd*dt), math.Cos(yaw+yawd*dt)

		f.Set(0, 2, (syd-sy)/yawd)
		f.Set(0, 3, v/yawd*(cyd-cy))
		f.Set(0, 4, v*dt/yawd*cyd-v/(yawd*yawd)*(syd-sy))

		f.Set(1, 2, (-cyd+cy)/yawd)
		f.Set(1, 3, v/yawd*(syd-sy))
		f.Set(1, 4, v*dt/yawd*syd-v/(yawd*yawd)*(-cyd+cy))
	} else {
		// Below the guard the propagation ignores yawd entirely, so the
		// position partials with respect to it are exactly zero.
		sy, cy := math.Sin(yaw), math.Cos(yaw)

		f.Set(0, 2, dt*cy)
		f.Set(0, 3, -v*dt*sy)

		f.Set(1, 2, dt*sy)
		f.Set(1, 3, v*dt*cy)
	}
	return f
}

// ctrvProcessNoise builds Q = G * diag(stdA^2, stdYawdd^2) * G^T where G maps
// the two acceleration noise terms into the state over dt at heading yaw.
// Every entry scales with dt, so Q vanishes for dt = 0.
func ctrvProcessNoise(yaw, dt, stdA, stdYawdd float64) *mat.Dense {
	g := mat.NewDense(StateDim, 2, []float64{
		0.5 * dt * dt * math.Cos(yaw), 0,
		0.5 * dt * dt * math.Sin(yaw), 0,
		dt, 0,
		0, 0.5 * dt * dt,
		0, dt,
	})
	nu := mat.NewDense(2, 2, []float64{
		stdA * stdA, 0,
		0, stdYawdd * stdYawdd,
	})

	var gn, q mat.Dense
	gn.Mul(g, nu)
	q.Mul(&gn, g.T())
	return &q
}
