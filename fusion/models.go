package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// laserMatrix returns the linear laser observation matrix H (2x5), which
// extracts the position components of the state.
func laserMatrix() *mat.Dense {
	return mat.NewDense(2, StateDim, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
	})
}

// laserNoise returns the laser measurement covariance R.
func laserNoise(cfg Config) *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		cfg.StdLaserPx * cfg.StdLaserPx, 0,
		0, cfg.StdLaserPy * cfg.StdLaserPy,
	})
}

// radarNoise returns the radar measurement covariance R.
func radarNoise(cfg Config) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		cfg.StdRadarRho * cfg.StdRadarRho, 0, 0,
		0, cfg.StdRadarPhi * cfg.StdRadarPhi, 0,
		0, 0, cfg.StdRadarRhoDot * cfg.StdRadarRhoDot,
	})
}

// radarMeasure maps a state to radar measurement space (rho, phi, rhodot).
// Range rate falls back to zero when the range is numerically zero.
func radarMeasure(x mat.Vector) *mat.VecDense {
	px, py := x.AtVec(0), x.AtVec(1)
	v, yaw := x.AtVec(2), x.AtVec(3)

	rho := math.Hypot(px, py)
	phi := math.Atan2(py, px)
	rhodot := 0.0
	if rho > RangeEps {
		rhodot = (px*v*math.Cos(yaw) + py*v*math.Sin(yaw)) / rho
	}
	return mat.NewVecDense(3, []float64{rho, phi, rhodot})
}

// radarJacobian returns the 3x5 partial-derivative matrix of radarMeasure at
// x. When the range is numerically zero the range and range-rate rows cannot
// be formed; they are zeroed so the update discards those components instead
// of dividing by zero.
func radarJacobian(x mat.Vector) *mat.Dense {
	px, py := x.AtVec(0), x.AtVec(1)
	v, yaw := x.AtVec(2), x.AtVec(3)

	h := mat.NewDense(3, StateDim, nil)
	rho2 := px*px + py*py
	rho := math.Sqrt(rho2)
	if rho < RangeEps {
		return h
	}

	h.Set(0, 0, px/rho)
	h.Set(0, 1, py/rho)

	h.Set(1, 0, -py/rho2)
	h.Set(1, 1, px/rho2)

	vx, vy := v*math.Cos(yaw), v*math.Sin(yaw)
	rhodot := (px*vx + py*vy) / rho
	h.Set(2, 0, vx/rho-px*rhodot/rho2)
	h.Set(2, 1, vy/rho-py*rhodot/rho2)
	h.Set(2, 2, (px*math.Cos(yaw)+py*math.Sin(yaw))/rho)
	h.Set(2, 3, (-px*vy+py*vx)/rho)
	return h
}
