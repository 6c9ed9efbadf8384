package fusion

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// EKF is the linearized filter variant: covariance is propagated through a
// first-order Taylor expansion of the CTRV equations and, for radar, of the
// measurement function, via their Jacobians.
type EKF struct {
	core

	hLaser *mat.Dense
	rLaser *mat.Dense
	rRadar *mat.Dense
}

// NewEKF creates a linearized filter. The state stays uninitialized until
// the first enabled measurement arrives.
func NewEKF(cfg Config) *EKF {
	return &EKF{
		core:   newCore(cfg),
		hLaser: laserMatrix(),
		rLaser: laserNoise(cfg),
		rRadar: radarNoise(cfg),
	}
}

// ProcessMeasurement implements Filter.
func (f *EKF) ProcessMeasurement(m Measurement) (Estimate, error) {
	dt, proceed, est, err := f.begin(m)
	if !proceed {
		return est, err
	}

	// Predict: mean through the process model, covariance through its
	// Jacobian evaluated at the current mean.
	xp := ctrvPropagate(f.x, dt)
	jac := ctrvJacobian(f.x, dt)
	q := ctrvProcessNoise(f.x.AtVec(3), dt, f.cfg.StdA, f.cfg.StdYawdd)

	var fp, pp mat.Dense
	fp.Mul(jac, f.p)
	pp.Mul(&fp, jac.T())
	pp.Add(&pp, q)

	var h, r *mat.Dense
	var zpred *mat.VecDense
	angleRow := -1
	switch m.Sensor {
	case SensorLaser:
		h, r = f.hLaser, f.rLaser
		zpred = mat.NewVecDense(2, nil)
		zpred.MulVec(h, xp)
	case SensorRadar:
		h, r = radarJacobian(xp), f.rRadar
		zpred = radarMeasure(xp)
		angleRow = 1
	}

	z := mat.NewVecDense(len(m.Raw), append([]float64(nil), m.Raw...))
	x, p, nis, err := linearUpdate(xp, &pp, z, zpred, h, r, angleRow)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s update at t=%d: %w", m.Sensor, m.Timestamp, err)
	}
	return f.commit(m, x, p, nis)
}

// linearUpdate applies the standard Kalman correction given a predicted
// state/covariance, a (possibly linearized) observation matrix h and sensor
// noise r. angleRow names the innovation component that is an angle and must
// be wrapped before use, or -1. The inputs are not mutated.
func linearUpdate(xp *mat.VecDense, pp *mat.Dense, z, zpred *mat.VecDense, h, r *mat.Dense, angleRow int) (*mat.VecDense, *mat.Dense, float64, error) {
	var y mat.VecDense
	y.SubVec(z, zpred)
	if angleRow >= 0 {
		y.SetVec(angleRow, normalizeAngle(y.AtVec(angleRow)))
	}

	var ph, s mat.Dense
	ph.Mul(pp, h.T())
	s.Mul(h, &ph)
	s.Add(&s, r)

	var sinv mat.Dense
	if err := sinv.Inverse(&s); err != nil {
		return nil, nil, 0, fmt.Errorf("innovation covariance not invertible: %w", err)
	}

	var k mat.Dense
	k.Mul(&ph, &sinv)

	var ky mat.VecDense
	ky.MulVec(&k, &y)
	x := mat.VecDenseCopyOf(xp)
	x.AddVec(x, &ky)

	var kh mat.Dense
	kh.Mul(&k, h)
	ikh := identity(StateDim)
	ikh.Sub(ikh, &kh)
	var p mat.Dense
	p.Mul(ikh, pp)

	var sy mat.VecDense
	sy.MulVec(&sinv, &y)
	nis := mat.Dot(&y, &sy)

	return x, &p, nis, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
