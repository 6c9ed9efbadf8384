package fusion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const sigmaCount = 2*AugDim + 1

// UKF is the sigma-point filter variant: instead of linearizing, it
// deterministically samples the belief (augmented with the two process noise
// terms), pushes the samples through the true nonlinear functions and
// reconstructs mean and covariance from the weighted result. The spread
// parameter is the conventional lambda = 3 - n_aug.
type UKF struct {
	core

	lambda  float64
	weights []float64

	rLaser *mat.Dense
	rRadar *mat.Dense
}

// NewUKF creates a sigma-point filter. The state stays uninitialized until
// the first enabled measurement arrives.
func NewUKF(cfg Config) *UKF {
	lambda := 3.0 - AugDim
	w := make([]float64, sigmaCount)
	w[0] = lambda / (lambda + AugDim)
	for i := 1; i < sigmaCount; i++ {
		w[i] = 0.5 / (lambda + AugDim)
	}
	return &UKF{
		core:    newCore(cfg),
		lambda:  lambda,
		weights: w,
		rLaser:  laserNoise(cfg),
		rRadar:  radarNoise(cfg),
	}
}

// ProcessMeasurement implements Filter. The sigma points generated for the
// prediction are carried into the update so the cross-covariance between
// state space and measurement space stays consistent.
func (f *UKF) ProcessMeasurement(m Measurement) (Estimate, error) {
	dt, proceed, est, err := f.begin(m)
	if !proceed {
		return est, err
	}

	sigAug, err := f.generateSigmaPoints()
	if err != nil {
		return Estimate{}, fmt.Errorf("%s step at t=%d: %w", m.Sensor, m.Timestamp, err)
	}

	sigPred := predictSigmaPoints(sigAug, dt)
	xp := sigmaMean(sigPred, f.weights, 3)
	pp := sigmaCovariance(sigPred, xp, f.weights, 3)

	// Transform the predicted sigma points into measurement space.
	var zsig *mat.Dense
	var r *mat.Dense
	angleRow := -1
	switch m.Sensor {
	case SensorLaser:
		zsig = mat.NewDense(2, sigmaCount, nil)
		for c := 0; c < sigmaCount; c++ {
			zsig.Set(0, c, sigPred.At(0, c))
			zsig.Set(1, c, sigPred.At(1, c))
		}
		r = f.rLaser
	case SensorRadar:
		zsig = mat.NewDense(3, sigmaCount, nil)
		for c := 0; c < sigmaCount; c++ {
			z := radarMeasure(sigPred.ColView(c))
			zsig.Set(0, c, z.AtVec(0))
			zsig.Set(1, c, z.AtVec(1))
			zsig.Set(2, c, z.AtVec(2))
		}
		r = f.rRadar
		angleRow = 1
	}

	zpred := sigmaMean(zsig, f.weights, angleRow)
	s := sigmaCovariance(zsig, zpred, f.weights, angleRow)
	s.Add(s, r)

	tc := crossCovariance(sigPred, xp, zsig, zpred, f.weights, angleRow)

	var sinv mat.Dense
	if err := sinv.Inverse(s); err != nil {
		return Estimate{}, fmt.Errorf("%s update at t=%d: innovation covariance not invertible: %w", m.Sensor, m.Timestamp, err)
	}

	var k mat.Dense
	k.Mul(tc, &sinv)

	z := mat.NewVecDense(len(m.Raw), append([]float64(nil), m.Raw...))
	var y mat.VecDense
	y.SubVec(z, zpred)
	if angleRow >= 0 {
		y.SetVec(angleRow, normalizeAngle(y.AtVec(angleRow)))
	}

	var ky mat.VecDense
	ky.MulVec(&k, &y)
	x := mat.VecDenseCopyOf(xp)
	x.AddVec(x, &ky)

	var ks, ksk mat.Dense
	ks.Mul(&k, s)
	ksk.Mul(&ks, k.T())
	p := mat.DenseCopyOf(pp)
	p.Sub(p, &ksk)

	var sy mat.VecDense
	sy.MulVec(&sinv, &y)
	nis := mat.Dot(&y, &sy)

	return f.commit(m, x, p, nis)
}

// generateSigmaPoints builds the 15 augmented sigma points from the current
// belief and the two process noise variances, using a Cholesky square root of
// the scaled augmented covariance. A failed factorization gets one retry
// with a jittered diagonal before the step is abandoned.
func (f *UKF) generateSigmaPoints() (*mat.Dense, error) {
	xaug := mat.NewVecDense(AugDim, nil)
	for i := 0; i < StateDim; i++ {
		xaug.SetVec(i, f.x.AtVec(i))
	}

	paug := mat.NewSymDense(AugDim, nil)
	for i := 0; i < StateDim; i++ {
		for j := i; j < StateDim; j++ {
			paug.SetSym(i, j, 0.5*(f.p.At(i, j)+f.p.At(j, i)))
		}
	}
	paug.SetSym(5, 5, f.cfg.StdA*f.cfg.StdA)
	paug.SetSym(6, 6, f.cfg.StdYawdd*f.cfg.StdYawdd)

	var chol mat.Cholesky
	if !chol.Factorize(paug) {
		for i := 0; i < AugDim; i++ {
			paug.SetSym(i, i, paug.At(i, i)+covJitter)
		}
		if !chol.Factorize(paug) {
			return nil, errors.New("augmented covariance is not positive definite")
		}
	}
	var l mat.TriDense
	chol.LTo(&l)

	scale := math.Sqrt(f.lambda + AugDim)
	sig := mat.NewDense(AugDim, sigmaCount, nil)
	for i := 0; i < AugDim; i++ {
		sig.Set(i, 0, xaug.AtVec(i))
	}
	for j := 0; j < AugDim; j++ {
		for i := 0; i < AugDim; i++ {
			sig.Set(i, 1+j, xaug.AtVec(i)+scale*l.At(i, j))
			sig.Set(i, 1+AugDim+j, xaug.AtVec(i)-scale*l.At(i, j))
		}
	}
	return sig, nil
}

// predictSigmaPoints pushes each augmented sigma point through the CTRV
// model with its own noise sample baked in, producing the 5x15 predicted
// state sigma matrix.
func predictSigmaPoints(sigAug *mat.Dense, dt float64) *mat.Dense {
	pred := mat.NewDense(StateDim, sigmaCount, nil)
	for c := 0; c < sigmaCount; c++ {
		col := sigAug.ColView(c)
		yaw := col.AtVec(3)
		nuA := col.AtVec(5)
		nuYawdd := col.AtVec(6)

		base := ctrvPropagate(col, dt)

		pred.Set(0, c, base.AtVec(0)+0.5*dt*dt*math.Cos(yaw)*nuA)
		pred.Set(1, c, base.AtVec(1)+0.5*dt*dt*math.Sin(yaw)*nuA)
		pred.Set(2, c, base.AtVec(2)+dt*nuA)
		pred.Set(3, c, normalizeAngle(base.AtVec(3)+0.5*dt*dt*nuYawdd))
		pred.Set(4, c, base.AtVec(4)+dt*nuYawdd)
	}
	return pred
}

// sigmaMean reconstructs the weighted mean of sigma points stored in the
// columns of sig. An angle row is accumulated as weighted offsets from the
// central sigma point so wraparound cannot corrupt the sum.
func sigmaMean(sig *mat.Dense, w []float64, angleRow int) *mat.VecDense {
	rows, cols := sig.Dims()
	mean := mat.NewVecDense(rows, nil)
	for c := 0; c < cols; c++ {
		for i := 0; i < rows; i++ {
			mean.SetVec(i, mean.AtVec(i)+w[c]*sig.At(i, c))
		}
	}
	if angleRow >= 0 {
		ref := sig.At(angleRow, 0)
		acc := 0.0
		for c := 0; c < cols; c++ {
			acc += w[c] * normalizeAngle(sig.At(angleRow, c)-ref)
		}
		mean.SetVec(angleRow, normalizeAngle(ref+acc))
	}
	return mean
}

// sigmaCovariance reconstructs the weighted covariance of the sigma point
// deviations from mean, wrapping the angle row of each deviation.
func sigmaCovariance(sig *mat.Dense, mean *mat.VecDense, w []float64, angleRow int) *mat.Dense {
	rows, cols := sig.Dims()
	p := mat.NewDense(rows, rows, nil)
	d := make([]float64, rows)
	for c := 0; c < cols; c++ {
		for i := 0; i < rows; i++ {
			d[i] = sig.At(i, c) - mean.AtVec(i)
		}
		if angleRow >= 0 {
			d[angleRow] = normalizeAngle(d[angleRow])
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < rows; j++ {
				p.Set(i, j, p.At(i, j)+w[c]*d[i]*d[j])
			}
		}
	}
	return p
}

// crossCovariance accumulates the weighted state/measurement cross terms
// from the same sigma point set used for the prediction.
func crossCovariance(xsig *mat.Dense, xmean *mat.VecDense, zsig *mat.Dense, zmean *mat.VecDense, w []float64, zAngleRow int) *mat.Dense {
	xrows, cols := xsig.Dims()
	zrows, _ := zsig.Dims()
	tc := mat.NewDense(xrows, zrows, nil)
	dx := make([]float64, xrows)
	dz := make([]float64, zrows)
	for c := 0; c < cols; c++ {
		for i := 0; i < xrows; i++ {
			dx[i] = xsig.At(i, c) - xmean.AtVec(i)
		}
		dx[3] = normalizeAngle(dx[3])
		for i := 0; i < zrows; i++ {
			dz[i] = zsig.At(i, c) - zmean.AtVec(i)
		}
		if zAngleRow >= 0 {
			dz[zAngleRow] = normalizeAngle(dz[zAngleRow])
		}
		for i := 0; i < xrows; i++ {
			for j := 0; j < zrows; j++ {
				tc.Set(i, j, tc.At(i, j)+w[c]*dx[i]*dz[j])
			}
		}
	}
	return tc
}
