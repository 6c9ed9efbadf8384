package fusion

// Engine constants shared by both filter variants.
const (
	// StateDim is the CTRV state dimension (px, py, v, yaw, yawd).
	StateDim = 5
	// AugDim is the sigma-point augmented dimension (state + two noise terms).
	AugDim = 7

	// YawdEps guards the zero-turn-rate branch of the CTRV equations.
	YawdEps = 1e-3
	// RangeEps guards division by near-zero range in the radar model.
	RangeEps = 1e-6

	// Chi-square 95th-percentile critical values used by the consistency
	// tracker: 2 degrees of freedom for laser, 3 for radar.
	ChiSquare95Laser = 5.991
	ChiSquare95Radar = 7.815

	// covJitter is added to the augmented covariance diagonal when a
	// Cholesky factorization fails during sigma point generation.
	covJitter = 1e-9
)
