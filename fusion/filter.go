package fusion

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Filter is the single entry point shared by both estimator variants. One
// instance tracks one object and must be driven from a single goroutine;
// measurements are expected in non-decreasing timestamp order.
type Filter interface {
	// ProcessMeasurement runs one predict/update cycle (or initializes the
	// filter on the first measurement) and returns the resulting estimate.
	// On error the filter state is left exactly as it was.
	ProcessMeasurement(m Measurement) (Estimate, error)
	// State returns a copy of the current state vector.
	State() *mat.VecDense
	// Covariance returns a copy of the current state covariance.
	Covariance() *mat.Dense
	// Initialized reports whether a first measurement has seeded the state.
	Initialized() bool
	// Consistency returns the NIS counters accumulated so far.
	Consistency() ConsistencyReport
}

// New constructs the requested filter variant ("ekf" or "ukf").
func New(variant string, cfg Config) (Filter, error) {
	switch variant {
	case "ekf":
		return NewEKF(cfg), nil
	case "ukf":
		return NewUKF(cfg), nil
	default:
		return nil, fmt.Errorf("unknown filter variant %q (want ekf or ukf)", variant)
	}
}

// core holds the belief state and bookkeeping shared by both variants.
type core struct {
	cfg Config

	x *mat.VecDense // (px, py, v, yaw, yawd)
	p *mat.Dense    // 5x5

	initialized   bool
	prevTimestamp int64

	nis ConsistencyTracker
}

func newCore(cfg Config) core {
	return core{
		cfg: cfg,
		x:   mat.NewVecDense(StateDim, nil),
		p:   mat.NewDense(StateDim, StateDim, nil),
	}
}

func (c *core) enabled(s SensorType) bool {
	if s == SensorRadar {
		return c.cfg.UseRadar
	}
	return c.cfg.UseLaser
}

// begin runs the shared front half of ProcessMeasurement: validation, the
// disabled-sensor skip, initialization on the first measurement, and the
// elapsed-time computation. The returned bool reports whether the variant
// should go on to predict and update.
func (c *core) begin(m Measurement) (dt float64, proceed bool, est Estimate, err error) {
	if err := m.Validate(); err != nil {
		return 0, false, Estimate{}, err
	}
	// A disabled modality is consumed without predict or update and without
	// advancing the internal clock.
	if !c.enabled(m.Sensor) {
		e := c.snapshot(m)
		e.Skipped = true
		return 0, false, e, nil
	}
	if !c.initialized {
		c.initialize(m)
		if c.cfg.Verbose {
			log.Printf("filter initialized from %s at t=%d: x=%v", m.Sensor, m.Timestamp, mat.Formatted(c.x.T()))
		}
		return 0, false, c.snapshot(m), nil
	}
	if m.Timestamp < c.prevTimestamp {
		return 0, false, Estimate{}, fmt.Errorf("%s measurement at t=%d precedes previous t=%d", m.Sensor, m.Timestamp, c.prevTimestamp)
	}
	return float64(m.Timestamp-c.prevTimestamp) / 1e6, true, Estimate{}, nil
}

// initialize seeds the state from the first measurement. Position comes
// straight from a laser reading or from the polar components of a radar
// reading; speed, heading and turn rate start neutral since one measurement
// cannot determine them. The initial covariance is a moderate diagonal
// informed by the seeding sensor's noise.
func (c *core) initialize(m Measurement) {
	var px, py, posVar float64
	switch m.Sensor {
	case SensorLaser:
		px, py = m.Raw[0], m.Raw[1]
		posVar = math.Max(c.cfg.StdLaserPx, c.cfg.StdLaserPy)
		posVar *= posVar
	case SensorRadar:
		rho, phi := m.Raw[0], m.Raw[1]
		px = rho * math.Cos(phi)
		py = rho * math.Sin(phi)
		posVar = c.cfg.StdRadarRho*c.cfg.StdRadarRho + rho*rho*c.cfg.StdRadarPhi*c.cfg.StdRadarPhi
	}
	c.x.SetVec(0, px)
	c.x.SetVec(1, py)
	c.x.SetVec(2, 0)
	c.x.SetVec(3, 0)
	c.x.SetVec(4, 0)

	c.p.Zero()
	c.p.Set(0, 0, posVar)
	c.p.Set(1, 1, posVar)
	c.p.Set(2, 2, 1)
	c.p.Set(3, 3, 1)
	c.p.Set(4, 4, 1)

	c.prevTimestamp = m.Timestamp
	c.initialized = true
}

// commit installs the post-update state. The belief is only mutated here so a
// failed step leaves the previous state intact.
func (c *core) commit(m Measurement, x *mat.VecDense, p *mat.Dense, nis float64) (Estimate, error) {
	if !allFinite(x) || !allFiniteMat(p) {
		return Estimate{}, fmt.Errorf("%s update at t=%d produced a non-finite state", m.Sensor, m.Timestamp)
	}
	x.SetVec(3, normalizeAngle(x.AtVec(3)))
	symmetrize(p)

	c.x.CopyVec(x)
	c.p.Copy(p)
	c.prevTimestamp = m.Timestamp
	c.nis.Record(m.Sensor, nis)

	if c.cfg.Verbose {
		log.Printf("%s update at t=%d: nis=%.3f x=%v", m.Sensor, m.Timestamp, nis, mat.Formatted(c.x.T()))
	}
	e := c.snapshot(m)
	e.NIS = nis
	return e, nil
}

func (c *core) snapshot(m Measurement) Estimate {
	return Estimate{
		X:         mat.VecDenseCopyOf(c.x),
		P:         mat.DenseCopyOf(c.p),
		Sensor:    m.Sensor,
		Timestamp: m.Timestamp,
	}
}

func (c *core) State() *mat.VecDense   { return mat.VecDenseCopyOf(c.x) }
func (c *core) Covariance() *mat.Dense { return mat.DenseCopyOf(c.p) }
func (c *core) Initialized() bool      { return c.initialized }

func (c *core) Consistency() ConsistencyReport { return c.nis.Report() }

// symmetrize averages p with its transpose in place to control floating
// point drift after covariance updates.
func symmetrize(p *mat.Dense) {
	r, _ := p.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (p.At(i, j) + p.At(j, i))
			p.Set(i, j, v)
			p.Set(j, i, v)
		}
	}
}

func allFinite(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func allFiniteMat(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if x := m.At(i, j); math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
