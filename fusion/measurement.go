package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SensorType identifies which sensor produced a measurement.
type SensorType int

const (
	SensorLaser SensorType = iota
	SensorRadar
)

func (s SensorType) String() string {
	switch s {
	case SensorLaser:
		return "laser"
	case SensorRadar:
		return "radar"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// Dims returns the measurement-space dimension for the sensor.
func (s SensorType) Dims() int {
	if s == SensorRadar {
		return 3
	}
	return 2
}

// Measurement is one timestamped sensor reading. Laser carries (px, py),
// radar carries (rho, phi, rhodot). Timestamps are microseconds and must be
// non-decreasing across a stream.
type Measurement struct {
	Sensor    SensorType
	Raw       []float64
	Timestamp int64
}

// Validate checks field count and finiteness for the measurement's sensor
// tag. The engine rejects malformed measurements before touching any state.
func (m Measurement) Validate() error {
	want := m.Sensor.Dims()
	if m.Sensor != SensorLaser && m.Sensor != SensorRadar {
		return fmt.Errorf("measurement at t=%d: unknown sensor type %d", m.Timestamp, int(m.Sensor))
	}
	if len(m.Raw) != want {
		return fmt.Errorf("%s measurement at t=%d: got %d values, want %d", m.Sensor, m.Timestamp, len(m.Raw), want)
	}
	for i, v := range m.Raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s measurement at t=%d: value %d is not finite", m.Sensor, m.Timestamp, i)
		}
	}
	return nil
}

// Estimate is the engine output after one processed measurement.
type Estimate struct {
	// X is the state vector (px, py, v, yaw, yawd).
	X *mat.VecDense
	// P is the 5x5 state covariance.
	P *mat.Dense
	// NIS is the normalized innovation squared of this update; zero on the
	// initializing or a skipped measurement.
	NIS       float64
	Sensor    SensorType
	Timestamp int64
	// Skipped is true when the measurement's modality is disabled and the
	// step was consumed without predict or update.
	Skipped bool
}

// Position returns the estimated (px, py).
func (e Estimate) Position() (float64, float64) {
	return e.X.AtVec(0), e.X.AtVec(1)
}

// Velocity resolves the speed/heading state into Cartesian (vx, vy).
func (e Estimate) Velocity() (float64, float64) {
	v, yaw := e.X.AtVec(2), e.X.AtVec(3)
	return v * math.Cos(yaw), v * math.Sin(yaw)
}

// normalizeAngle wraps a into (-pi, pi].
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
