package fusion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	cfg := DefaultConfig()

	f, err := New("ekf", cfg)
	require.NoError(t, err)
	assert.IsType(t, &EKF{}, f)

	f, err = New("ukf", cfg)
	require.NoError(t, err)
	assert.IsType(t, &UKF{}, f)

	_, err = New("pf", cfg)
	assert.Error(t, err)
}

func TestDisabledSensorIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRadar = false

	for _, variant := range []string{"ekf", "ukf"} {
		t.Run(variant, func(t *testing.T) {
			f, err := New(variant, cfg)
			require.NoError(t, err)

			// A disabled modality never initializes the filter.
			est, err := f.ProcessMeasurement(Measurement{
				Sensor: SensorRadar, Raw: []float64{5, 0.1, 0.5}, Timestamp: 1000,
			})
			require.NoError(t, err)
			assert.True(t, est.Skipped)
			assert.False(t, f.Initialized())

			_, err = f.ProcessMeasurement(Measurement{
				Sensor: SensorLaser, Raw: []float64{1, 1}, Timestamp: 2000,
			})
			require.NoError(t, err)
			before := f.State()

			// Nor does it advance the clock or move the state afterwards.
			est, err = f.ProcessMeasurement(Measurement{
				Sensor: SensorRadar, Raw: []float64{5, 0.1, 0.5}, Timestamp: 500_000,
			})
			require.NoError(t, err)
			assert.True(t, est.Skipped)
			assert.True(t, mat.Equal(before, f.State()))
			assert.Zero(t, f.Consistency().Steps)

			// The next laser measurement uses the elapsed time since the
			// last laser update, not since the skipped radar arrival.
			est, err = f.ProcessMeasurement(Measurement{
				Sensor: SensorLaser, Raw: []float64{1.1, 1.0}, Timestamp: 600_000,
			})
			require.NoError(t, err)
			assert.False(t, est.Skipped)
			assert.Equal(t, 1, f.Consistency().Steps)
		})
	}
}

func TestMalformedMeasurementRejected(t *testing.T) {
	f := NewEKF(DefaultConfig())

	cases := []Measurement{
		{Sensor: SensorLaser, Raw: []float64{1}, Timestamp: 0},
		{Sensor: SensorRadar, Raw: []float64{1, 2}, Timestamp: 0},
		{Sensor: SensorLaser, Raw: []float64{math.NaN(), 1}, Timestamp: 0},
		{Sensor: SensorRadar, Raw: []float64{1, math.Inf(1), 0}, Timestamp: 0},
		{Sensor: SensorType(9), Raw: []float64{1, 2}, Timestamp: 0},
	}
	for _, m := range cases {
		_, err := f.ProcessMeasurement(m)
		assert.Error(t, err, "%s with raw %v", m.Sensor, m.Raw)
		assert.False(t, f.Initialized())
	}
}

// Two position-only steps 100ms apart: the posterior position must land
// strictly between the stationary prediction and the raw measurement, for
// either variant, proving the gain blends rather than passes through.
func TestLaserUpdateBlends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StdA = 0.6
	cfg.StdYawdd = 0.4

	for _, variant := range []string{"ekf", "ukf"} {
		t.Run(variant, func(t *testing.T) {
			f, err := New(variant, cfg)
			require.NoError(t, err)

			est, err := f.ProcessMeasurement(Measurement{
				Sensor: SensorLaser, Raw: []float64{1.0, 1.0}, Timestamp: 0,
			})
			require.NoError(t, err)
			px, py := est.Position()
			assert.Equal(t, 1.0, px)
			assert.Equal(t, 1.0, py)
			assert.Zero(t, est.X.AtVec(2))

			est, err = f.ProcessMeasurement(Measurement{
				Sensor: SensorLaser, Raw: []float64{1.2, 1.05}, Timestamp: 100_000,
			})
			require.NoError(t, err)

			px, py = est.Position()
			assert.Greater(t, px, 1.0)
			assert.Less(t, px, 1.2)
			assert.Greater(t, py, 1.0)
			assert.Less(t, py, 1.05)
			assert.Greater(t, est.NIS, 0.0)
		})
	}
}

// Both variants fed the same noiseless near-straight trajectory should agree
// closely: with mild nonlinearity the linearization error is small.
func TestVariantsAgreeOnMildTrajectory(t *testing.T) {
	cfg := DefaultConfig()
	ekf := NewEKF(cfg)
	ukf := NewUKF(cfg)

	const dt = 0.1
	truth := mat.NewVecDense(StateDim, []float64{1, 1, 2.0, 0.2, 0.05})

	for i := 0; i <= 80; i++ {
		if i > 0 {
			truth = ctrvPropagate(truth, dt)
		}
		m := Measurement{
			Sensor:    SensorLaser,
			Raw:       []float64{truth.AtVec(0), truth.AtVec(1)},
			Timestamp: int64(float64(i) * dt * 1e6),
		}
		_, err := ekf.ProcessMeasurement(m)
		require.NoError(t, err)
		_, err = ukf.ProcessMeasurement(m)
		require.NoError(t, err)

		if i > 20 {
			ex, ey := ekf.State().AtVec(0), ekf.State().AtVec(1)
			ux, uy := ukf.State().AtVec(0), ukf.State().AtVec(1)
			require.Less(t, math.Hypot(ex-ux, ey-uy), 0.2, "variants diverged at step %d", i)
		}
	}
}

// With the filter model matching the data generator exactly, NIS is
// chi-square distributed and should exceed the 95% threshold on roughly 5%
// of updates.
func TestNISConsistencyRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRadar = false

	for _, variant := range []string{"ekf", "ukf"} {
		t.Run(variant, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			f, err := New(variant, cfg)
			require.NoError(t, err)

			const dt = 0.05
			truth := mat.NewVecDense(StateDim, []float64{0, 0, 4.0, 0.3, 0.1})

			for i := 0; i <= 2000; i++ {
				if i > 0 {
					// Drive the truth with the same noise model the filter
					// assumes: piecewise-constant accelerations over dt.
					nuA := rng.NormFloat64() * cfg.StdA
					nuYawdd := rng.NormFloat64() * cfg.StdYawdd
					yaw := truth.AtVec(3)
					truth = ctrvPropagate(truth, dt)
					truth.SetVec(0, truth.AtVec(0)+0.5*dt*dt*math.Cos(yaw)*nuA)
					truth.SetVec(1, truth.AtVec(1)+0.5*dt*dt*math.Sin(yaw)*nuA)
					truth.SetVec(2, truth.AtVec(2)+dt*nuA)
					truth.SetVec(3, normalizeAngle(truth.AtVec(3)+0.5*dt*dt*nuYawdd))
					truth.SetVec(4, truth.AtVec(4)+dt*nuYawdd)
				}
				_, err := f.ProcessMeasurement(Measurement{
					Sensor: SensorLaser,
					Raw: []float64{
						truth.AtVec(0) + rng.NormFloat64()*cfg.StdLaserPx,
						truth.AtVec(1) + rng.NormFloat64()*cfg.StdLaserPy,
					},
					Timestamp: int64(float64(i) * dt * 1e6),
				})
				require.NoError(t, err)
			}

			rep := f.Consistency()
			require.Equal(t, 2000, rep.LaserUpdates)
			rate := rep.ExceedRate(SensorLaser)
			assert.Greater(t, rate, 0.01, "filter overconfident: exceed rate %.3f", rate)
			assert.Less(t, rate, 0.12, "filter underconfident: exceed rate %.3f", rate)
		})
	}
}

func TestConsistencyTracker(t *testing.T) {
	var c ConsistencyTracker
	c.Record(SensorLaser, 1.0)
	c.Record(SensorLaser, 6.5) // above 5.991
	c.Record(SensorRadar, 7.9) // above 7.815
	c.Record(SensorRadar, 7.8) // below
	c.Record(SensorRadar, 0.2)

	rep := c.Report()
	assert.Equal(t, 5, rep.Steps)
	assert.Equal(t, 2, rep.LaserUpdates)
	assert.Equal(t, 1, rep.LaserExceeded)
	assert.Equal(t, 3, rep.RadarUpdates)
	assert.Equal(t, 1, rep.RadarExceeded)
	assert.InDelta(t, 0.2, rep.LastNIS, 1e-15)
	assert.InDelta(t, 0.5, rep.ExceedRate(SensorLaser), 1e-15)
	assert.InDelta(t, 1.0/3.0, rep.ExceedRate(SensorRadar), 1e-12)

	var empty ConsistencyReport
	assert.Zero(t, empty.ExceedRate(SensorLaser))
	assert.Zero(t, empty.ExceedRate(SensorRadar))
}
