package dataset

import (
	"encoding/csv"
	"fmt"
	"io"

	"tracker-go/fusion"
	"tracker-go/metrics"
)

// outputHeader matches the column layout consumers of the fused CSV expect.
var outputHeader = []string{
	"px", "py", "v", "yaw", "yawrate",
	"nis_laser", "nis_radar",
	"px_true", "py_true", "vx_true", "vy_true",
	"rmse_x", "rmse_y", "rmse_vx", "rmse_vy",
}

// OutputWriter streams fused estimates as CSV, one row per processed
// measurement, with the running RMSE in the trailing columns.
type OutputWriter struct {
	w       *csv.Writer
	started bool
}

// NewOutputWriter wraps w. The header is written lazily on the first row.
func NewOutputWriter(w io.Writer) *OutputWriter {
	return &OutputWriter{w: csv.NewWriter(w)}
}

// WriteRow appends one estimate. The NIS value lands in the column of the
// sensor that produced the update; the other sensor's column holds an empty
// cell so per-sensor series stay easy to slice.
func (o *OutputWriter) WriteRow(est fusion.Estimate, truth GroundTruth, rmse metrics.RMSE) error {
	if !o.started {
		if err := o.w.Write(outputHeader); err != nil {
			return err
		}
		o.started = true
	}

	nisLaser, nisRadar := "", ""
	if !est.Skipped {
		if est.Sensor == fusion.SensorLaser {
			nisLaser = formatFloat(est.NIS)
		} else {
			nisRadar = formatFloat(est.NIS)
		}
	}

	row := []string{
		formatFloat(est.X.AtVec(0)),
		formatFloat(est.X.AtVec(1)),
		formatFloat(est.X.AtVec(2)),
		formatFloat(est.X.AtVec(3)),
		formatFloat(est.X.AtVec(4)),
		nisLaser,
		nisRadar,
		formatFloat(truth.Px),
		formatFloat(truth.Py),
		formatFloat(truth.Vx),
		formatFloat(truth.Vy),
		formatFloat(rmse.X),
		formatFloat(rmse.Y),
		formatFloat(rmse.Vx),
		formatFloat(rmse.Vy),
	}
	return o.w.Write(row)
}

// Flush writes any buffered rows through to the underlying writer.
func (o *OutputWriter) Flush() error {
	o.w.Flush()
	return o.w.Error()
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
