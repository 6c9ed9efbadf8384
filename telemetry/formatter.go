package telemetry

import (
	"fmt"
	"time"
)

// FormatEstimate renders one fused estimate as a CRLF-terminated text line:
//
//	track,<wall time>,<measurement us>,<px>,<py>,<v>,<yaw>
//
// Positions in meters, speed in m/s, yaw in radians.
func FormatEstimate(tsMicros int64, px, py, v, yaw float64) []byte {
	wall := time.UnixMicro(tsMicros).UTC().Format("20060102150405.000")
	return []byte(fmt.Sprintf("track,%s,%d,%.3f,%.3f,%.3f,%.4f\r\n", wall, tsMicros, px, py, v, yaw))
}
