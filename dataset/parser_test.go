package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-go/fusion"
)

const sampleData = `
L	8.44818	0.251553	1477010443349642	8.45	0.25	-3.00029	0.0
R	8.60363	0.0290616	-2.99903	1477010443399637	8.6	0.25	-3.00029	0	0	0

# trailing comment line
L	8.45582	0.253997	1477010443449633	8.45	0.25	-3.00029	0.0	0.1	0.01
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleData))
	require.NoError(t, err)
	require.Len(t, records, 3)

	l := records[0]
	assert.Equal(t, fusion.SensorLaser, l.Measurement.Sensor)
	assert.Equal(t, []float64{8.44818, 0.251553}, l.Measurement.Raw)
	assert.Equal(t, int64(1477010443349642), l.Measurement.Timestamp)
	assert.Equal(t, GroundTruth{Px: 8.45, Py: 0.25, Vx: -3.00029, Vy: 0}, l.Truth)

	r := records[1]
	assert.Equal(t, fusion.SensorRadar, r.Measurement.Sensor)
	assert.Equal(t, []float64{8.60363, 0.0290616, -2.99903}, r.Measurement.Raw)
	assert.Equal(t, int64(1477010443399637), r.Measurement.Timestamp)

	// Extra ground truth columns (yaw, yawrate) are tolerated and dropped.
	assert.Equal(t, GroundTruth{Px: 8.45, Py: 0.25, Vx: -3.00029, Vy: 0}, records[2].Truth)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"unknown tag", "X 1 2 1000 0 0 0 0"},
		{"laser too short", "L 1 2 1000 0 0 0"},
		{"radar too short", "R 1 2 3 1000 0 0"},
		{"bad float", "L 1 abc 1000 0 0 0 0"},
		{"bad timestamp", "L 1 2 10.5 0 0 0 0"},
		{"non-finite", "L 1 NaN 1000 0 0 0 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.line))
			assert.Error(t, err)
		})
	}
}

func TestParseLine(t *testing.T) {
	rec, err := ParseLine("R 5.0 0.1 0.5 1000 4.97 0.49 2 0\n")
	require.NoError(t, err)
	assert.Equal(t, fusion.SensorRadar, rec.Measurement.Sensor)
	assert.Equal(t, GroundTruth{Px: 4.97, Py: 0.49, Vx: 2, Vy: 0}, rec.Truth)
}
