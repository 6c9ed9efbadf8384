package fusion

// ConsistencyTracker accumulates the normalized innovation squared (NIS) of
// every update and counts, per sensor, how often it falls outside the 95%
// chi-square band for that sensor's measurement dimension. A well tuned
// filter exceeds the threshold on roughly 5% of updates; a rate far above
// that means the process noise is too small, far below means too large. The
// statistic is diagnostic only and never feeds back into the filter.
type ConsistencyTracker struct {
	steps int

	laserUpdates  int
	laserExceeded int
	radarUpdates  int
	radarExceeded int

	lastNIS float64
}

// ConsistencyReport is a snapshot of the tracker counters.
type ConsistencyReport struct {
	Steps int

	LaserUpdates  int
	LaserExceeded int
	RadarUpdates  int
	RadarExceeded int

	LastNIS float64
}

// Record books one update's NIS value under the given sensor.
func (c *ConsistencyTracker) Record(sensor SensorType, nis float64) {
	c.steps++
	c.lastNIS = nis
	switch sensor {
	case SensorLaser:
		c.laserUpdates++
		if nis > ChiSquare95Laser {
			c.laserExceeded++
		}
	case SensorRadar:
		c.radarUpdates++
		if nis > ChiSquare95Radar {
			c.radarExceeded++
		}
	}
}

// Report returns the current counters.
func (c *ConsistencyTracker) Report() ConsistencyReport {
	return ConsistencyReport{
		Steps:         c.steps,
		LaserUpdates:  c.laserUpdates,
		LaserExceeded: c.laserExceeded,
		RadarUpdates:  c.radarUpdates,
		RadarExceeded: c.radarExceeded,
		LastNIS:       c.lastNIS,
	}
}

// ExceedRate returns the fraction of updates for the sensor whose NIS was
// above the 95% threshold, or zero when the sensor has seen no updates.
func (r ConsistencyReport) ExceedRate(sensor SensorType) float64 {
	switch sensor {
	case SensorLaser:
		if r.LaserUpdates == 0 {
			return 0
		}
		return float64(r.LaserExceeded) / float64(r.LaserUpdates)
	case SensorRadar:
		if r.RadarUpdates == 0 {
			return 0
		}
		return float64(r.RadarExceeded) / float64(r.RadarUpdates)
	}
	return 0
}
