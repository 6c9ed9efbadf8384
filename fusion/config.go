package fusion

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config carries filter construction parameters. Process noise defaults were
// tuned against the reference dataset; sensor noise values come from the
// sensor datasheets and are not normally changed.
type Config struct {
	UseLaser bool `json:"use_laser"`
	UseRadar bool `json:"use_radar"`

	// Process noise standard deviations: longitudinal acceleration (m/s^2)
	// and yaw acceleration (rad/s^2).
	StdA     float64 `json:"std_a"`
	StdYawdd float64 `json:"std_yawdd"`

	// Laser measurement noise standard deviations (m).
	StdLaserPx float64 `json:"std_laser_px"`
	StdLaserPy float64 `json:"std_laser_py"`

	// Radar measurement noise standard deviations (m, rad, m/s).
	StdRadarRho    float64 `json:"std_radar_rho"`
	StdRadarPhi    float64 `json:"std_radar_phi"`
	StdRadarRhoDot float64 `json:"std_radar_rhodot"`

	// Verbose enables per-step diagnostic logging.
	Verbose bool `json:"verbose"`
}

// DefaultConfig returns the tuning used for the reference dataset.
func DefaultConfig() Config {
	return Config{
		UseLaser:       true,
		UseRadar:       true,
		StdA:           0.6,
		StdYawdd:       0.4,
		StdLaserPx:     0.15,
		StdLaserPy:     0.15,
		StdRadarRho:    0.3,
		StdRadarPhi:    0.03,
		StdRadarRhoDot: 0.3,
	}
}

// LoadConfig reads a JSON tuning file and overlays it on the defaults, so a
// file only needs to list the parameters it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read tuning file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.StdA <= 0 || c.StdYawdd <= 0 {
		return fmt.Errorf("process noise must be positive (std_a=%g, std_yawdd=%g)", c.StdA, c.StdYawdd)
	}
	if c.StdLaserPx <= 0 || c.StdLaserPy <= 0 {
		return fmt.Errorf("laser noise must be positive")
	}
	if c.StdRadarRho <= 0 || c.StdRadarPhi <= 0 || c.StdRadarRhoDot <= 0 {
		return fmt.Errorf("radar noise must be positive")
	}
	return nil
}
