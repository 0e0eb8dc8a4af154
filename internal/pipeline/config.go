package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds every knob of a pipeline run.
type Config struct {
	RiverThreshold    uint    `json:"river_threshold"`    // min accumulation to call a cell river
	SeaLevel          uint    `json:"sea_level"`          // raw 16-bit height code
	MinBasinArea      uint    `json:"min_basin_area"`     // basin-merge threshold in cells, 0 = off
	Resolution        int     `json:"resolution"`         // max(width,height) for processing, 0 = full
	MetricsResolution int     `json:"metrics_resolution"` // output resolution of the metrics rasters
	TerrainSize       float64 `json:"terrain_size"`       // world extent in meters
	MinAltitude       float64 `json:"min_altitude"`       // meters at sample 0
	MaxAltitude       float64 `json:"max_altitude"`       // meters at sample 65535
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RiverThreshold:    10000,
		SeaLevel:          0,
		MinBasinArea:      0,
		Resolution:        1024,
		MetricsResolution: 512,
		TerrainSize:       16384.0,
		MinAltitude:       0.0,
		MaxAltitude:       200.0,
	}
}

// LoadConfig reads a JSON config file. A missing file is not an error and
// returns nil.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["t"] && !explicitFlags["threshold"] {
		cfg.RiverThreshold = fromFile.RiverThreshold
	}
	if !explicitFlags["s"] && !explicitFlags["sea-level"] {
		cfg.SeaLevel = fromFile.SeaLevel
	}
	if !explicitFlags["m"] && !explicitFlags["min-area"] {
		cfg.MinBasinArea = fromFile.MinBasinArea
	}
	if !explicitFlags["r"] && !explicitFlags["resolution"] {
		cfg.Resolution = fromFile.Resolution
	}
	if !explicitFlags["metrics-resolution"] {
		cfg.MetricsResolution = fromFile.MetricsResolution
	}
	if !explicitFlags["terrain-size"] {
		cfg.TerrainSize = fromFile.TerrainSize
	}
	if !explicitFlags["min-altitude"] {
		cfg.MinAltitude = fromFile.MinAltitude
	}
	if !explicitFlags["max-altitude"] {
		cfg.MaxAltitude = fromFile.MaxAltitude
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SeaLevel > 65535 {
		return fmt.Errorf("sea level %d out of 16-bit range", c.SeaLevel)
	}
	if c.TerrainSize <= 0 {
		return fmt.Errorf("terrain size must be positive, got %g", c.TerrainSize)
	}
	if c.MaxAltitude <= c.MinAltitude {
		return fmt.Errorf("max altitude %g must exceed min altitude %g", c.MaxAltitude, c.MinAltitude)
	}
	if c.MetricsResolution <= 0 {
		return fmt.Errorf("metrics resolution must be positive, got %d", c.MetricsResolution)
	}
	return nil
}
