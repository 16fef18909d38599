package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tryon.defaults.json"

// TuningConfig holds the tunable parameters of the try-on pipeline. All
// fields are pointers so a partial JSON file overrides only what it names;
// the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Stabilizer params
	SmoothingWindow       *int     `json:"smoothing_window,omitempty"`
	SmoothingBias         *float64 `json:"smoothing_bias,omitempty"`
	MinLandmarkConfidence *float64 `json:"min_landmark_confidence,omitempty"`
	MinPoseConfidence     *float64 `json:"min_pose_confidence,omitempty"`

	// Geometry params
	ReferenceShoulderPixels *float64 `json:"reference_shoulder_pixels,omitempty"`
	DepthScaleMin           *float64 `json:"depth_scale_min,omitempty"`
	DepthScaleMax           *float64 `json:"depth_scale_max,omitempty"`
	ChestDropFraction       *float64 `json:"chest_drop_fraction,omitempty"`
	GarmentWidthFactor      *float64 `json:"garment_width_factor,omitempty"`

	// Session params
	DetectorTimeout       *string `json:"detector_timeout,omitempty"` // duration string like "2s"
	SessionIdleTimeout    *string `json:"session_idle_timeout,omitempty"`
	EvictionSweepInterval *string `json:"eviction_sweep_interval,omitempty"`
	MaxSessions           *int    `json:"max_sessions,omitempty"`

	// Diagnostics params
	DiagnosticsFlushInterval *string `json:"diagnostics_flush_interval,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset, so every
// Get* accessor reports its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Guard against accidentally pointing at something huge.
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory. Panics if
// the file cannot be found; intended for tests and binaries that have
// already validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/tryon/ subpackages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.SmoothingBias != nil && *c.SmoothingBias <= 0 {
		return fmt.Errorf("smoothing_bias must be positive, got %f", *c.SmoothingBias)
	}
	if c.MinLandmarkConfidence != nil {
		if *c.MinLandmarkConfidence < 0 || *c.MinLandmarkConfidence > 1 {
			return fmt.Errorf("min_landmark_confidence must be between 0 and 1, got %f", *c.MinLandmarkConfidence)
		}
	}
	if c.MinPoseConfidence != nil {
		if *c.MinPoseConfidence < 0 || *c.MinPoseConfidence > 1 {
			return fmt.Errorf("min_pose_confidence must be between 0 and 1, got %f", *c.MinPoseConfidence)
		}
	}
	if c.ReferenceShoulderPixels != nil && *c.ReferenceShoulderPixels <= 0 {
		return fmt.Errorf("reference_shoulder_pixels must be positive, got %f", *c.ReferenceShoulderPixels)
	}
	if c.DepthScaleMin != nil && c.DepthScaleMax != nil {
		if *c.DepthScaleMin > *c.DepthScaleMax {
			return fmt.Errorf("depth_scale_min %f exceeds depth_scale_max %f", *c.DepthScaleMin, *c.DepthScaleMax)
		}
	}
	if c.GarmentWidthFactor != nil && *c.GarmentWidthFactor <= 0 {
		return fmt.Errorf("garment_width_factor must be positive, got %f", *c.GarmentWidthFactor)
	}

	for name, d := range map[string]*string{
		"detector_timeout":           c.DetectorTimeout,
		"session_idle_timeout":       c.SessionIdleTimeout,
		"eviction_sweep_interval":    c.EvictionSweepInterval,
		"diagnostics_flush_interval": c.DiagnosticsFlushInterval,
	} {
		if d != nil && *d != "" {
			if _, err := time.ParseDuration(*d); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
			}
		}
	}

	if c.MaxSessions != nil && *c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", *c.MaxSessions)
	}

	return nil
}

// GetSmoothingWindow returns the pose history window size or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5 // default
	}
	return *c.SmoothingWindow
}

// GetSmoothingBias returns the exponent applied to the linear recency
// weights. 1.0 keeps the weights linear; >1 favours recent frames harder.
func (c *TuningConfig) GetSmoothingBias() float64 {
	if c.SmoothingBias == nil {
		return 1.0 // default: linear recency weights
	}
	return *c.SmoothingBias
}

// GetMinLandmarkConfidence returns the per-landmark confidence floor.
func (c *TuningConfig) GetMinLandmarkConfidence() float64 {
	if c.MinLandmarkConfidence == nil {
		return 0.5 // default
	}
	return *c.MinLandmarkConfidence
}

// GetMinPoseConfidence returns the aggregate confidence threshold below
// which a pose is not usable and the overlay freezes.
func (c *TuningConfig) GetMinPoseConfidence() float64 {
	if c.MinPoseConfidence == nil {
		return 0.6 // default
	}
	return *c.MinPoseConfidence
}

// GetReferenceShoulderPixels returns the shoulder span, in pixels, that maps
// to depth scale 1.0.
func (c *TuningConfig) GetReferenceShoulderPixels() float64 {
	if c.ReferenceShoulderPixels == nil {
		return 200.0 // default: ~200px baseline at typical webcam distance
	}
	return *c.ReferenceShoulderPixels
}

// GetDepthScaleMin returns the lower clamp on depth scale.
func (c *TuningConfig) GetDepthScaleMin() float64 {
	if c.DepthScaleMin == nil {
		return 0.4
	}
	return *c.DepthScaleMin
}

// GetDepthScaleMax returns the upper clamp on depth scale.
func (c *TuningConfig) GetDepthScaleMax() float64 {
	if c.DepthScaleMax == nil {
		return 2.5
	}
	return *c.DepthScaleMax
}

// GetChestDropFraction returns the chest anchor offset below the shoulder
// midpoint, as a fraction of shoulder distance.
func (c *TuningConfig) GetChestDropFraction() float64 {
	if c.ChestDropFraction == nil {
		return 0.25
	}
	return *c.ChestDropFraction
}

// GetGarmentWidthFactor returns the garment width relative to shoulder span.
func (c *TuningConfig) GetGarmentWidthFactor() float64 {
	if c.GarmentWidthFactor == nil {
		return 1.4
	}
	return *c.GarmentWidthFactor
}

// GetDetectorTimeout returns the bound on a single detector call.
func (c *TuningConfig) GetDetectorTimeout() time.Duration {
	if c.DetectorTimeout == nil || *c.DetectorTimeout == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.DetectorTimeout)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetSessionIdleTimeout returns how long a session may go without frames
// before the registry discards it.
func (c *TuningConfig) GetSessionIdleTimeout() time.Duration {
	if c.SessionIdleTimeout == nil || *c.SessionIdleTimeout == "" {
		return 120 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SessionIdleTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetEvictionSweepInterval returns how often the registry scans for idle
// sessions.
func (c *TuningConfig) GetEvictionSweepInterval() time.Duration {
	if c.EvictionSweepInterval == nil || *c.EvictionSweepInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.EvictionSweepInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetMaxSessions returns the maximum number of concurrent sessions.
func (c *TuningConfig) GetMaxSessions() int {
	if c.MaxSessions == nil {
		return 256 // default
	}
	return *c.MaxSessions
}

// GetDiagnosticsFlushInterval returns the diagnostics store flush period.
func (c *TuningConfig) GetDiagnosticsFlushInterval() time.Duration {
	if c.DiagnosticsFlushInterval == nil || *c.DiagnosticsFlushInterval == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.DiagnosticsFlushInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
