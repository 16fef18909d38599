package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()

	assert.Equal(t, 5, cfg.GetSmoothingWindow())
	assert.Equal(t, 1.0, cfg.GetSmoothingBias())
	assert.Equal(t, 0.5, cfg.GetMinLandmarkConfidence())
	assert.Equal(t, 0.6, cfg.GetMinPoseConfidence())
	assert.Equal(t, 200.0, cfg.GetReferenceShoulderPixels())
	assert.Equal(t, 0.4, cfg.GetDepthScaleMin())
	assert.Equal(t, 2.5, cfg.GetDepthScaleMax())
	assert.Equal(t, 0.25, cfg.GetChestDropFraction())
	assert.Equal(t, 1.4, cfg.GetGarmentWidthFactor())
	assert.Equal(t, 2*time.Second, cfg.GetDetectorTimeout())
	assert.Equal(t, 120*time.Second, cfg.GetSessionIdleTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetEvictionSweepInterval())
	assert.Equal(t, 256, cfg.GetMaxSessions())
	assert.Equal(t, 5*time.Second, cfg.GetDiagnosticsFlushInterval())
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"smoothing_window": 3,
		"detector_timeout": "500ms"
	}`), 0o644))

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.GetSmoothingWindow())
	assert.Equal(t, 500*time.Millisecond, cfg.GetDetectorTimeout())
	// Unset fields keep their defaults.
	assert.Equal(t, 0.6, cfg.GetMinPoseConfidence())
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	t.Parallel()

	_, err := LoadTuningConfig("tuning.yaml")
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"window too small", TuningConfig{SmoothingWindow: ptrInt(0)}, true},
		{"negative bias", TuningConfig{SmoothingBias: ptrFloat64(-1)}, true},
		{"confidence out of range", TuningConfig{MinPoseConfidence: ptrFloat64(1.5)}, true},
		{"landmark floor out of range", TuningConfig{MinLandmarkConfidence: ptrFloat64(-0.1)}, true},
		{"zero reference shoulders", TuningConfig{ReferenceShoulderPixels: ptrFloat64(0)}, true},
		{"inverted depth clamp", TuningConfig{DepthScaleMin: ptrFloat64(3), DepthScaleMax: ptrFloat64(1)}, true},
		{"bad duration", TuningConfig{DetectorTimeout: ptrString("soon")}, true},
		{"zero max sessions", TuningConfig{MaxSessions: ptrInt(0)}, true},
		{"valid overrides", TuningConfig{
			SmoothingWindow:   ptrInt(8),
			MinPoseConfidence: ptrFloat64(0.7),
			DetectorTimeout:   ptrString("1s"),
		}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	assert.Equal(t, 5, cfg.GetSmoothingWindow())
	assert.Equal(t, 0.6, cfg.GetMinPoseConfidence())
	assert.Equal(t, 2*time.Second, cfg.GetDetectorTimeout())
}
