package crx_arm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"
)

// Config configures the kinematics viewer.
type Config struct {
	// Solver connection
	SolverURL      string        `json:"solver_url" yaml:"solver_url"`                                   // Required: base url of the kinematics solver
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`                     // Per call transport timeout (default: 5s)
	Prewarm        *bool         `json:"prewarm,omitempty" yaml:"prewarm,omitempty"`                     // Warm the solver up at startup (default: true)
	MaxCallsPerSec float64       `json:"max_calls_per_sec,omitempty" yaml:"max_calls_per_sec,omitempty"` // Solver call limit, 0 for unlimited

	// Arm
	Model            string  `json:"model,omitempty" yaml:"model,omitempty"`                           // "crx-10ia" or "crx-10ia-l" (default: crx-10ia-l)
	BaseOriginHeight float64 `json:"base_origin_height,omitempty" yaml:"base_origin_height,omitempty"` // Height of the robot base origin in the scene, mm

	// Interaction
	DebounceMS       int     `json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`               // Quiescence window before solving (default: 250)
	AnimationRate    float64 `json:"animation_rate,omitempty" yaml:"animation_rate,omitempty"`         // Exponential approach rate per second (default: 4.0)
	SnapThresholdDeg float64 `json:"snap_threshold_deg,omitempty" yaml:"snap_threshold_deg,omitempty"` // Per axis snap distance (default: 0.01)
	FPS              int     `json:"fps,omitempty" yaml:"fps,omitempty"`                               // Render loop rate (default: 60)

	// Persisted UI state
	PreferencesFile string `json:"preferences_file,omitempty" yaml:"preferences_file,omitempty"`

	// Not serialized
	Logger logging.Logger `json:"-" yaml:"-"`
}

const (
	defaultDebounce = 250 * time.Millisecond
	defaultFPS      = 60
	defaultModel    = "crx-10ia-l"
)

// Validate ensures all parts of the config are valid
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.SolverURL == "" {
		return nil, nil, fmt.Errorf("solver_url must be specified")
	}

	// Set defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Prewarm == nil {
		prewarm := true
		cfg.Prewarm = &prewarm
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.DebounceMS == 0 {
		cfg.DebounceMS = int(defaultDebounce / time.Millisecond)
	}
	if cfg.AnimationRate == 0 {
		cfg.AnimationRate = DefaultAnimationRate
	}
	if cfg.SnapThresholdDeg == 0 {
		cfg.SnapThresholdDeg = DefaultSnapThresholdDeg
	}
	if cfg.FPS == 0 {
		cfg.FPS = defaultFPS
	}

	// Validate ranges
	if _, err := ParseArmModel(cfg.Model); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.DebounceMS < 0 {
		return nil, nil, fmt.Errorf("debounce_ms must not be negative, got %d", cfg.DebounceMS)
	}
	if cfg.AnimationRate < 0 {
		return nil, nil, fmt.Errorf("animation_rate must be positive, got %f", cfg.AnimationRate)
	}
	if cfg.SnapThresholdDeg < 0 {
		return nil, nil, fmt.Errorf("snap_threshold_deg must be positive, got %f", cfg.SnapThresholdDeg)
	}
	if cfg.FPS < 1 || cfg.FPS > 240 {
		return nil, nil, fmt.Errorf("fps must be between 1 and 240, got %d", cfg.FPS)
	}
	if cfg.MaxCallsPerSec < 0 {
		return nil, nil, fmt.Errorf("max_calls_per_sec must not be negative, got %f", cfg.MaxCallsPerSec)
	}

	return nil, nil, nil
}

// ArmModel returns the configured model. Validate must have succeeded.
func (cfg *Config) ArmModel() ArmModel {
	m, err := ParseArmModel(cfg.Model)
	if err != nil {
		return ModelCRX10iAL
	}
	return m
}

// Debounce returns the quiescence window.
func (cfg *Config) Debounce() time.Duration {
	return time.Duration(cfg.DebounceMS) * time.Millisecond
}

// GatewayOptions derives the solver gateway options.
func (cfg *Config) GatewayOptions() GatewayOptions {
	return GatewayOptions{
		Prewarm:        cfg.Prewarm == nil || *cfg.Prewarm,
		MaxCallsPerSec: cfg.MaxCallsPerSec,
	}
}

// ResolvePreferencesFile returns the absolute preferences path, resolving relative paths
// against VIAM_MODULE_DATA. An empty result means preferences are not persisted.
func (cfg *Config) ResolvePreferencesFile() string {
	if cfg.PreferencesFile == "" || filepath.IsAbs(cfg.PreferencesFile) {
		return cfg.PreferencesFile
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp" // Fallback if VIAM_MODULE_DATA not set
	}
	return filepath.Join(moduleDataDir, cfg.PreferencesFile)
}

// LoadConfigFile reads a JSON or YAML config and validates it.
func LoadConfigFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filePath, err)
	}

	if _, _, err := cfg.Validate(filePath); err != nil {
		return nil, err
	}
	return &cfg, nil
}
