// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/heartaudit/internal/scoring"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Dataset DatasetConfig `toml:"dataset"`
	Audit   AuditConfig   `toml:"audit"`
	Model   ModelConfig   `toml:"model"`
	Advisor AdvisorConfig `toml:"advisor"`
	Log     LogConfig     `toml:"log"`
}

// DatasetConfig maps dataset loading settings.
type DatasetConfig struct {
	URL            *string `toml:"url"`
	TimeoutSeconds *int    `toml:"timeout-seconds"`
	Cache          *bool   `toml:"cache"`
}

// AuditConfig maps fairness report settings.
type AuditConfig struct {
	Threshold *float64 `toml:"threshold"`
	GapAlert  *float64 `toml:"gap-alert"`
}

// ModelConfig overrides the built-in coefficients. Weights not listed keep
// their default value.
type ModelConfig struct {
	Intercept *float64           `toml:"intercept"`
	Weights   map[string]float64 `toml:"weights"`
}

// AdvisorConfig maps the remote explanation settings.
type AdvisorConfig struct {
	Model     *string `toml:"model"`
	BaseURL   *string `toml:"base-url"`
	APIKeyEnv *string `toml:"api-key-env"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Coefficients merges the configured model over the built-in coefficients.
func (m ModelConfig) Coefficients() (scoring.CoefficientSet, error) {
	base := scoring.DefaultCoefficients()
	if m.Intercept == nil && len(m.Weights) == 0 {
		return base, nil
	}
	intercept := base.Intercept()
	if m.Intercept != nil {
		intercept = *m.Intercept
	}
	weights := base.Weights()
	for name, w := range m.Weights {
		weights[name] = w
	}
	coeffs, err := scoring.NewCoefficientSet(intercept, weights)
	if err != nil {
		return scoring.CoefficientSet{}, fmt.Errorf("invalid [model] config: %w", err)
	}
	return coeffs, nil
}
