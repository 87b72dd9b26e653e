package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and validates configuration. This is the
// primary entry point for configuration loading (teacher's config.Initialize
// shape, adapted to vaultflow's single vaultflow.yaml file).
//
// Steps:
//  1. Start from DefaultConfig.
//  2. If vaultflow.yaml exists under configDir, read it, expand
//     environment variables, and unmarshal it as an overlay.
//  3. Merge the overlay over the defaults.
//  4. Validate the result.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	defaults := DefaultConfig()

	overlay, err := loadOverlay(configDir)
	if err != nil {
		return nil, err
	}

	cfg, err := mergeOverlay(defaults, overlay)
	if err != nil {
		return nil, err
	}
	cfg.configDir = configDir

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"vault_path", cfg.VaultPath,
		"execution_mode", cfg.Execution.Mode,
		"approval_rules", len(cfg.Approval.Rules))
	return cfg, nil
}

func loadOverlay(configDir string) (*Config, error) {
	overlay := &Config{}
	path := filepath.Join(configDir, "vaultflow.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return overlay, nil
	}
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, overlay); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return overlay, nil
}
