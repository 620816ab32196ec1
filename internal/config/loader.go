package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in each search location.
const FileName = "duel.yaml"

// SecretEnv overrides relay.secret when set.
const SecretEnv = "BLOCKDUEL_SECRET"

// Load loads the configuration.
// Search order: customPath -> ~/.blockduel/configs/duel.yaml -> ./configs/duel.yaml -> embedded default
// Files are layered over Default, so they only need the keys they change.
func Load(customPath string) (Config, error) {
	cfg, err := load(customPath)
	if err != nil {
		return cfg, err
	}
	if secret := strings.TrimSpace(os.Getenv(SecretEnv)); secret != "" {
		cfg.Relay.Secret = secret
	}
	return cfg, nil
}

func load(customPath string) (Config, error) {
	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return Default(), fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := parse(data)
		if err != nil {
			return Default(), fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	// Try user config directory
	if userCfgPath := userConfigPath(FileName); userCfgPath != "" {
		if data, err := os.ReadFile(userCfgPath); err == nil {
			if cfg, err := parse(data); err == nil {
				return cfg, nil
			}
		}
	}

	// Try local configs directory
	if data, err := os.ReadFile(filepath.Join("configs", FileName)); err == nil {
		if cfg, err := parse(data); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	cfg, err := parse(defaultDuelYAML)
	if err != nil {
		return Default(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

// parse decodes data over the defaults and validates the result.
func parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Engine.QueueDepth > 0, "engine.queue_depth must be positive")
	check(c.Engine.ClearDelay > 0, "engine.clear_delay must be positive")
	check(c.Gravity.Base > 0, "gravity.base must be positive")
	check(c.Gravity.Step >= 0, "gravity.step must not be negative")
	check(c.Gravity.Minimum > 0, "gravity.minimum must be positive")
	check(c.Gravity.Minimum <= c.Gravity.Base, "gravity.minimum must not exceed gravity.base")
	check(c.Rating.KFactor > 0, "rating.k_factor must be positive")
	check(c.Rating.Initial >= 0, "rating.initial must not be negative")
	check(c.Rating.BonusPoints > 0, "rating.bonus_points must be positive")
	check(c.Rating.LeniencySeconds > 0, "rating.leniency_seconds must be positive")
	check(c.Rating.MinGain >= 0 && c.Rating.MaxLoss >= 0, "rating bounds must not be negative")
	check(c.Replication.PublishTimeout > 0, "replication.publish_timeout must be positive")
	check(c.Relay.TokenTTL > 0, "relay.token_ttl must be positive")
	check(c.Rooms.Timeout > 0, "rooms.timeout must be positive")
	check(c.Rooms.CleanupPeriod > 0, "rooms.cleanup_period must be positive")

	return errors.Join(errs...)
}

// userConfigPath returns the path to a config file in the user's config directory.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".blockduel", "configs", filename)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
