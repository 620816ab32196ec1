package config

import (
	"fmt"
	"strings"
	"time"
)

// DifficultyPreset represents a named gravity profile for solo play.
type DifficultyPreset string

const (
	DifficultyEasy   DifficultyPreset = "easy"
	DifficultyNormal DifficultyPreset = "normal"
	DifficultyHard   DifficultyPreset = "hard"
	DifficultyFixed  DifficultyPreset = "fixed"
)

// ParsePreset parses a preset name. An empty name is normal.
func ParsePreset(s string) (DifficultyPreset, error) {
	switch p := DifficultyPreset(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DifficultyNormal, nil
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyFixed:
		return p, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (easy, normal, hard, fixed)", s)
	}
}

// IsFixedPreset returns true if the preset disables speed progression.
func IsFixedPreset(preset DifficultyPreset) bool {
	return preset == DifficultyFixed
}

// ApplyPreset adjusts the gravity section for a solo difficulty preset.
// Duels always use the configured gravity so both players fall at the same
// speed.
func ApplyPreset(cfg *Config, preset DifficultyPreset) {
	switch preset {
	case DifficultyEasy:
		cfg.Gravity.Base += cfg.Gravity.Base / 2
		cfg.Gravity.Step = cfg.Gravity.Step * 3 / 4
	case DifficultyHard:
		cfg.Gravity.Base = max(cfg.Gravity.Minimum, cfg.Gravity.Base*6/10)
		cfg.Gravity.Step = cfg.Gravity.Step * 3 / 2
	case DifficultyFixed:
		cfg.Gravity.Step = 0
	}
}

// Speed returns the gravity function for the engine runner.
func (c Config) Speed() func(level int) time.Duration {
	return c.Gravity.Interval
}
