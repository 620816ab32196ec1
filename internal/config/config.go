// Package config provides YAML-based configuration loading and difficulty
// presets for blockduel.
package config

import (
	"time"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/rating"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

// Config is the full contents of duel.yaml.
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Gravity     GravityConfig     `yaml:"gravity"`
	Rating      RatingConfig      `yaml:"rating"`
	Replication ReplicationConfig `yaml:"replication"`
	Relay       RelayConfig       `yaml:"relay"`
	Server      ServerConfig      `yaml:"server"`
	Rooms       RoomsConfig       `yaml:"rooms"`
}

// EngineConfig defines the simulation parameters.
type EngineConfig struct {
	QueueDepth int           `yaml:"queue_depth"`
	ClearDelay time.Duration `yaml:"clear_delay"`
}

// Options converts the section into engine options. The generator is left
// for the caller to choose.
func (e EngineConfig) Options() tetris.Options {
	return tetris.Options{QueueDepth: e.QueueDepth, ClearDelay: e.ClearDelay}
}

// GravityConfig defines how fast pieces fall per level.
type GravityConfig struct {
	Base    time.Duration `yaml:"base"`    // Drop period at level 1
	Step    time.Duration `yaml:"step"`    // Reduction per level
	Minimum time.Duration `yaml:"minimum"` // Floor for the drop period
}

// Interval returns the drop period for level.
func (g GravityConfig) Interval(level int) time.Duration {
	if level < 1 {
		level = 1
	}
	d := g.Base - time.Duration(level-1)*g.Step
	if d < g.Minimum {
		return g.Minimum
	}
	return d
}

// RatingConfig tunes the battle rating formula.
type RatingConfig struct {
	KFactor         float64 `yaml:"k_factor"`
	Initial         int     `yaml:"initial"`
	MaxBonus        int     `yaml:"max_bonus"`
	BonusPoints     int     `yaml:"bonus_points"`
	MaxLeniency     int     `yaml:"max_leniency"`
	LeniencySeconds int     `yaml:"leniency_seconds"`
	MinGain         int     `yaml:"min_gain"`
	MaxLoss         int     `yaml:"max_loss"`
}

// Params converts the section into rating parameters.
func (r RatingConfig) Params() rating.Params {
	return rating.Params{
		K:               r.KFactor,
		Initial:         r.Initial,
		MaxBonus:        r.MaxBonus,
		BonusPoints:     r.BonusPoints,
		MaxLeniency:     r.MaxLeniency,
		LeniencySeconds: r.LeniencySeconds,
		MinGain:         r.MinGain,
		MaxLoss:         r.MaxLoss,
	}
}

// ReplicationConfig defines state publishing parameters.
type ReplicationConfig struct {
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// RelayConfig defines the websocket relay and its tokens.
type RelayConfig struct {
	Address  string        `yaml:"address"`
	Secret   string        `yaml:"secret"` // Overridden by BLOCKDUEL_SECRET
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// ServerConfig defines the SSH arcade server.
type ServerConfig struct {
	SSHAddress  string        `yaml:"ssh_address"`
	HostKeyPath string        `yaml:"host_key_path"`
	DBPath      string        `yaml:"db_path"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RoomsConfig defines custom room lifetimes.
type RoomsConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// Coordinator converts the section into coordinator settings.
func (r RoomsConfig) Coordinator() multiplayer.CoordinatorConfig {
	return multiplayer.CoordinatorConfig{RoomTimeout: r.Timeout, CleanupPeriod: r.CleanupPeriod}
}
