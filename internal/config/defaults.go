package config

import (
	_ "embed"
	"time"

	"github.com/vovakirdan/blockduel/internal/tetris"
)

//go:embed defaults/duel.yaml
var defaultDuelYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			QueueDepth: tetris.QueueDepth,
			ClearDelay: tetris.DefaultClearDelay,
		},
		Gravity: GravityConfig{
			Base:    tetris.BaseGravity,
			Step:    tetris.GravityStep,
			Minimum: tetris.MinimumGravity,
		},
		Rating: RatingConfig{
			KFactor:         32,
			Initial:         1000,
			MaxBonus:        10,
			BonusPoints:     1000,
			MaxLeniency:     5,
			LeniencySeconds: 30,
			MinGain:         10,
			MaxLoss:         25,
		},
		Replication: ReplicationConfig{
			PublishTimeout: 2 * time.Second,
		},
		Relay: RelayConfig{
			Address:  ":8080",
			Issuer:   "blockduel",
			TokenTTL: 24 * time.Hour,
		},
		Server: ServerConfig{
			SSHAddress:  ":23234",
			HostKeyPath: ".ssh/blockduel_ed25519",
			DBPath:      "~/.blockduel/blockduel.db",
			IdleTimeout: 30 * time.Minute,
		},
		Rooms: RoomsConfig{
			Timeout:       2 * time.Minute,
			CleanupPeriod: 30 * time.Second,
		},
	}
}
