// blockduel is a terminal block-stacking game with real-time duels.
//
// Usage:
//
//	blockduel menu            - Interactive menu for solo play and leaderboards
//	blockduel play            - Play a solo game
//	blockduel duel            - Play one side of a duel through a relay server
//	blockduel match           - Create a match to share with an opponent
//	blockduel serve           - Start the relay and SSH servers
//	blockduel token <player>  - Issue a relay access token
//	blockduel scores          - Show a leaderboard
//	blockduel profile <id>    - Show a player profile
//
// Global flags:
//
//	--config <path>     - Path to duel.yaml
//	--db <path>         - Database path (default from config)
//	--seed <value>      - RNG seed for reproducible piece order
//	--log-level <lvl>   - debug, info, warn or error
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/blockduel/internal/config"
	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/storage"
)

var (
	// Global flags
	flagConfig   string
	flagDBPath   string
	flagSeed     int64
	flagLogLevel string
	flagPlayer   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blockduel",
	Short: "Blockduel - falling blocks, head to head",
	Long: `Blockduel is a terminal block-stacking game. Play solo for a high
score, or duel another player in real time for battle rating.

Available commands:
  menu     - Interactive menu
  play     - Solo game
  duel     - Duel through a relay server
  match    - Create a match to share
  serve    - Start the relay and SSH servers
  token    - Issue a relay token
  scores   - View a leaderboard
  profile  - View a player profile

Examples:
  blockduel play --difficulty hard
  blockduel serve --relay :8080 --ssh :23234
  blockduel scores --by rating`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to duel.yaml")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the database (default from config)")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "RNG seed (0 = random based on time)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagPlayer, "player", os.Getenv("USER"), "Local player id for offline play")

	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(duelCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(scoresCmd)
	rootCmd.AddCommand(profileCmd)
}

// loadConfig reads duel.yaml and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDBPath != "" {
		cfg.Server.DBPath = flagDBPath
	}
	return cfg, nil
}

// newLogger builds a logger at --log-level writing to w.
func newLogger(w *os.File, prefix string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	if lvl, err := log.ParseLevel(flagLogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// fileLogger logs to ~/.blockduel/blockduel.log so the terminal UI stays
// clean. It falls back to discarding output.
func fileLogger(prefix string) (*log.Logger, func()) {
	path := config.ExpandPath(filepath.Join("~", ".blockduel", "blockduel.log"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
			return newLogger(f, prefix), func() { f.Close() }
		}
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return newLogger(os.Stderr, prefix), func() {}
	}
	return newLogger(devNull, prefix), func() { devNull.Close() }
}

// runtimeConfig sizes the screen from the terminal.
func runtimeConfig() core.RuntimeConfig {
	cfg := core.DefaultConfig()
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cfg.ScreenW = w
		cfg.ScreenH = h
	}
	cfg.Seed = flagSeed
	return cfg
}

// openStore opens the local database, warning instead of failing.
func openStore(cfg config.Config) *storage.Store {
	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open database: %v\n", err)
		return nil
	}
	store.SetRatingParams(cfg.Rating.Params())
	return store
}
