package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/config"
	"github.com/vovakirdan/blockduel/internal/platform/tui"
	"github.com/vovakirdan/blockduel/internal/relay"
)

var (
	flagDifficulty string
	flagServer     string
	flagToken      string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a solo game",
	Long: `Start a solo game. The score is saved to the local database, or to
a relay server when --server is given.

Controls:
  Left/Right  - Move
  Down        - Soft drop
  Up/X        - Rotate clockwise
  Z           - Rotate counter-clockwise
  C           - Hold
  Space       - Hard drop
  R           - Restart (after game over)
  Esc         - Back
  Q/Ctrl+C    - Quit

Difficulty options:
  easy   - Slower gravity, gentler speed-up
  normal - Configured gravity
  hard   - Faster gravity, steeper speed-up
  fixed  - No speed-up with level

Examples:
  blockduel play
  blockduel play --difficulty hard
  blockduel play --server http://localhost:8080 --token $TOKEN`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagDifficulty, "difficulty", "", "Difficulty preset: easy, normal, hard, fixed")
	addServerFlags(playCmd)
}

// addServerFlags registers the relay connection flags on cmd.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagServer, "server", "", "Relay server base URL, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&flagToken, "token", os.Getenv("BLOCKDUEL_TOKEN"), "Relay access token")
}

func runPlay(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	preset, err := config.ParsePreset(flagDifficulty)
	if err != nil {
		return err
	}
	config.ApplyPreset(&cfg, preset)

	logger, closeLog := fileLogger("play")
	defer closeLog()

	opts := tui.GameOptions{
		Player:      flagPlayer,
		DisplayName: flagPlayer,
		Config:      cfg,
		Runtime:     runtimeConfig(),
		Logger:      logger,
	}

	if flagServer != "" {
		opts.Scores = relay.NewClient(flagServer, flagToken, logger)
	} else if store := openStore(cfg); store != nil {
		defer store.Close()
		opts.Scores = store
	}

	if err := tui.Run(opts); err != nil {
		return fmt.Errorf("running game: %w", err)
	}
	return nil
}
