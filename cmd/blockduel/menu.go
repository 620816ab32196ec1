package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/platform/tui"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Start the interactive menu",
	Long: `Start blockduel in interactive menu mode.

Use arrow keys or j/k to navigate, Enter to select.
After a game ends, you return to the menu to play again.
Rooms and online battles are available over SSH (see 'blockduel serve').

Controls:
  Up/Down/j/k  - Navigate menu
  Enter/Space  - Select
  Tab          - Leaderboard
  Q            - Quit

Examples:
  blockduel menu
  blockduel menu --db ./blockduel.db`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func runMenu(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := fileLogger("menu")
	defer closeLog()

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	rt := runtimeConfig()
	for {
		menuResult, err := tui.RunMenu(rt, flagPlayer)
		if err != nil {
			return err
		}
		rt = menuResult.Config

		if menuResult.Quit {
			return nil
		}

		if menuResult.WantsScoreboard {
			var source tui.LeaderboardSource
			if store != nil {
				source = store
			}
			goBack, sbErr := tui.RunScoreboard(source, flagPlayer, rt.ScreenW, rt.ScreenH)
			if sbErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", sbErr)
			}
			if !goBack {
				return nil
			}
			continue
		}

		if menuResult.Choice != tui.ChoiceSolo {
			continue
		}
		opts := tui.GameOptions{
			Player:      flagPlayer,
			DisplayName: flagPlayer,
			Config:      cfg,
			Runtime:     rt,
			Logger:      logger,
		}
		if store != nil {
			opts.Scores = store
		}
		opts.Runtime.Seed = 0
		if err := tui.Run(opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error running game: %v\n", err)
		}
	}
}
