package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/identity"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/platform/tui"
	"github.com/vovakirdan/blockduel/internal/relay"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

var (
	flagMatchID  string
	flagOpponent string
	flagStart    string
	flagLead     time.Duration
)

var duelCmd = &cobra.Command{
	Use:   "duel",
	Short: "Play one side of a duel through a relay server",
	Long: `Join a duel hosted on a relay server. Both players run this command
with the same --match and --start; create them with 'blockduel match'.
The local player is the subject of --token.

F surrenders. Esc leaves without surrendering; your board freezes on the
opponent's screen.

Examples:
  blockduel duel --server http://localhost:8080 --token $TOKEN \
    --match 6f1c... --opponent bob --start 2026-01-02T15:04:05Z`,
	Args: cobra.NoArgs,
	RunE: runDuel,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Create a match to share with an opponent",
	Long: `Print a new match id and start time for two players. Each player
then runs the printed 'blockduel duel' command with their own token.

Examples:
  blockduel match --player alice --opponent bob
  blockduel match --player alice --opponent bob --lead 30s`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	addServerFlags(duelCmd)
	duelCmd.Flags().StringVar(&flagMatchID, "match", "", "Match id shared by both players")
	duelCmd.Flags().StringVar(&flagOpponent, "opponent", "", "Opponent player id")
	duelCmd.Flags().StringVar(&flagStart, "start", "", "Match start time (RFC 3339)")
	for _, name := range []string{"server", "token", "match", "opponent", "start"} {
		//nolint:errcheck // flags are registered above
		duelCmd.MarkFlagRequired(name)
	}

	matchCmd.Flags().StringVar(&flagOpponent, "opponent", "", "Opponent player id")
	matchCmd.Flags().DurationVar(&flagLead, "lead", 15*time.Second, "Time until the match starts")
	//nolint:errcheck // flag is registered above
	matchCmd.MarkFlagRequired("opponent")
}

// sharedMatch builds the match both sides agree on. Players are ordered so
// either side derives the same value.
func sharedMatch(id string, a, b multiplayer.PlayerID, start time.Time) multiplayer.Match {
	if b < a {
		a, b = b, a
	}
	return multiplayer.Match{
		ID:        multiplayer.MatchID(id),
		Mode:      multiplayer.MatchModeCustom,
		Players:   [2]multiplayer.PlayerID{a, b},
		StartedAt: start,
	}
}

func runMatch(_ *cobra.Command, _ []string) error {
	if flagPlayer == "" || flagPlayer == flagOpponent {
		return errors.New("need two different players (--player and --opponent)")
	}
	id := multiplayer.NewMatchID()
	start := time.Now().Add(flagLead).UTC().Truncate(time.Second)

	fmt.Printf("Match %s starts at %s\n\n", id, start.Format(time.RFC3339))
	for _, pair := range [][2]string{{flagPlayer, flagOpponent}, {flagOpponent, flagPlayer}} {
		fmt.Printf("  %s:\n    blockduel duel --match %s --opponent %s --start %s --server <url> --token <token>\n",
			pair[0], id, pair[1], start.Format(time.RFC3339))
	}
	return nil
}

func runDuel(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	me, err := identity.Peek(flagToken)
	if err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, flagStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	match := sharedMatch(flagMatchID, multiplayer.PlayerID(me.PlayerID), multiplayer.PlayerID(flagOpponent), start)

	logger, closeLog := fileLogger("duel")
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := relay.Dial(ctx, flagServer, flagToken, logger)
	if err != nil {
		return fmt.Errorf("connecting to relay: %w", err)
	}
	defer client.Close()

	engine := cfg.Engine.Options()
	if flagSeed != 0 {
		engine.Generator = tetris.NewRandomGenerator(flagSeed)
	}
	duel, err := multiplayer.NewDuel(multiplayer.DuelConfig{
		Match:          match,
		Local:          multiplayer.PlayerID(me.PlayerID),
		Transport:      client,
		Recorder:       client,
		Engine:         engine,
		Speed:          cfg.Speed(),
		PublishTimeout: cfg.Replication.PublishTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if wait := time.Until(start); wait > 0 {
		fmt.Printf("Match against %s starts in %s...\n", flagOpponent, wait.Round(time.Second))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return tui.RunDuel(tui.DuelOptions{
		Duel:         duel,
		YouName:      me.DisplayName(),
		OpponentName: flagOpponent,
		Runtime:      runtimeConfig(),
	})
}
