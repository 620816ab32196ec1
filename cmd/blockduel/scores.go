package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/platform/tui"
	"github.com/vovakirdan/blockduel/internal/relay"
	"github.com/vovakirdan/blockduel/internal/storage"
)

var (
	flagBy    string
	flagLimit int
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show a leaderboard",
	Long: `Display the top players by best solo score or by battle rating,
from the local database or a relay server.

Examples:
  blockduel scores
  blockduel scores --by rating --limit 20
  blockduel scores --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runScores,
}

var profileCmd = &cobra.Command{
	Use:   "profile <player-id>",
	Short: "Show a player profile",
	Long: `Display a player's rating, record, level and rank.

Examples:
  blockduel profile alice
  blockduel profile alice --server http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runProfile,
}

func init() {
	scoresCmd.Flags().StringVar(&flagBy, "by", relay.ByScore, "Ordering: score or rating")
	scoresCmd.Flags().IntVar(&flagLimit, "limit", 10, "Number of players to show")
	scoresCmd.Flags().StringVar(&flagServer, "server", "", "Relay server base URL")
	profileCmd.Flags().StringVar(&flagServer, "server", "", "Relay server base URL")
}

// boardSource is a leaderboard reader that can also look up profiles.
type boardSource interface {
	tui.LeaderboardSource
	GetProfile(ctx context.Context, id string) (*storage.Profile, error)
}

// remoteSource adapts the relay client's profile lookup.
type remoteSource struct{ *relay.Client }

func (r remoteSource) GetProfile(ctx context.Context, id string) (*storage.Profile, error) {
	p, err := r.Profile(ctx, id)
	if relay.StatusCode(err) == http.StatusNotFound {
		return nil, nil
	}
	return p, err
}

// openSource returns the relay when --server is set, else the local store.
func openSource() (boardSource, func(), error) {
	if flagServer != "" {
		c := relay.NewClient(flagServer, "", log.New(os.Stderr))
		return remoteSource{c}, func() {}, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func runScores(_ *cobra.Command, _ []string) error {
	src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		profiles []storage.Profile
		title    string
	)
	switch flagBy {
	case relay.ByScore:
		title = "Best Score"
		profiles, err = src.TopScores(ctx, flagLimit)
	case relay.ByRating:
		title = "Battle Rating"
		profiles, err = src.TopRated(ctx, flagLimit)
	default:
		return fmt.Errorf("unknown ordering %q (score, rating)", flagBy)
	}
	if err != nil {
		return fmt.Errorf("retrieving leaderboard: %w", err)
	}

	fmt.Printf("Leaderboard - %s\n", title)
	fmt.Println()

	if len(profiles) == 0 {
		fmt.Println("No players yet.")
		fmt.Println()
		fmt.Println("Play 'blockduel play' to set the first high score!")
		return nil
	}

	fmt.Printf("  %-4s  %-20s  %-8s  %-8s  %-7s  %s\n", "Rank", "Player", "Score", "Rating", "W/L", "Tier")
	fmt.Printf("  %-4s  %-20s  %-8s  %-8s  %-7s  %s\n", "----", "------", "-----", "------", "---", "----")
	for i, p := range profiles {
		name := p.DisplayName
		if name == "" {
			name = p.PlayerID
		}
		fmt.Printf("  %-4d  %-20.20s  %-8d  %-8d  %-7s  %s\n",
			i+1, name, p.BestScore, p.Rating, fmt.Sprintf("%d/%d", p.Wins, p.Losses), p.Rank().Name)
	}
	return nil
}

func runProfile(_ *cobra.Command, args []string) error {
	src, closeSrc, err := openSource()
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := src.GetProfile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("retrieving profile: %w", err)
	}
	if p == nil {
		return fmt.Errorf("no profile for %q", args[0])
	}

	name := p.DisplayName
	if name == "" {
		name = p.PlayerID
	}
	fmt.Printf("%s (%s)\n\n", name, p.PlayerID)
	fmt.Printf("  Rating      %d\n", p.Rating)
	fmt.Printf("  Record      %d W / %d L\n", p.Wins, p.Losses)
	fmt.Printf("  Best score  %d (%s)\n", p.BestScore, p.Rank().Name)
	fmt.Printf("  Level       %d (%d XP)\n", p.Level(), p.TotalXP)
	fmt.Printf("  Games       %d, %d lines\n", p.TotalGames, p.TotalLines)
	return nil
}
