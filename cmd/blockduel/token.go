package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/identity"
)

var (
	flagTokenName string
	flagNewPlayer bool
)

var tokenCmd = &cobra.Command{
	Use:   "token [player-id]",
	Short: "Issue a relay access token",
	Long: `Sign a token for a player with the relay secret from the config or
BLOCKDUEL_SECRET. Pass --new to mint a fresh random player id.

Examples:
  blockduel token alice --name "Alice"
  blockduel token --new --name "Guest"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenName, "name", "", "Display name carried in the token")
	tokenCmd.Flags().BoolVar(&flagNewPlayer, "new", false, "Generate a new player id")
}

func runToken(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var id string
	switch {
	case flagNewPlayer:
		id = identity.NewPlayerID()
	case len(args) == 1:
		id = args[0]
	default:
		return fmt.Errorf("give a player id or --new")
	}

	issuer, err := identity.NewIssuer(cfg.Relay.Secret, cfg.Relay.Issuer, cfg.Relay.TokenTTL)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(identity.Identity{PlayerID: id, Name: flagTokenName})
	if err != nil {
		return err
	}
	if flagNewPlayer {
		fmt.Printf("# player %s\n", id)
	}
	fmt.Println(token)
	return nil
}
