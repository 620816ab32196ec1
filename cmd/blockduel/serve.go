package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/blockduel/internal/identity"
	"github.com/vovakirdan/blockduel/internal/platform/tui"
	"github.com/vovakirdan/blockduel/internal/relay"
	"github.com/vovakirdan/blockduel/internal/storage"
)

var (
	flagRelayAddr   string
	flagSSHAddr     string
	flagHostKey     string
	flagIdleTimeout time.Duration
	flagNoSSH       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay and SSH servers",
	Long: `Start the relay server (WebSocket board replication plus the results,
scores and leaderboard API) and an SSH server with the full game menu,
custom rooms and matchmaking.

Both servers share one database and one set of board records, so SSH
players can be spectated and ranked like relay players.

The relay signing secret comes from the config file or BLOCKDUEL_SECRET.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise, uses server.host_key_path from the config

Examples:
  blockduel serve
  blockduel serve --relay :9090 --ssh :2222
  blockduel serve --no-ssh

Users can connect with:
  ssh localhost -p 23234`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagRelayAddr, "relay", "", "Relay HTTP address (default from config)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH server address (default from config)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to host key file (default from config)")
	serveCmd.Flags().DurationVar(&flagIdleTimeout, "idle-timeout", 0, "Idle timeout before disconnecting SSH sessions")
	serveCmd.Flags().BoolVar(&flagNoSSH, "no-ssh", false, "Only run the relay server")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagRelayAddr != "" {
		cfg.Relay.Address = flagRelayAddr
	}
	if flagSSHAddr != "" {
		cfg.Server.SSHAddress = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.Server.HostKeyPath = flagHostKey
	}
	if flagIdleTimeout > 0 {
		cfg.Server.IdleTimeout = flagIdleTimeout
	}

	logger := newLogger(os.Stderr, "blockduel")

	issuer, err := identity.NewIssuer(cfg.Relay.Secret, cfg.Relay.Issuer, cfg.Relay.TokenTTL)
	if err != nil {
		return fmt.Errorf("relay secret: %w (set relay.secret or %s)", err, "BLOCKDUEL_SECRET")
	}

	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()
	store.SetRatingParams(cfg.Rating.Params())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relaySrv := relay.NewServer(issuer, store, logger.WithPrefix("relay"))

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- relaySrv.ListenAndServe(ctx, cfg.Relay.Address) }()

	if !flagNoSSH {
		sshSrv, err := tui.NewSSHServer(cfg, store, relaySrv.Records(), logger.WithPrefix("ssh"))
		if err != nil {
			stop()
			<-errCh
			return err
		}
		running++
		go func() { errCh <- sshSrv.ListenAndServe(ctx) }()
		fmt.Printf("Connect with: ssh localhost -p %s\n", portOf(cfg.Server.SSHAddress))
	}
	fmt.Println("Press Ctrl+C to stop")

	var errs []error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
			stop() // one server failing takes the other down
		}
	}
	return errors.Join(errs...)
}

// portOf returns the port part of a host:port address.
func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return addr
}
