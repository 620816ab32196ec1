package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/google/uuid"

	"github.com/vovakirdan/blockduel/internal/config"
	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/storage"
)

// sessionEventBuffer bounds coordinator events queued for one session.
const sessionEventBuffer = 16

// SSHServer serves the game over SSH. Every connection gets its own Bubble
// Tea program; rooms, matchmaking and board records are shared.
type SSHServer struct {
	config      config.Config
	server      *ssh.Server
	store       *storage.Store // may be nil
	records     replication.Transport
	sessions    *multiplayer.SessionRegistry
	coordinator *multiplayer.Coordinator
	logger      *log.Logger
}

// NewSSHServer creates the SSH server. records carries duel boards between
// sessions and may be shared with a relay server; store may be nil.
func NewSSHServer(cfg config.Config, store *storage.Store, records replication.Transport, logger *log.Logger) (*SSHServer, error) {
	if logger == nil {
		logger = log.Default()
	}
	if records == nil {
		records = replication.NewMemoryTransport()
	}

	sessions := multiplayer.NewSessionRegistry()
	srv := &SSHServer{
		config:      cfg,
		store:       store,
		records:     records,
		sessions:    sessions,
		coordinator: multiplayer.NewCoordinator(cfg.Rooms.Coordinator(), sessions, logger.WithPrefix("rooms")),
		logger:      logger,
	}

	// Resolve host key path
	hostKeyPath := config.ExpandPath(cfg.Server.HostKeyPath)
	if hostKeyPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", homeErr)
		}
		hostKeyPath = filepath.Join(home, ".blockduel", "host_key")
	}

	// Ensure host key directory exists
	if mkdirErr := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); mkdirErr != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", mkdirErr)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Server.SSHAddress),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.Server.IdleTimeout),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.sessionMiddleware,
		),
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler creates a Bubble Tea program for each SSH session.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, ok := sshSession.Pty()
	if !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		return nil, nil
	}

	rt := core.RuntimeConfig{
		ScreenW: pty.Window.Width,
		ScreenH: pty.Window.Height,
		Seed:    time.Now().UnixNano(),
	}

	player := multiplayer.PlayerID(sshSession.User())
	if s.store != nil {
		ctx, cancel := context.WithTimeout(sshSession.Context(), 5*time.Second)
		if _, err := s.store.EnsureProfile(ctx, string(player), sshSession.User()); err != nil {
			s.logger.Warn("could not ensure profile", "user", player, "error", err)
		}
		cancel()
	}

	session := multiplayer.NewChannelSession(multiplayer.SessionID(uuid.NewString()), player, sessionEventBuffer)
	s.sessions.Register(session)
	go func() {
		<-sshSession.Context().Done()
		s.coordinator.Send(multiplayer.SessionDisconnectedMsg{SessionID: session.ID()})
		s.sessions.Unregister(session.ID())
		session.Close()
	}()

	model := NewSessionModel(SessionDeps{
		Config:      s.config,
		Runtime:     rt,
		Store:       s.store,
		Records:     s.records,
		Coordinator: s.coordinator,
		Session:     session,
		Logger:      s.logger,
	})

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// sessionMiddleware logs SSH session events.
func (s *SSHServer) sessionMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until ctx is done.
func (s *SSHServer) ListenAndServe(ctx context.Context) error {
	s.logger.Info("starting SSH server", "address", s.config.Server.SSHAddress)
	s.coordinator.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.coordinator.Stop()
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.coordinator.Stop()
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *SSHServer) Addr() string {
	return s.config.Server.SSHAddress
}

// SessionDeps is everything a session model needs from its server.
type SessionDeps struct {
	Config      config.Config
	Runtime     core.RuntimeConfig
	Store       *storage.Store // may be nil
	Records     replication.Transport
	Coordinator *multiplayer.Coordinator
	Session     *multiplayer.ChannelSession
	Logger      *log.Logger
}

type screen int

const (
	screenMenu screen = iota
	screenSolo
	screenRooms
	screenDuel
	screenSpectate
	screenScoreboard
)

// SessionModel manages one connection's flow: menu, solo games, rooms,
// duels, spectating and leaderboards. It owns the session's event stream
// and forwards events to the room flow.
type SessionModel struct {
	deps     SessionDeps
	config   core.RuntimeConfig
	screen   screen
	menu     MenuModel
	solo     GameModel
	rooms    RoomsModel
	duel     DuelModel
	watch    SpectateModel
	board    ScoreboardModel
	notice   string
	quitting bool
}

// NewSessionModel creates a new session model.
func NewSessionModel(deps SessionDeps) SessionModel {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	m := SessionModel{deps: deps, config: deps.Runtime}
	m.menu = NewMenuModel(m.config, m.player(), deps.Coordinator != nil)
	return m
}

func (m SessionModel) player() string {
	if m.deps.Session == nil {
		return ""
	}
	return string(m.deps.Session.Player())
}

// Init starts listening for coordinator events.
func (m SessionModel) Init() tea.Cmd {
	return tea.Batch(m.menu.Init(), m.waitForEvent())
}

// waitForEvent returns a command that waits for coordinator events.
func (m SessionModel) waitForEvent() tea.Cmd {
	if m.deps.Session == nil {
		return nil
	}
	events := m.deps.Session.Events()
	return func() tea.Msg {
		evt, ok := <-events
		if !ok {
			return nil
		}
		return evt
	}
}

// Update handles messages for the session.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		m.config.ScreenW = wsm.Width
		m.config.ScreenH = wsm.Height
	}
	if evt, ok := msg.(multiplayer.SessionEvent); ok {
		return m.handleEvent(evt)
	}

	switch m.screen {
	case screenSolo:
		return m.updateSolo(msg)
	case screenRooms:
		return m.updateRooms(msg)
	case screenDuel:
		return m.updateDuel(msg)
	case screenSpectate:
		return m.updateSpectate(msg)
	case screenScoreboard:
		return m.updateScoreboard(msg)
	}
	return m.updateMenu(msg)
}

func (m SessionModel) handleEvent(evt multiplayer.SessionEvent) (tea.Model, tea.Cmd) {
	wait := m.waitForEvent()
	if m.screen != screenRooms {
		// A room can close after its match started; nothing to show.
		return m, wait
	}
	updated, _ := m.rooms.Update(evt)
	m.rooms = updated.(RoomsModel)
	next, cmd := m.afterRooms()
	return next, tea.Batch(cmd, wait)
}

// toMenu returns to a fresh main menu.
func (m SessionModel) toMenu() (tea.Model, tea.Cmd) {
	m.screen = screenMenu
	m.menu = NewMenuModel(m.config, m.player(), m.deps.Coordinator != nil)
	return m, m.menu.Init()
}

// updateMenu handles updates when in menu mode.
func (m SessionModel) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	newMenu, cmd := m.menu.Update(msg)
	if menuModel, ok := newMenu.(MenuModel); ok {
		m.menu = menuModel
	}

	if m.menu.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	m.config = m.menu.Config()
	m.notice = ""

	if m.menu.WantsScoreboard() {
		var source LeaderboardSource
		if m.deps.Store != nil {
			source = m.deps.Store
		}
		m.board = NewScoreboardModel(source, m.player(), m.config.ScreenW, m.config.ScreenH)
		m.screen = screenScoreboard
		return m, m.board.Init()
	}

	selected := m.menu.Selected()
	if selected == nil {
		return m, cmd
	}
	switch selected.Choice {
	case ChoiceSolo:
		opts := GameOptions{
			Player:      m.player(),
			DisplayName: m.player(),
			Config:      m.deps.Config,
			Runtime:     m.config,
			Logger:      m.deps.Logger,
		}
		if m.deps.Store != nil {
			opts.Scores = m.deps.Store
		}
		opts.Runtime.Seed = 0
		m.solo = NewGameModel(opts)
		m.screen = screenSolo
		return m, m.solo.Init()

	case ChoiceRoom, ChoiceQueue:
		m.rooms = NewRoomsModel(m.deps.Session.ID(), m.deps.Coordinator, selected.Choice == ChoiceQueue, m.config.ScreenW, m.config.ScreenH)
		m.screen = screenRooms
		return m, m.rooms.Init()
	}
	return m.toMenu()
}

func (m SessionModel) updateSolo(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.solo.Update(msg)
	if gameModel, ok := newModel.(GameModel); ok {
		m.solo = gameModel
	}
	switch {
	case m.solo.IsQuitting():
		m.quitting = true
		return m, tea.Quit
	case m.solo.BackToMenu():
		return m.toMenu()
	}
	return m, cmd
}

func (m SessionModel) updateRooms(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.rooms.Update(msg)
	if roomsModel, ok := newModel.(RoomsModel); ok {
		m.rooms = roomsModel
	}
	if m.rooms.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	next, after := m.afterRooms()
	return next, tea.Batch(cmd, after)
}

// afterRooms moves on once the room flow has an outcome.
func (m SessionModel) afterRooms() (tea.Model, tea.Cmd) {
	if m.rooms.BackToMenu() {
		return m.toMenu()
	}
	if evt, ok := m.rooms.Started(); ok {
		return m.startDuel(evt)
	}
	if match, ok := m.rooms.Spectating(); ok {
		return m.startSpectate(match)
	}
	return m, nil
}

func (m SessionModel) startDuel(evt multiplayer.MatchStartedEvent) (tea.Model, tea.Cmd) {
	cfg := m.deps.Config
	dc := multiplayer.DuelConfig{
		Match:          evt.Match,
		Local:          evt.You,
		Transport:      m.deps.Records,
		Engine:         cfg.Engine.Options(),
		Speed:          cfg.Speed(),
		PublishTimeout: cfg.Replication.PublishTimeout,
		Logger:         m.deps.Logger,
	}
	if m.deps.Store != nil {
		dc.Recorder = m.deps.Store
	}
	duel, err := multiplayer.NewDuel(dc)
	if err != nil {
		m.deps.Logger.Error("could not start duel", "match", evt.Match.ID, "error", err)
		m.finishMatch(evt.Match.ID)
		next, cmd := m.toMenu()
		sm := next.(SessionModel)
		sm.notice = err.Error()
		return sm, cmd
	}
	m.duel = NewDuelModel(DuelOptions{
		Duel:         duel,
		YouName:      string(evt.You),
		OpponentName: string(evt.Opponent),
		Runtime:      m.config,
	})
	m.screen = screenDuel
	return m, m.duel.Init()
}

func (m SessionModel) finishMatch(id multiplayer.MatchID) {
	m.deps.Coordinator.Send(multiplayer.MatchFinishedMsg{SessionID: m.deps.Session.ID(), MatchID: id})
}

func (m SessionModel) updateDuel(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.duel.Update(msg)
	if duelModel, ok := newModel.(DuelModel); ok {
		m.duel = duelModel
	}
	switch {
	case m.duel.IsQuitting():
		m.finishMatch(m.duel.Match().ID)
		m.quitting = true
		return m, tea.Quit
	case m.duel.BackToMenu():
		m.finishMatch(m.duel.Match().ID)
		return m.toMenu()
	}
	return m, cmd
}

func (m SessionModel) startSpectate(match multiplayer.Match) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	spectator, err := multiplayer.Watch(ctx, m.deps.Records, match, m.deps.Logger)
	if err != nil {
		m.deps.Logger.Warn("could not spectate", "match", match.ID, "error", err)
		m.deps.Coordinator.Send(multiplayer.LeaveRoomMsg{SessionID: m.deps.Session.ID(), Code: match.Code})
		return m.toMenu()
	}
	m.watch = NewSpectateModel(spectator, m.config)
	m.screen = screenSpectate
	return m, m.watch.Init()
}

func (m SessionModel) updateSpectate(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.watch.Update(msg)
	if watchModel, ok := newModel.(SpectateModel); ok {
		m.watch = watchModel
	}
	leave := func() {
		m.deps.Coordinator.Send(multiplayer.LeaveRoomMsg{
			SessionID: m.deps.Session.ID(),
			Code:      m.watch.spectator.Match().Code,
		})
	}
	switch {
	case m.watch.IsQuitting():
		leave()
		m.quitting = true
		return m, tea.Quit
	case m.watch.BackToMenu():
		leave()
		return m.toMenu()
	}
	return m, cmd
}

func (m SessionModel) updateScoreboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	newModel, cmd := m.board.Update(msg)
	if boardModel, ok := newModel.(ScoreboardModel); ok {
		m.board = boardModel
	}
	switch {
	case m.board.IsQuitting():
		m.quitting = true
		return m, tea.Quit
	case m.board.IsGoingBack():
		return m.toMenu()
	}
	return m, cmd
}

// View renders the current view.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}

	switch m.screen {
	case screenSolo:
		return m.solo.View()
	case screenRooms:
		return m.rooms.View()
	case screenDuel:
		return m.duel.View()
	case screenSpectate:
		return m.watch.View()
	case screenScoreboard:
		return m.board.View()
	}
	view := m.menu.View()
	if m.notice != "" {
		view += "\n" + centerText(m.notice, m.config.ScreenW)
	}
	return view
}
