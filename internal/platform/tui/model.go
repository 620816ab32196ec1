package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/config"
	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/storage"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

const clockRefresh = 250 * time.Millisecond

// ScoreSink stores finished solo games and returns the XP earned.
// *storage.Store satisfies it.
type ScoreSink interface {
	SaveGameScore(ctx context.Context, g storage.GameScore) (int, error)
}

// GameOptions configures a solo game.
type GameOptions struct {
	Player      string
	DisplayName string
	Config      config.Config
	Runtime     core.RuntimeConfig
	Scores      ScoreSink // optional
	Logger      *log.Logger
}

// soloGame is one run of the engine. A restart replaces it.
type soloGame struct {
	runner    *tetris.Runner
	ctx       context.Context
	cancel    context.CancelFunc
	changes   *notifier
	startOnce sync.Once
}

func newSoloGame(cfg config.Config, seed int64) *soloGame {
	opts := cfg.Engine.Options()
	opts.Generator = tetris.NewRandomGenerator(seed)
	ctrl := tetris.NewController(tetris.NewEngine(opts), false)
	runner := tetris.NewRunner(ctrl, tetris.RunnerOptions{Speed: cfg.Speed()})

	ctx, cancel := context.WithCancel(context.Background())
	g := &soloGame{runner: runner, ctx: ctx, cancel: cancel, changes: newNotifier()}
	runner.OnChange(func(tetris.State) { g.changes.poke() })
	return g
}

func (g *soloGame) start() tea.Cmd {
	g.startOnce.Do(func() {
		go func() {
			g.runner.Run(g.ctx) //nolint:errcheck // cancellation is the only error
			g.changes.poke()
		}()
	})
	return g.changes.wait()
}

func (g *soloGame) stop() {
	g.cancel()
	g.changes.close()
}

type scoreSavedMsg struct {
	xp  int
	err error
}

// GameModel is the Bubble Tea model for a solo game.
type GameModel struct {
	opts       GameOptions
	screen     *core.Screen
	keys       *KeyMapper
	game       *soloGame
	state      tetris.State
	scoreSaved bool // Whether score has been submitted for current game over
	xp         int
	saveErr    error
	quitting   bool
	backToMenu bool
}

// NewGameModel creates a solo game model. The game starts in Init.
func NewGameModel(opts GameOptions) GameModel {
	if opts.Runtime.Seed == 0 {
		opts.Runtime.Seed = time.Now().UnixNano()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Runtime.ScreenW == 0 || opts.Runtime.ScreenH == 0 {
		d := core.DefaultConfig()
		opts.Runtime.ScreenW, opts.Runtime.ScreenH = d.ScreenW, d.ScreenH
	}
	game := newSoloGame(opts.Config, opts.Runtime.Seed)
	return GameModel{
		opts:   opts,
		screen: core.NewScreen(opts.Runtime.ScreenW, opts.Runtime.ScreenH),
		keys:   NewKeyMapper(),
		game:   game,
		state:  game.runner.State(),
	}
}

// Init starts the game loop.
func (m GameModel) Init() tea.Cmd {
	return tea.Batch(m.game.start(), tickCmd(clockRefresh))
}

// Update handles messages and updates the model state.
func (m GameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.screen.Resize(msg.Width, msg.Height)
		return m, nil

	case changeMsg:
		if msg.n != m.game.changes {
			return m, nil // from a previous run
		}
		m.state = m.game.runner.State()
		if m.state.GameOver && !m.scoreSaved {
			m.scoreSaved = true
			return m, tea.Batch(m.saveScore(), m.game.changes.wait())
		}
		return m, m.game.changes.wait()

	case scoreSavedMsg:
		m.xp, m.saveErr = msg.xp, msg.err
		return m, nil

	case TickMsg:
		if m.state.GameOver || m.quitting || m.backToMenu {
			return m, nil
		}
		return m, tickCmd(clockRefresh)
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m GameModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+s" {
		m.saveScreenshot()
		return m, nil
	}

	action, isQuit := m.keys.MapKey(msg)
	if isQuit {
		m.game.stop()
		m.quitting = true
		return m, tea.Quit
	}

	switch {
	case action == core.ActionBack:
		m.game.stop()
		m.backToMenu = true
		return m, tea.Quit // the session model intercepts this

	case action == core.ActionRestart && m.state.GameOver:
		m.game.stop()
		m.opts.Runtime.Seed = time.Now().UnixNano()
		m.game = newSoloGame(m.opts.Config, m.opts.Runtime.Seed)
		m.state = m.game.runner.State()
		m.scoreSaved = false
		m.xp, m.saveErr = 0, nil
		return m, tea.Batch(m.game.start(), tickCmd(clockRefresh))

	case action == core.ActionSurrender:
		// Surrender only means something against an opponent.
		return m, nil

	case action.IsGameplay():
		m.game.runner.Apply(action)
	}

	return m, nil
}

// saveScore submits the finished game. Failures are shown, never fatal.
func (m GameModel) saveScore() tea.Cmd {
	if m.opts.Scores == nil || m.opts.Player == "" {
		return nil
	}
	elapsed, _ := m.state.Elapsed()
	g := storage.GameScore{
		PlayerID:    m.opts.Player,
		DisplayName: m.opts.DisplayName,
		Score:       m.state.Score,
		Lines:       m.state.Lines,
		Level:       m.state.Level,
		Pieces:      m.state.Pieces,
		Duration:    elapsed,
	}
	sink, logger := m.opts.Scores, m.opts.Logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		xp, err := sink.SaveGameScore(ctx, g)
		if err != nil {
			logger.Warn("score submission failed", "player", g.PlayerID, "error", err)
		}
		return scoreSavedMsg{xp: xp, err: err}
	}
}

// saveScreenshot saves the current screen to a file.
func (m *GameModel) saveScreenshot() {
	m.render()

	dir := filepath.Join(os.Getenv("HOME"), ".blockduel", "screenshots")
	//nolint:errcheck // Best-effort directory creation
	os.MkdirAll(dir, 0o755)

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("solo_%s.txt", timestamp))

	//nolint:errcheck // Best-effort save, game continues regardless
	os.WriteFile(path, []byte(m.screen.String()), 0o600)
}

func (m GameModel) render() {
	s := m.screen
	s.Clear()
	st := m.state

	drawPlayfield(s, 0, 0, fieldFromState("SOLO", st))

	x := fieldW + 2
	elapsed := time.Duration(0)
	if !st.StartedAt.IsZero() {
		if d, ok := st.Elapsed(); ok {
			elapsed = d
		} else {
			elapsed = time.Since(st.StartedAt)
		}
	}
	y := drawStats(s, x, 1, [][2]string{
		{"Score", fmt.Sprintf("%d", st.Score)},
		{"Lines", fmt.Sprintf("%d", st.Lines)},
		{"Level", fmt.Sprintf("%d", st.Level)},
		{"Time", formatClock(elapsed)},
	})
	drawSidePieces(s, x, y, st)

	if st.GameOver {
		lines := []string{"GAME OVER", fmt.Sprintf("Score %d", st.Score)}
		switch {
		case m.saveErr != nil:
			lines = append(lines, "Score not saved")
		case m.xp > 0:
			lines = append(lines, fmt.Sprintf("+%d XP", m.xp))
		}
		lines = append(lines, "", "R restart", "Esc menu")
		drawBanner(s, 1, 7, fieldW-2, lines)
	}

	s.DrawTextColored(0, fieldH, "←/→ move ↓ drop ↑/x/z rotate c hold space slam esc menu q quit", core.ColorGray)
}

// drawSidePieces draws the hold slot and the next queue below y.
func drawSidePieces(s *core.Screen, x, y int, st tetris.State) {
	s.DrawTextColored(x, y, "Hold", core.ColorGray)
	drawPreview(s, x, y+1, st.Hold, !st.CanHold)
	y += 4
	s.DrawTextColored(x, y, "Next", core.ColorGray)
	y++
	for _, k := range st.Next {
		drawPreview(s, x, y, k, false)
		y += 3
	}
}

// drawBanner draws centered lines in a box over the area starting at (x, y).
func drawBanner(s *core.Screen, x, y, w int, lines []string) {
	h := len(lines) + 2
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			s.SetCell(col, row, ' ', core.ColorDefault)
		}
	}
	s.DrawBox(core.NewRect(x, y, w, h), core.ColorBrightYellow)
	for i, l := range lines {
		n := len([]rune(l))
		s.DrawTextColored(x+(w-n)/2, y+1+i, l, core.ColorBrightWhite)
	}
}

// View renders the current state to a string for display.
func (m GameModel) View() string {
	if m.quitting || m.backToMenu {
		return ""
	}
	m.render()
	return RenderScreen(m.screen)
}

// State returns the last rendered game state.
func (m GameModel) State() tetris.State { return m.state }

// IsQuitting returns true if user requested to quit entirely.
func (m GameModel) IsQuitting() bool { return m.quitting }

// BackToMenu returns true if user requested to go back to menu.
func (m GameModel) BackToMenu() bool { return m.backToMenu }

// Run starts a standalone solo game in the terminal.
func Run(opts GameOptions) error {
	model := NewGameModel(opts)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(), // Use alternate screen buffer
	)

	_, err := p.Run()
	return err
}
