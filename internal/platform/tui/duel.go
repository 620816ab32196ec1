package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

// DuelOptions configures a DuelModel.
type DuelOptions struct {
	Duel         *multiplayer.Duel
	YouName      string
	OpponentName string
	Runtime      core.RuntimeConfig
}

type duelDoneMsg struct{ err error }

// DuelModel plays one side of a duel with the opponent mirrored alongside.
type DuelModel struct {
	duel    *multiplayer.Duel
	opts    DuelOptions
	ctx     context.Context
	cancel  context.CancelFunc
	changes *notifier
	screen  *core.Screen
	keys    *KeyMapper

	local    tetris.State
	opponent replication.MirrorState
	verdict  *multiplayer.Verdict
	record   *multiplayer.BattleRecord

	finished   bool // Run returned
	runErr     error
	quitting   bool
	backToMenu bool
}

// NewDuelModel wraps a joined or unjoined duel. The duel runs from Init.
func NewDuelModel(opts DuelOptions) DuelModel {
	if opts.Runtime.ScreenW == 0 || opts.Runtime.ScreenH == 0 {
		d := core.DefaultConfig()
		opts.Runtime.ScreenW, opts.Runtime.ScreenH = d.ScreenW, d.ScreenH
	}
	if opts.YouName == "" {
		opts.YouName = "YOU"
	}
	if opts.OpponentName == "" {
		opts.OpponentName = string(opts.Duel.OpponentID())
	}
	opts.YouName = truncate(opts.YouName, fieldW-6)
	opts.OpponentName = truncate(opts.OpponentName, fieldW-6)
	ctx, cancel := context.WithCancel(context.Background())
	changes := newNotifier()
	opts.Duel.OnChange(changes.poke)
	return DuelModel{
		duel:     opts.Duel,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		changes:  changes,
		screen:   core.NewScreen(opts.Runtime.ScreenW, opts.Runtime.ScreenH),
		keys:     NewKeyMapper(),
		local:    opts.Duel.Local(),
		opponent: opts.Duel.Opponent(),
	}
}

// Init starts the duel.
func (m DuelModel) Init() tea.Cmd {
	d, ctx := m.duel, m.ctx
	run := func() tea.Msg {
		return duelDoneMsg{err: d.Run(ctx)}
	}
	return tea.Batch(run, m.changes.wait(), tickCmd(clockRefresh))
}

// Update handles messages and updates the model state.
func (m DuelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.screen.Resize(msg.Width, msg.Height)
		return m, nil

	case changeMsg:
		if msg.n != m.changes {
			return m, nil
		}
		m.refresh()
		return m, m.changes.wait()

	case duelDoneMsg:
		m.finished = true
		m.runErr = msg.err
		m.refresh()
		return m, nil

	case TickMsg:
		if m.quitting || m.backToMenu {
			return m, nil
		}
		// Keep ticking after the verdict: the rating change arrives later.
		if m.verdict != nil && m.record != nil {
			return m, nil
		}
		m.refresh()
		return m, tickCmd(clockRefresh)
	}
	return m, nil
}

func (m *DuelModel) refresh() {
	m.local = m.duel.Local()
	m.opponent = m.duel.Opponent()
	if v, ok := m.duel.Verdict(); ok {
		m.verdict = &v
	}
	if r, ok := m.duel.Record(); ok {
		m.record = &r
	}
}

func (m DuelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, isQuit := m.keys.MapKey(msg)
	if isQuit {
		m.stop()
		m.quitting = true
		return m, tea.Quit
	}

	switch {
	case action == core.ActionBack:
		// Leaving does not surrender: the opponent sees the board freeze.
		m.stop()
		m.backToMenu = true
		return m, tea.Quit
	case action.IsGameplay():
		m.duel.Apply(action)
	}
	return m, nil
}

func (m DuelModel) stop() {
	m.cancel()
	m.changes.close()
}

func (m DuelModel) render() {
	s := m.screen
	s.Clear()
	local, opp := m.local, m.opponent

	drawPlayfield(s, 0, 0, fieldFromState(m.opts.YouName, local))
	oppX := fieldW + 16
	drawPlayfield(s, oppX, 0, fieldFromMirror(m.opts.OpponentName, opp))

	x := fieldW + 2
	y := drawStats(s, x, 1, [][2]string{
		{"Time", formatClock(m.clock())},
		{"Score", fmt.Sprintf("%d", local.Score)},
		{"Lines", fmt.Sprintf("%d", local.Lines)},
		{"Level", fmt.Sprintf("%d", local.Level)},
	})
	s.DrawTextColored(x, y+1, "Hold", core.ColorGray)
	drawPreview(s, x, y+2, local.Hold, !local.CanHold)
	y += 5
	s.DrawTextColored(x, y, "Next", core.ColorGray)
	for i, k := range local.Next {
		if i == 3 {
			break
		}
		drawPreview(s, x, y+1+i*3, k, false)
	}

	y = fieldH - 4
	snap := opp.Snapshot
	s.DrawTextColored(x, y, "Rival", core.ColorGray)
	drawStats(s, x, y+1, [][2]string{
		{"Score", fmt.Sprintf("%d", snap.Score)},
		{"Lines", fmt.Sprintf("%d", snap.Lines)},
	})
	if opp.Departed {
		s.DrawTextColored(oppX+2, fieldH-1, " disconnected ", core.ColorBrightRed)
	} else if !opp.Received {
		s.DrawTextColored(oppX+2, fieldH-1, " waiting... ", core.ColorGray)
	}

	switch {
	case m.verdict != nil:
		drawBanner(s, 1, 7, fieldW-2, m.verdictLines())
	case local.GameOver:
		drawBanner(s, 1, 8, fieldW-2, []string{"TOPPED OUT", "waiting for rival"})
	}
	if m.runErr != nil && m.runErr != context.Canceled {
		s.DrawTextColored(0, fieldH+1, "error: "+m.runErr.Error(), core.ColorBrightRed)
	}

	s.DrawTextColored(0, fieldH, "arrows move  x/z rotate  c hold  space slam  F surrender  esc leave", core.ColorGray)
}

func (m DuelModel) clock() time.Duration {
	if d, ok := m.local.Elapsed(); ok {
		return d
	}
	if m.local.StartedAt.IsZero() {
		return 0
	}
	return time.Since(m.local.StartedAt)
}

// verdictLines describes the result from the local player's side.
func (m DuelModel) verdictLines() []string {
	v := m.verdict
	won := v.Loser.PlayerID == m.duel.OpponentID()
	title := "YOU LOSE"
	if won {
		title = "YOU WIN"
	}
	lines := []string{title, "by " + string(v.Reason)}
	if r := m.record; r != nil {
		delta, total := r.LoserDelta, r.LoserRating
		if won {
			delta, total = r.WinnerDelta, r.WinnerRating
		}
		lines = append(lines, fmt.Sprintf("Rating %d (%+d)", total, delta))
	}
	return append(lines, "", "Esc menu")
}

// Match returns the match being played.
func (m DuelModel) Match() multiplayer.Match { return m.duel.Match() }

// Verdict returns the verdict once decided.
func (m DuelModel) Verdict() (multiplayer.Verdict, bool) {
	if m.verdict == nil {
		return multiplayer.Verdict{}, false
	}
	return *m.verdict, true
}

// View renders the current state to a string for display.
func (m DuelModel) View() string {
	if m.quitting || m.backToMenu {
		return ""
	}
	m.render()
	return RenderScreen(m.screen)
}

// IsQuitting returns true if user requested to quit entirely.
func (m DuelModel) IsQuitting() bool { return m.quitting }

// BackToMenu returns true if user left the duel.
func (m DuelModel) BackToMenu() bool { return m.backToMenu }

// RunDuel plays a duel in the terminal until the user leaves.
func RunDuel(opts DuelOptions) error {
	p := tea.NewProgram(NewDuelModel(opts), tea.WithAltScreen())
	_, err := p.Run()

	// Make sure the local record is gone before the caller closes the transport.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if leaveErr := opts.Duel.Leave(ctx); err == nil {
		err = leaveErr
	}
	return err
}
