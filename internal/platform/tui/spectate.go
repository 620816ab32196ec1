package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
)

// SpectateModel shows both boards of a running match. Gameplay keys are
// ignored.
type SpectateModel struct {
	spectator *multiplayer.Spectator
	changes   *notifier
	screen    *core.Screen
	keys      *KeyMapper

	players [2]replication.MirrorState
	verdict *multiplayer.Verdict

	quitting   bool
	backToMenu bool
}

// NewSpectateModel wraps a spectator. The model closes it on exit.
func NewSpectateModel(s *multiplayer.Spectator, rt core.RuntimeConfig) SpectateModel {
	if rt.ScreenW == 0 || rt.ScreenH == 0 {
		d := core.DefaultConfig()
		rt.ScreenW, rt.ScreenH = d.ScreenW, d.ScreenH
	}
	changes := newNotifier()
	s.OnChange(changes.poke)
	m := SpectateModel{
		spectator: s,
		changes:   changes,
		screen:    core.NewScreen(rt.ScreenW, rt.ScreenH),
		keys:      NewKeyMapper(),
	}
	m.refresh()
	return m
}

// Init waits for the first change.
func (m SpectateModel) Init() tea.Cmd {
	return m.changes.wait()
}

// Update handles messages.
func (m SpectateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		action, isQuit := m.keys.MapKey(msg)
		switch {
		case isQuit:
			m.stop()
			m.quitting = true
			return m, tea.Quit
		case action == core.ActionBack:
			m.stop()
			m.backToMenu = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.screen.Resize(msg.Width, msg.Height)
		return m, nil

	case changeMsg:
		if msg.n != m.changes {
			return m, nil
		}
		m.refresh()
		return m, m.changes.wait()
	}
	return m, nil
}

func (m *SpectateModel) refresh() {
	m.players[0] = m.spectator.Player(0)
	m.players[1] = m.spectator.Player(1)
	if v, ok := m.spectator.Verdict(); ok {
		m.verdict = &v
	}
}

func (m SpectateModel) stop() {
	m.changes.close()
	m.spectator.Close()
}

func (m SpectateModel) render() {
	s := m.screen
	s.Clear()
	match := m.spectator.Match()

	for i, st := range m.players {
		x := i * (fieldW + 16)
		drawPlayfield(s, x, 0, fieldFromMirror(truncate(string(match.Players[i]), fieldW-6), st))
		if st.Departed {
			s.DrawTextColored(x+2, fieldH-1, " disconnected ", core.ColorBrightRed)
		}
	}

	x := fieldW + 2
	s.DrawTextColored(x, 1, "SPECTATING", core.ColorBrightYellow)
	if match.Code != "" {
		s.DrawTextColored(x, 2, "Room "+match.Code, core.ColorGray)
	}
	y := 4
	for i, st := range m.players {
		s.DrawTextColored(x, y, fmt.Sprintf("P%d", i+1), core.ColorGray)
		y = drawStats(s, x, y+1, [][2]string{
			{"Score", fmt.Sprintf("%d", st.Snapshot.Score)},
			{"Lines", fmt.Sprintf("%d", st.Snapshot.Lines)},
			{"Level", fmt.Sprintf("%d", st.Snapshot.Level)},
		}) + 1
	}

	if v := m.verdict; v != nil {
		drawBanner(s, fieldW+1, 14, 14, []string{
			"WINNER",
			truncate(string(v.Winner.PlayerID), 12),
			"by " + string(v.Reason),
		})
	}

	s.DrawTextColored(0, fieldH, "read-only view  esc leave  q quit", core.ColorGray)
}

// View renders the current state to a string for display.
func (m SpectateModel) View() string {
	if m.quitting || m.backToMenu {
		return ""
	}
	m.render()
	return RenderScreen(m.screen)
}

// IsQuitting returns true if user requested to quit entirely.
func (m SpectateModel) IsQuitting() bool { return m.quitting }

// BackToMenu returns true if user left the view.
func (m SpectateModel) BackToMenu() bool { return m.backToMenu }
