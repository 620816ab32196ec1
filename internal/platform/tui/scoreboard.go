package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/blockduel/internal/storage"
)

// Scoreboard layout constants
const (
	maxScores   = 100 // Max rows to load
	loadTimeout = 5 * time.Second
)

// LeaderboardSource provides both leaderboards. *storage.Store and
// *relay.Client satisfy it.
type LeaderboardSource interface {
	TopScores(ctx context.Context, limit int) ([]storage.Profile, error)
	TopRated(ctx context.Context, limit int) ([]storage.Profile, error)
}

// boardTab selects which leaderboard is shown.
type boardTab int

const (
	tabBestScore boardTab = iota
	tabRating
)

func (t boardTab) String() string {
	if t == tabRating {
		return "Battle Rating"
	}
	return "Best Score"
}

// ScoreboardKeyMap defines the key bindings for the scoreboard.
type ScoreboardKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	Reload  key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ScoreboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextTab, k.Reload, k.Back}
}

// FullHelp returns key bindings for the full help view.
func (k ScoreboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab},
		{k.Reload, k.Back, k.Quit},
	}
}

// DefaultScoreboardKeyMap returns default key bindings.
func DefaultScoreboardKeyMap() ScoreboardKeyMap {
	return ScoreboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "shift+tab", "left", "right", "h", "l"),
			key.WithHelp("tab", "switch board"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "b"),
			key.WithHelp("esc/b", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type boardLoadedMsg struct {
	tab  boardTab
	rows []storage.Profile
	err  error
}

// ScoreboardModel is the Bubble Tea model for the leaderboard screen.
type ScoreboardModel struct {
	source    LeaderboardSource
	tab       boardTab
	profiles  []storage.Profile
	loading   bool
	loadErr   error
	highlight string // player id to mark in the table
	table     table.Model
	help      help.Model
	keys      ScoreboardKeyMap
	width     int
	height    int
	quitting  bool
	goingBack bool // True if user pressed back (not quit)
}

// NewScoreboardModel creates a new scoreboard model. source may be nil.
func NewScoreboardModel(source LeaderboardSource, player string, width, height int) ScoreboardModel {
	h := help.New()
	h.ShowAll = false

	m := ScoreboardModel{
		source:    source,
		highlight: player,
		keys:      DefaultScoreboardKeyMap(),
		help:      h,
		width:     width,
		height:    height,
		loading:   source != nil,
	}
	m.table = m.createTable()
	return m
}

// createTable creates a new table with columns for the current tab.
func (m *ScoreboardModel) createTable() table.Model {
	value := "Score"
	if m.tab == tabRating {
		value = "Rating"
	}
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Player", Width: 18},
		{Title: value, Width: 9},
		{Title: "W/L", Width: 9},
		{Title: "Lvl", Width: 4},
		{Title: "Rank", Width: 18},
	}

	// Give leftover width to the player name.
	if extra := m.width - 4 - 62 - 2*len(columns); extra > 0 {
		columns[1].Width += min(extra, 14)
	}

	height := m.height - 8 // Leave room for header, help, and margins
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	// Table styles
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func (m ScoreboardModel) load() tea.Cmd {
	if m.source == nil {
		return nil
	}
	src, tab := m.source, m.tab
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		var (
			rows []storage.Profile
			err  error
		)
		if tab == tabRating {
			rows, err = src.TopRated(ctx, maxScores)
		} else {
			rows, err = src.TopScores(ctx, maxScores)
		}
		return boardLoadedMsg{tab: tab, rows: rows, err: err}
	}
}

// updateTableRows updates the table with loaded profiles.
func (m *ScoreboardModel) updateTableRows() {
	rows := make([]table.Row, len(m.profiles))
	for i, p := range m.profiles {
		name := p.DisplayName
		if name == "" {
			name = p.PlayerID
		}
		if p.PlayerID == m.highlight {
			name = "* " + name
		}
		value := p.BestScore
		if m.tab == tabRating {
			value = p.Rating
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			name,
			fmt.Sprintf("%d", value),
			fmt.Sprintf("%d/%d", p.Wins, p.Losses),
			fmt.Sprintf("%d", p.Level()),
			p.Rank().Name,
		}
	}
	m.table.SetRows(rows)

	// Reset cursor to top
	m.table.GotoTop()
}

// Init loads the first board.
func (m ScoreboardModel) Init() tea.Cmd {
	return m.load()
}

// Update handles messages for the scoreboard.
func (m ScoreboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Back):
			m.goingBack = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.NextTab):
			m.tab = (m.tab + 1) % 2
			m.profiles = nil
			m.table = m.createTable()
			m.updateTableRows()
			m.loading = m.source != nil
			return m, m.load()

		case key.Matches(msg, m.keys.Reload):
			m.loading = m.source != nil
			return m, m.load()

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			// Pass to table for scrolling
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}

	case boardLoadedMsg:
		if msg.tab != m.tab {
			return m, nil
		}
		m.loading = false
		m.loadErr = msg.err
		m.profiles = msg.rows
		m.updateTableRows()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	// Pass other messages to table
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the scoreboard.
func (m ScoreboardModel) View() string {
	if m.quitting || m.goingBack {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)
	b.WriteString(titleStyle.Render(centerText("LEADERBOARD", m.width)))
	b.WriteString("\n\n")

	tabStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	activeTabStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Padding(0, 1)
	tabs := make([]string, 0, 2)
	for _, t := range []boardTab{tabBestScore, tabRating} {
		if t == m.tab {
			tabs = append(tabs, activeTabStyle.Render(t.String()))
		} else {
			tabs = append(tabs, tabStyle.Render(t.String()))
		}
	}
	b.WriteString(centerText(lipgloss.JoinHorizontal(lipgloss.Top, tabs...), m.width))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	b.WriteString(tableStyle.Render(m.renderTableContent()))

	// Help bar
	b.WriteString("\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderTableContent renders the table or a status message.
func (m ScoreboardModel) renderTableContent() string {
	emptyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Italic(true).
		Padding(2, 4)

	switch {
	case m.source == nil:
		return emptyStyle.Render("Leaderboards are unavailable offline.")
	case m.loadErr != nil:
		return emptyStyle.Render("Could not load leaderboard:\n" + m.loadErr.Error())
	case m.loading && len(m.profiles) == 0:
		return emptyStyle.Render("Loading...")
	case len(m.profiles) == 0:
		return emptyStyle.Render("No players yet.\nPlay a game to get on the board!")
	}
	return m.table.View()
}

// IsGoingBack returns true if user wants to go back to menu.
func (m ScoreboardModel) IsGoingBack() bool {
	return m.goingBack
}

// IsQuitting returns true if user wants to quit entirely.
func (m ScoreboardModel) IsQuitting() bool {
	return m.quitting
}

// RunScoreboard runs the scoreboard screen.
// Returns true if user wants to go back to menu, false if quitting.
func RunScoreboard(source LeaderboardSource, player string, width, height int) (goBack bool, err error) {
	model := NewScoreboardModel(source, player, width, height)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}

	m, ok := finalModel.(ScoreboardModel)
	if !ok {
		return false, nil
	}

	return m.IsGoingBack(), nil
}
