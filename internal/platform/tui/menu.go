package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/blockduel/internal/core"
)

// MenuChoice identifies a main menu entry.
type MenuChoice int

const (
	ChoiceSolo MenuChoice = iota
	ChoiceRoom
	ChoiceQueue
	ChoiceLeaderboard
	ChoiceQuit
)

// MenuItem is one selectable menu line.
type MenuItem struct {
	Choice MenuChoice
	Title  string
	Hint   string
}

// MenuModel is the Bubble Tea model for the main menu.
type MenuModel struct {
	items          []MenuItem
	cursor         int
	width          int
	height         int
	config         core.RuntimeConfig
	player         string
	keyMapper      *KeyMapper
	quitting       bool
	selected       *MenuItem // Set when user picks an entry
	openScoreboard bool      // True if user pressed Tab for scoreboard
}

// NewMenuModel creates the main menu. Room and matchmaking entries only
// appear when online play is available.
func NewMenuModel(cfg core.RuntimeConfig, player string, online bool) MenuModel {
	items := []MenuItem{{Choice: ChoiceSolo, Title: "Solo", Hint: "practice and post a high score"}}
	if online {
		items = append(items,
			MenuItem{Choice: ChoiceRoom, Title: "Custom room", Hint: "host, join or spectate by code"},
			MenuItem{Choice: ChoiceQueue, Title: "Online battle", Hint: "rated duel with the next player in line"},
		)
	}
	items = append(items,
		MenuItem{Choice: ChoiceLeaderboard, Title: "Leaderboard"},
		MenuItem{Choice: ChoiceQuit, Title: "Quit"},
	)

	return MenuModel{
		items:     items,
		width:     cfg.ScreenW,
		height:    cfg.ScreenH,
		config:    cfg,
		player:    player,
		keyMapper: NewKeyMapper(),
	}
}

// Init initializes the menu model.
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.config.ScreenW = msg.Width
		m.config.ScreenH = msg.Height
		return m, nil
	}

	return m, nil
}

// handleKey processes keyboard input for menu navigation.
func (m MenuModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := m.keyMapper.MapKeyToMenuAction(msg)

	switch action {
	case MenuActionQuit:
		m.quitting = true
		return m, tea.Quit

	case MenuActionUp:
		if m.cursor > 0 {
			m.cursor--
		}

	case MenuActionDown:
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case MenuActionSelect:
		selected := m.items[m.cursor]
		switch selected.Choice {
		case ChoiceQuit:
			m.quitting = true
		case ChoiceLeaderboard:
			m.openScoreboard = true
		default:
			m.selected = &selected
		}
		return m, tea.Quit

	case MenuActionScoreboard:
		m.openScoreboard = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the menu.
func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(centerText("B L O C K D U E L", m.width))
	b.WriteString("\n\n")
	if m.player != "" {
		b.WriteString(centerText("Signed in as "+m.player, m.width))
		b.WriteString("\n\n")
	}

	for i, item := range m.items {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		b.WriteString(centerText(fmt.Sprintf("%s%-14s", cursor, item.Title), m.width))
		b.WriteString("\n")
	}

	if hint := m.items[m.cursor].Hint; hint != "" {
		b.WriteString("\n")
		b.WriteString(centerText(hint, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	controls := "Up/Down: Navigate  |  Enter: Select  |  Tab: Scores  |  Q: Quit"
	b.WriteString(centerText(controls, m.width))
	b.WriteString("\n")

	return b.String()
}

// Selected returns the selected menu item, or nil if none selected.
func (m MenuModel) Selected() *MenuItem {
	return m.selected
}

// IsQuitting returns true if user requested to quit.
func (m MenuModel) IsQuitting() bool {
	return m.quitting
}

// WantsScoreboard returns true if user requested scoreboard.
func (m MenuModel) WantsScoreboard() bool {
	return m.openScoreboard
}

// Config returns the current runtime config (may have been updated by resize).
func (m MenuModel) Config() core.RuntimeConfig {
	return m.config
}

// MenuResult holds the result of running the menu.
type MenuResult struct {
	Choice          MenuChoice
	Config          core.RuntimeConfig
	WantsScoreboard bool
	Quit            bool
}

// RunMenu runs the offline menu and returns the selection result.
func RunMenu(cfg core.RuntimeConfig, player string) (MenuResult, error) {
	model := NewMenuModel(cfg, player, false)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	finalModel, err := p.Run()
	if err != nil {
		return MenuResult{Config: cfg}, err
	}

	m, ok := finalModel.(MenuModel)
	if !ok {
		return MenuResult{Config: cfg, Quit: true}, nil
	}

	result := MenuResult{
		Config: m.Config(),
	}

	switch {
	case m.WantsScoreboard():
		result.WantsScoreboard = true
	case m.IsQuitting() || m.Selected() == nil:
		result.Quit = true
	default:
		result.Choice = m.Selected().Choice
	}

	return result, nil
}
