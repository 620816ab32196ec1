package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
)

// RoomState represents the current step of the room and queue flow.
type RoomState int

const (
	RoomStateChoose    RoomState = iota // Host, join or spectate
	RoomStateHosting                    // Room open, waiting for a joiner
	RoomStateEnterCode                  // Typing a room code
	RoomStateWaiting                    // Join or spectate request sent
	RoomStateQueued                     // In the matchmaking queue
	RoomStateStarted                    // A match or spectate session began
)

const codeLength = 6

// RoomsModel drives room hosting, joining, spectating and the matchmaking
// queue. Coordinator events are delivered by the parent model.
type RoomsModel struct {
	state       RoomState
	width       int
	height      int
	sessionID   multiplayer.SessionID
	coordinator *multiplayer.Coordinator

	roomCode   string
	codeInput  string
	spectating bool // the code being typed is for spectating
	queuePos   int
	notice     string

	started    *multiplayer.MatchStartedEvent
	spectate   *multiplayer.Match
	backToMenu bool
	quitting   bool
}

// NewRoomsModel creates the room flow. With queue set the session enters
// the matchmaking queue right away.
func NewRoomsModel(sessionID multiplayer.SessionID, coordinator *multiplayer.Coordinator, queue bool, width, height int) RoomsModel {
	m := RoomsModel{
		state:       RoomStateChoose,
		width:       width,
		height:      height,
		sessionID:   sessionID,
		coordinator: coordinator,
	}
	if queue {
		m.state = RoomStateQueued
	}
	return m
}

// Init sends the queue request when the model starts queued.
func (m RoomsModel) Init() tea.Cmd {
	if m.state == RoomStateQueued {
		m.coordinator.Send(multiplayer.QueueMsg{SessionID: m.sessionID})
	}
	return nil
}

// Update handles messages.
func (m RoomsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case multiplayer.SessionEvent:
		m.handleEvent(msg)
		return m, nil
	}
	return m, nil
}

func (m *RoomsModel) handleEvent(evt multiplayer.SessionEvent) {
	switch e := evt.(type) {
	case multiplayer.RoomCreatedEvent:
		m.roomCode = e.Code
		m.state = RoomStateHosting
	case multiplayer.RoomErrorEvent:
		m.notice = e.Message
		switch m.state {
		case RoomStateWaiting:
			m.state = RoomStateEnterCode
		case RoomStateQueued, RoomStateHosting:
			m.state = RoomStateChoose
		}
	case multiplayer.RoomClosedEvent:
		m.notice = e.Reason.String()
		m.roomCode = ""
		m.state = RoomStateChoose
	case multiplayer.QueuedEvent:
		m.queuePos = e.Position
	case multiplayer.MatchStartedEvent:
		m.started = &e
		m.state = RoomStateStarted
	case multiplayer.SpectateStartedEvent:
		m.spectate = &e.Match
		m.state = RoomStateStarted
	}
}

func (m RoomsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancelPending()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case RoomStateChoose:
		return m.handleChooseKey(msg)
	case RoomStateEnterCode:
		return m.handleCodeKey(msg)
	case RoomStateHosting, RoomStateWaiting, RoomStateQueued:
		switch msg.String() {
		case "esc", "b":
			m.cancelPending()
			m.state = RoomStateChoose
			m.notice = ""
			return m, nil
		case "q":
			m.cancelPending()
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m RoomsModel) handleChooseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "H", "1":
		m.notice = ""
		m.coordinator.Send(multiplayer.CreateRoomMsg{SessionID: m.sessionID})
		m.state = RoomStateWaiting
		m.codeInput = ""
	case "j", "J", "2":
		m.startCode(false)
	case "s", "S", "3":
		m.startCode(true)
	case "m", "M", "4":
		m.notice = ""
		m.queuePos = 0
		m.coordinator.Send(multiplayer.QueueMsg{SessionID: m.sessionID})
		m.state = RoomStateQueued
	case "esc", "b":
		m.backToMenu = true
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *RoomsModel) startCode(spectate bool) {
	m.state = RoomStateEnterCode
	m.spectating = spectate
	m.codeInput = ""
	m.notice = ""
}

func (m RoomsModel) handleCodeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "esc":
		m.state = RoomStateChoose
		return m, nil
	case "enter":
		if len(m.codeInput) == 0 {
			return m, nil
		}
		m.notice = ""
		m.state = RoomStateWaiting
		if m.spectating {
			m.coordinator.Send(multiplayer.SpectateRoomMsg{SessionID: m.sessionID, Code: m.codeInput})
		} else {
			m.coordinator.Send(multiplayer.JoinRoomMsg{SessionID: m.sessionID, Code: m.codeInput})
		}
	case "backspace":
		if m.codeInput != "" {
			m.codeInput = m.codeInput[:len(m.codeInput)-1]
		}
	default:
		// Accept alphanumeric input for code
		if len(key) == 1 && len(m.codeInput) < codeLength {
			c := strings.ToUpper(key)
			if (c[0] >= 'A' && c[0] <= 'Z') || (c[0] >= '0' && c[0] <= '9') {
				m.codeInput += c
			}
		}
	}
	return m, nil
}

// cancelPending withdraws an open room, join request or queue entry.
func (m RoomsModel) cancelPending() {
	switch m.state {
	case RoomStateHosting:
		m.coordinator.Send(multiplayer.LeaveRoomMsg{SessionID: m.sessionID, Code: m.roomCode})
	case RoomStateWaiting:
		if m.codeInput != "" {
			m.coordinator.Send(multiplayer.LeaveRoomMsg{SessionID: m.sessionID, Code: m.codeInput})
		}
	case RoomStateQueued:
		m.coordinator.Send(multiplayer.CancelQueueMsg{SessionID: m.sessionID})
	}
}

// View renders the current state.
func (m RoomsModel) View() string {
	if m.quitting {
		return ""
	}

	var lines []string
	switch m.state {
	case RoomStateChoose:
		lines = []string{
			"ROOMS", "",
			"[H] Host a room",
			"[J] Join a room",
			"[S] Spectate a room",
			"[M] Online battle", "",
			"Esc: Back  |  Q: Quit",
		}
	case RoomStateHosting:
		lines = []string{
			"HOSTING", "",
			"Share this code with your opponent:", "",
			fmt.Sprintf("[ %s ]", m.roomCode), "",
			"Waiting for player to join...", "",
			"Esc: Cancel  |  Q: Quit",
		}
	case RoomStateEnterCode:
		title := "JOIN ROOM"
		if m.spectating {
			title = "SPECTATE ROOM"
		}
		code := m.codeInput
		if len(code) < codeLength {
			code += "_" + strings.Repeat(" ", codeLength-1-len(m.codeInput))
		}
		lines = []string{
			title, "",
			"Enter the room code:", "",
			fmt.Sprintf("[ %s ]", code), "",
			"Enter: Connect  |  Esc: Back",
		}
	case RoomStateWaiting:
		lines = []string{"CONNECTING", "", "Please wait...", "", "Esc: Cancel"}
	case RoomStateQueued:
		pos := "..."
		if m.queuePos > 0 {
			pos = fmt.Sprintf("#%d", m.queuePos)
		}
		lines = []string{
			"ONLINE BATTLE", "",
			"Looking for an opponent " + pos, "",
			"Esc: Cancel  |  Q: Quit",
		}
	case RoomStateStarted:
		lines = []string{"MATCH STARTING", "", "Get ready!"}
	}
	if m.notice != "" {
		lines = append(lines, "", m.notice)
	}

	var b strings.Builder
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(centerText(l, m.width))
		b.WriteString("\n")
	}
	return b.String()
}

// State returns the current room state.
func (m RoomsModel) State() RoomState { return m.state }

// Started returns the match this session was paired into, if any.
func (m RoomsModel) Started() (multiplayer.MatchStartedEvent, bool) {
	if m.started == nil {
		return multiplayer.MatchStartedEvent{}, false
	}
	return *m.started, true
}

// Spectating returns the match this session watches, if any.
func (m RoomsModel) Spectating() (multiplayer.Match, bool) {
	if m.spectate == nil {
		return multiplayer.Match{}, false
	}
	return *m.spectate, true
}

// RoomCode returns the hosted room code.
func (m RoomsModel) RoomCode() string { return m.roomCode }

// BackToMenu returns true if user wants to go back to menu.
func (m RoomsModel) BackToMenu() bool { return m.backToMenu }

// IsQuitting returns true if user wants to quit entirely.
func (m RoomsModel) IsQuitting() bool { return m.quitting }
