package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
)

func newTestCoordinator(t *testing.T, players ...multiplayer.PlayerID) (*multiplayer.Coordinator, []*multiplayer.ChannelSession) {
	t.Helper()
	reg := multiplayer.NewSessionRegistry()
	sessions := make([]*multiplayer.ChannelSession, len(players))
	for i, p := range players {
		sessions[i] = multiplayer.NewChannelSession(multiplayer.SessionID(p+"-session"), p, 8)
		reg.Register(sessions[i])
	}
	c := multiplayer.NewCoordinator(multiplayer.DefaultCoordinatorConfig(), reg, log.New(io.Discard))
	c.Start()
	t.Cleanup(c.Stop)
	return c, sessions
}

func nextEvent(t *testing.T, s *multiplayer.ChannelSession) multiplayer.SessionEvent {
	t.Helper()
	select {
	case evt := <-s.Events():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %s", s.ID())
		return nil
	}
}

func feed(m RoomsModel, msgs ...tea.Msg) RoomsModel {
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		m = updated.(RoomsModel)
	}
	return m
}

func TestRoomsHostAndJoin(t *testing.T) {
	c, sessions := newTestCoordinator(t, "alice", "bob")
	host := NewRoomsModel(sessions[0].ID(), c, false, 80, 24)
	guest := NewRoomsModel(sessions[1].ID(), c, false, 80, 24)

	host = feed(host, runeKey('h'))
	host = feed(host, nextEvent(t, sessions[0]))
	if host.State() != RoomStateHosting || host.RoomCode() == "" {
		t.Fatalf("host state = %v code %q, expected hosting with a code", host.State(), host.RoomCode())
	}

	guest = feed(guest, runeKey('j'))
	for _, r := range host.RoomCode() {
		guest = feed(guest, runeKey(r))
	}
	guest = feed(guest, tea.KeyMsg{Type: tea.KeyEnter})
	if guest.State() != RoomStateWaiting {
		t.Fatalf("guest state = %v, expected waiting", guest.State())
	}

	guest = feed(guest, nextEvent(t, sessions[1]))
	host = feed(host, nextEvent(t, sessions[0]))

	for name, m := range map[string]RoomsModel{"host": host, "guest": guest} {
		evt, ok := m.Started()
		if !ok {
			t.Fatalf("%s: match not started", name)
		}
		if evt.Match.Code != host.RoomCode() || evt.You == evt.Opponent {
			t.Errorf("%s: unexpected start event %+v", name, evt)
		}
	}
}

func TestRoomsJoinUnknownCode(t *testing.T) {
	c, sessions := newTestCoordinator(t, "bob")
	m := NewRoomsModel(sessions[0].ID(), c, false, 80, 24)

	m = feed(m, runeKey('j'), runeKey('z'), runeKey('z'), tea.KeyMsg{Type: tea.KeyEnter})
	m = feed(m, nextEvent(t, sessions[0]))

	if m.State() != RoomStateEnterCode {
		t.Errorf("state = %v, expected back at code entry", m.State())
	}
	if m.notice != "Room not found" {
		t.Errorf("notice = %q, expected %q", m.notice, "Room not found")
	}
}

func TestRoomsCodeInput(t *testing.T) {
	m := NewRoomsModel("s", nil, false, 80, 24)
	m = feed(m, runeKey('s'))
	if m.State() != RoomStateEnterCode || !m.spectating {
		t.Fatalf("expected spectate code entry, got %v", m.State())
	}

	m = feed(m, runeKey('a'), runeKey('b'), runeKey('-'), runeKey('1'))
	if m.codeInput != "AB1" {
		t.Errorf("codeInput = %q, expected AB1", m.codeInput)
	}
	m = feed(m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.codeInput != "AB" {
		t.Errorf("codeInput after backspace = %q, expected AB", m.codeInput)
	}
	for i := 0; i < 10; i++ {
		m = feed(m, runeKey('x'))
	}
	if len(m.codeInput) != codeLength {
		t.Errorf("code grew to %d characters, limit is %d", len(m.codeInput), codeLength)
	}
}

func TestRoomsQueueMatches(t *testing.T) {
	c, sessions := newTestCoordinator(t, "alice", "bob")
	a := NewRoomsModel(sessions[0].ID(), c, true, 80, 24)
	b := NewRoomsModel(sessions[1].ID(), c, true, 80, 24)

	a.Init()
	a = feed(a, nextEvent(t, sessions[0]))
	if a.State() != RoomStateQueued || a.queuePos != 1 {
		t.Fatalf("a: state %v pos %d, expected queued at 1", a.State(), a.queuePos)
	}

	b.Init()
	b = feed(b, nextEvent(t, sessions[1]))
	a = feed(a, nextEvent(t, sessions[0]))

	ea, okA := a.Started()
	eb, okB := b.Started()
	if !okA || !okB {
		t.Fatalf("queue did not pair the players")
	}
	if ea.Match.ID != eb.Match.ID || ea.Match.Mode != multiplayer.MatchModeOnline {
		t.Errorf("players got different matches: %+v vs %+v", ea.Match, eb.Match)
	}
}

func TestRoomsSpectateEvent(t *testing.T) {
	m := NewRoomsModel("s", nil, false, 80, 24)
	match := multiplayer.NewMatch(multiplayer.MatchModeCustom, "alice", "bob", time.Now())
	m = feed(m, multiplayer.SpectateStartedEvent{Match: match})

	got, ok := m.Spectating()
	if !ok || got.ID != match.ID {
		t.Errorf("Spectating() = %+v, %v; expected %s", got, ok, match.ID)
	}
	if _, ok := m.Started(); ok {
		t.Errorf("spectators are not players")
	}
}
