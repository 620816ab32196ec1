// Package tui provides the Bubble Tea terminal client for blockduel: board
// rendering, key mapping, menus, rooms, leaderboards and the SSH server.
package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg refreshes time-dependent parts of a view, such as the game clock.
type TickMsg time.Time

// tickCmd returns a command that sends a TickMsg after interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// changeMsg reports that a background game or mirror changed.
type changeMsg struct{ n *notifier }

// notifier turns callbacks from game goroutines into Bubble Tea messages.
// Pokes coalesce: many changes between two renders produce one message.
type notifier struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1), done: make(chan struct{})}
}

func (n *notifier) poke() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// wait blocks until the next poke. It yields nil once the notifier is closed.
func (n *notifier) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-n.ch:
			return changeMsg{n: n}
		case <-n.done:
			return nil
		}
	}
}

func (n *notifier) close() {
	n.closeOnce.Do(func() { close(n.done) })
}
