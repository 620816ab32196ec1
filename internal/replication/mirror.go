package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// MirrorState is the locally cached view of a remote player.
type MirrorState struct {
	Snapshot Snapshot
	Received bool      // at least one snapshot arrived
	Departed bool      // the record was removed; Snapshot is the last one seen
	Updated  time.Time // local receive time of the last change
}

// Mirror follows a remote player's record. It only caches what it receives;
// no game rules run on the mirrored data.
type Mirror struct {
	logger *log.Logger
	clock  func() time.Time

	mu          sync.RWMutex
	state       MirrorState
	listeners   []func(MirrorState)
	unsubscribe func()
	closeOnce   sync.Once
}

// NewMirror creates a mirror holding the empty snapshot.
func NewMirror(logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Default()
	}
	return &Mirror{
		logger: logger,
		clock:  time.Now,
		state:  MirrorState{Snapshot: EmptySnapshot()},
	}
}

// Follow creates a mirror subscribed to key on t.
func Follow(ctx context.Context, t Transport, key Key, logger *log.Logger) (*Mirror, error) {
	m := NewMirror(logger)
	if err := m.Subscribe(ctx, t, key); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe attaches the mirror to key on t.
func (m *Mirror) Subscribe(ctx context.Context, t Transport, key Key) error {
	unsub, err := t.Subscribe(ctx, key, m.Handle)
	if err != nil {
		return fmt.Errorf("replication: subscribe %s: %w", key, err)
	}
	m.mu.Lock()
	m.unsubscribe = unsub
	m.mu.Unlock()
	return nil
}

// OnChange registers fn to run after every applied update.
func (m *Mirror) OnChange(fn func(MirrorState)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Handle applies one transport delivery. A nil payload marks the record as
// removed and keeps the last snapshot. Payloads that are not a JSON object are
// dropped; malformed fields fall back to their defaults.
func (m *Mirror) Handle(data []byte) {
	var snap Snapshot
	if data != nil {
		var err error
		snap, err = Decode(data)
		if err != nil {
			m.logger.Warn("dropping remote snapshot", "error", err)
			return
		}
	}

	m.mu.Lock()
	if data == nil {
		m.state.Departed = true
	} else {
		m.state.Snapshot = snap
		m.state.Received = true
		m.state.Departed = false
	}
	m.state.Updated = m.clock()
	st := m.state
	listeners := append([]func(MirrorState){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// State returns the cached view.
func (m *Mirror) State() MirrorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Close unsubscribes. The cached view stays readable.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		unsub := m.unsubscribe
		m.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}
