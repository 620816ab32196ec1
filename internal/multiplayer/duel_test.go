package multiplayer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

type fakeRecorder struct {
	mu      sync.Mutex
	results []BattleResult
}

func (f *fakeRecorder) RecordBattle(_ context.Context, r BattleResult) (BattleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	applied := len(f.results) == 0
	f.results = append(f.results, r)
	return BattleRecord{Result: r, Applied: applied}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

func newTestDuel(t *testing.T, tr replication.Transport, m Match, p PlayerID, rec ResultRecorder) *Duel {
	t.Helper()
	d, err := NewDuel(DuelConfig{
		Match:     m,
		Local:     p,
		Transport: tr,
		Recorder:  rec,
		Engine:    tetris.Options{Generator: tetris.NewSequenceGenerator(tetris.KindO)},
		Speed:     func(int) time.Duration { return time.Hour },
		Logger:    log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("NewDuel: %v", err)
	}
	return d
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewDuelRejectsOutsider(t *testing.T) {
	m := NewMatch(MatchModeCustom, "a", "b", time.Now())
	if _, err := NewDuel(DuelConfig{Match: m, Local: "c", Transport: replication.NewMemoryTransport()}); err == nil {
		t.Error("player outside the match accepted")
	}
	if _, err := NewDuel(DuelConfig{Match: m, Local: "a"}); err == nil {
		t.Error("missing transport accepted")
	}
}

func TestDuelSurrenderLoses(t *testing.T) {
	tr := replication.NewMemoryTransport()
	defer tr.Close()
	rec := &fakeRecorder{}
	m := NewMatch(MatchModeCustom, "alice", "bob", time.Now())

	alice := newTestDuel(t, tr, m, "alice", rec)
	bob := newTestDuel(t, tr, m, "bob", rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs := make(chan error, 2)
	go func() { errs <- alice.Run(ctx) }()
	go func() { errs <- bob.Run(ctx) }()

	eventually(t, "both games to start", func() bool {
		return alice.Local().Phase == tetris.PhaseFalling && bob.Local().Phase == tetris.PhaseFalling
	})
	eventually(t, "bob to see alice", func() bool { return bob.Opponent().Received })

	if !alice.Apply(core.ActionSurrender) {
		t.Fatal("surrender rejected")
	}
	eventually(t, "bob to see alice forfeit", func() bool { return bob.Opponent().Snapshot.Forfeited })
	if _, ok := bob.Verdict(); ok {
		t.Fatal("verdict before bob finished")
	}

	for i := 0; i < 20 && !bob.Local().GameOver; i++ {
		bob.Apply(core.ActionHardDrop)
	}
	if !bob.Local().GameOver {
		t.Fatal("bob's game did not end")
	}

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Run: %v", err)
		}
	}

	for name, d := range map[string]*Duel{"alice": alice, "bob": bob} {
		v, ok := d.Verdict()
		if !ok {
			t.Fatalf("%s has no verdict", name)
		}
		if v.Winner.PlayerID != "bob" || v.Reason != ReasonForfeit {
			t.Errorf("%s verdict: winner %s by %s", name, v.Winner.PlayerID, v.Reason)
		}
	}

	eventually(t, "both submissions", func() bool { return rec.count() == 2 })
	if _, ok := tr.Get(Key(m.ID, "alice")); ok {
		t.Error("alice's record should be removed after leaving")
	}
	if err := alice.Leave(context.Background()); err != nil {
		t.Errorf("second Leave: %v", err)
	}
}

func TestDuelLeaveOnCancel(t *testing.T) {
	tr := replication.NewMemoryTransport()
	defer tr.Close()
	m := NewMatch(MatchModeOnline, "alice", "bob", time.Now())
	alice := newTestDuel(t, tr, m, "alice", nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- alice.Run(ctx) }()

	eventually(t, "record to be published", func() bool {
		_, ok := tr.Get(Key(m.ID, "alice"))
		return ok
	})
	cancel()
	if err := <-errc; err == nil {
		t.Error("Run should report cancellation")
	}
	if _, ok := tr.Get(Key(m.ID, "alice")); ok {
		t.Error("record left behind after cancel")
	}
}

func TestSpectatorSeesBothPlayers(t *testing.T) {
	tr := replication.NewMemoryTransport()
	defer tr.Close()
	m := NewMatch(MatchModeCustom, "alice", "bob", time.Now())
	ctx := context.Background()

	watcher, err := Watch(ctx, tr, m, log.New(io.Discard))
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watcher.Close()

	finished := m.StartedAt.Add(time.Minute).UnixMilli()
	for i, score := range []int{300, 500} {
		snap := replication.EmptySnapshot()
		snap.Score = score
		snap.GameOver = true
		snap.FinishTime = &finished
		data, _ := snap.Encode()
		if err := tr.Publish(ctx, Key(m.ID, m.Players[i]), data); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, "both mirrors", func() bool {
		return watcher.Player(0).Received && watcher.Player(1).Received
	})
	v, ok := watcher.Verdict()
	if !ok || v.Winner.PlayerID != "bob" || v.Reason != ReasonScore {
		t.Errorf("spectator verdict %+v, %v", v, ok)
	}
}
