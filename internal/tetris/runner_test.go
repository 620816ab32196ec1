package tetris

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/blockduel/internal/core"
)

func waitFor(t *testing.T, r *Runner, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st := r.State(); cond(st) {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met, last state phase %s", r.State().Phase)
	return State{}
}

func TestRunnerGravityEndsGame(t *testing.T) {
	e := newTestEngine(KindO)
	r := NewRunner(NewController(e, false), RunnerOptions{
		Speed: func(int) time.Duration { return time.Millisecond },
	})

	updates := make(chan State, 1024)
	r.OnChange(func(st State) {
		select {
		case updates <- st:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st := r.State()
	if !st.GameOver || st.Pieces != 10 {
		t.Errorf("gameOver %v pieces %d", st.GameOver, st.Pieces)
	}
	select {
	case <-r.Done():
	default:
		t.Error("Done should be closed after Run returns")
	}
	if len(updates) == 0 {
		t.Error("listener never called")
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner(NewController(newTestEngine(KindT), false), RunnerOptions{
		Speed: func(int) time.Duration { return time.Hour },
	})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	waitFor(t, r, func(st State) bool { return st.Phase == PhaseFalling })
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunnerCompletesLineClear(t *testing.T) {
	e := NewEngine(Options{
		Generator:  NewSequenceGenerator(KindI),
		ClearDelay: 200 * time.Millisecond,
	})
	fillRow(&e.board, 19, 3, 4, 5, 6)
	r := NewRunner(NewController(e, false), RunnerOptions{
		Speed: func(int) time.Duration { return time.Hour },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, r, func(st State) bool { return st.Phase == PhaseFalling })
	if !r.Apply(core.ActionHardDrop) {
		t.Fatal("hard drop rejected")
	}
	if r.Apply(core.ActionMoveLeft) {
		t.Error("input accepted during line clear")
	}
	st := waitFor(t, r, func(st State) bool { return st.Lines == 1 })
	if st.Score != 100 {
		t.Errorf("score = %d, want 100", st.Score)
	}
}

func TestRunnerRestartsGravityAfterClear(t *testing.T) {
	const period = 300 * time.Millisecond
	e := NewEngine(Options{
		Generator:  NewSequenceGenerator(KindI),
		ClearDelay: 50 * time.Millisecond,
	})
	fillRow(&e.board, 19, 3, 4, 5, 6)
	r := NewRunner(NewController(e, false), RunnerOptions{
		Speed: func(int) time.Duration { return period },
	})

	type stamped struct {
		at time.Time
		st State
	}
	updates := make(chan stamped, 256)
	r.OnChange(func(st State) {
		select {
		case updates <- stamped{time.Now(), st}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, r, func(st State) bool { return st.Phase == PhaseFalling })
	// Drop late in the first gravity period so the old tick would land
	// right after the clear window.
	time.Sleep(200 * time.Millisecond)
	if !r.Apply(core.ActionHardDrop) {
		t.Fatal("hard drop rejected")
	}

	var spawnedAt time.Time
	timeout := time.After(3 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.st.Lines != 1 {
				continue
			}
			if spawnedAt.IsZero() {
				spawnedAt = u.at
				continue
			}
			if u.st.Position.Y > 0 {
				if gap := u.at.Sub(spawnedAt); gap < period*2/3 {
					t.Errorf("first drop %v after spawn, want about %v", gap, period)
				}
				return
			}
		case <-timeout:
			t.Fatal("piece never fell after the clear")
		}
	}
}
