package tetris

import (
	"math/rand"
	"testing"
	"time"

	"github.com/vovakirdan/blockduel/internal/core"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(kinds ...Kind) *Engine {
	return NewEngine(Options{Generator: NewSequenceGenerator(kinds...)})
}

func TestStartSpawnsAtAnchor(t *testing.T) {
	e := newTestEngine(KindT)
	if e.Phase() != PhaseSpawning {
		t.Fatalf("new engine phase = %s, want Spawning", e.Phase())
	}
	e.Start(t0)

	st := e.State()
	if st.Phase != PhaseFalling || st.Active == nil {
		t.Fatalf("after Start: phase %s, active %v", st.Phase, st.Active)
	}
	if st.Position != SpawnPosition {
		t.Errorf("position = %+v, want %+v", st.Position, SpawnPosition)
	}
	if st.Level != 1 || st.Score != 0 || st.Lines != 0 {
		t.Errorf("initial counters: level %d score %d lines %d", st.Level, st.Score, st.Lines)
	}
	if len(st.Next) != QueueDepth {
		t.Errorf("preview has %d kinds, want %d", len(st.Next), QueueDepth)
	}
	if !st.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %v, want %v", st.StartedAt, t0)
	}
}

func TestSingleLineClear(t *testing.T) {
	e := newTestEngine(KindI)
	fillRow(&e.board, 19, 3, 4, 5, 6)
	e.Start(t0)

	if !e.HardDrop(t0) {
		t.Fatal("HardDrop rejected")
	}
	st := e.State()
	if st.Phase != PhaseLineClearing || len(st.ClearingRows) != 1 || st.ClearingRows[0] != 19 {
		t.Fatalf("phase %s rows %v, want LineClearing [19]", st.Phase, st.ClearingRows)
	}
	if st.Active != nil {
		t.Error("no piece should be active while clearing")
	}

	if e.Advance(t0.Add(DefaultClearDelay - time.Millisecond)) {
		t.Fatal("clear finished before its window elapsed")
	}
	if !e.Advance(t0.Add(DefaultClearDelay)) {
		t.Fatal("clear did not finish after its window")
	}

	st = e.State()
	if st.Score != 100 || st.Lines != 1 || st.Level != 1 {
		t.Errorf("score %d lines %d level %d, want 100 1 1", st.Score, st.Lines, st.Level)
	}
	if len(st.Board.LockedCells()) != 0 {
		t.Errorf("board should be empty, has %d blocks", len(st.Board.LockedCells()))
	}
	if st.Phase != PhaseFalling || st.Active == nil {
		t.Errorf("next piece should spawn, phase %s", st.Phase)
	}
}

func TestClearScoresWithLevelBefore(t *testing.T) {
	e := newTestEngine(KindI)
	e.lines = 9
	e.level = 1
	fillRow(&e.board, 19, 3, 4, 5, 6)
	e.Start(t0)
	e.HardDrop(t0)
	e.Advance(t0.Add(time.Second))

	st := e.State()
	if st.Score != 100 {
		t.Errorf("score = %d, want 100 (level before clear)", st.Score)
	}
	if st.Lines != 10 || st.Level != 2 {
		t.Errorf("lines %d level %d, want 10 2", st.Lines, st.Level)
	}
}

func TestSpawnCollisionEndsGame(t *testing.T) {
	e := newTestEngine(KindI)
	e.board[1][4] = "#ffffff"
	e.Start(t0)

	st := e.State()
	if !st.GameOver || st.Phase != PhaseGameOver {
		t.Fatalf("phase = %s, want GameOver", st.Phase)
	}
	if st.Forfeited {
		t.Error("spawn collision is not a forfeit")
	}
	if !st.FinishedAt.Equal(t0) {
		t.Errorf("FinishedAt = %v, want %v", st.FinishedAt, t0)
	}
	if e.StepDown(t0) || e.Move(1) || e.Surrender(t0) {
		t.Error("no operation may change a finished game")
	}
}

func TestLockCausesGameOver(t *testing.T) {
	e := newTestEngine(KindO)
	e.Start(t0)
	for i := 0; i < 20 && !e.GameOver(); i++ {
		e.HardDrop(t0.Add(time.Duration(i) * time.Second))
	}
	st := e.State()
	if !st.GameOver {
		t.Fatal("stacking O pieces in one column should end the game")
	}
	if st.Pieces != 10 {
		t.Errorf("locked %d pieces, want 10", st.Pieces)
	}
	if d, ok := st.Elapsed(); !ok || d != 9*time.Second {
		t.Errorf("Elapsed() = %v, %v", d, ok)
	}
}

func TestMoveAndStepDown(t *testing.T) {
	e := newTestEngine(KindO)
	e.Start(t0)

	for i := 0; i < 3; i++ {
		if !e.Move(-1) {
			t.Fatalf("move %d rejected", i)
		}
	}
	if e.Move(-1) {
		t.Error("move through the left wall accepted")
	}
	if e.State().Position.X != 0 {
		t.Errorf("x = %d, want 0", e.State().Position.X)
	}

	for i := 0; i < Height-2; i++ {
		e.StepDown(t0)
	}
	if got := e.State().Position.Y; got != Height-2 {
		t.Fatalf("y = %d, want %d", got, Height-2)
	}
	rev := e.State().Revision
	e.StepDown(t0)
	st := e.State()
	if st.Pieces != 1 || st.Board[Height-1][0] == "" {
		t.Error("blocked step down should lock the piece")
	}
	if st.Revision == rev {
		t.Error("lock should bump the revision")
	}
	if len(st.Locked) != 4 {
		t.Errorf("locked list has %d cells, want 4", len(st.Locked))
	}
}

func TestRotationRejectedAtWall(t *testing.T) {
	e := newTestEngine(KindI)
	e.Start(t0)
	if !e.Rotate(true) {
		t.Fatal("vertical rotation rejected at spawn")
	}
	for e.Move(1) {
	}
	before := e.State().Active.Shape
	if e.Rotate(true) {
		t.Fatal("rotation into the right wall accepted")
	}
	if !e.State().Active.Shape.Equal(before) {
		t.Error("rejected rotation changed the shape")
	}
}

func TestHoldOncePerPiece(t *testing.T) {
	e := newTestEngine(KindT, KindS, KindZ)
	e.Start(t0)

	if !e.Hold() {
		t.Fatal("first hold rejected")
	}
	st := e.State()
	if st.Hold != KindT || st.Active.Kind != KindS || st.CanHold {
		t.Fatalf("after hold: hold %s active %s canHold %v", st.Hold, st.Active.Kind, st.CanHold)
	}
	if e.Hold() {
		t.Fatal("second hold on the same piece accepted")
	}

	e.Move(-1)
	e.HardDrop(t0)
	if st := e.State(); st.Active.Kind != KindZ || !st.CanHold {
		t.Fatalf("after lock: active %s canHold %v", st.Active.Kind, st.CanHold)
	}
	e.StepDown(t0)
	if !e.Hold() {
		t.Fatal("hold after lock rejected")
	}
	st = e.State()
	if st.Hold != KindZ || st.Active.Kind != KindT {
		t.Errorf("swap: hold %s active %s, want Z T", st.Hold, st.Active.Kind)
	}
	if st.Position != SpawnPosition {
		t.Errorf("held piece should return to spawn, at %+v", st.Position)
	}
}

func TestSurrender(t *testing.T) {
	e := newTestEngine(KindI)
	e.Start(t0)
	if !e.Surrender(t0.Add(5 * time.Second)) {
		t.Fatal("surrender rejected")
	}
	st := e.State()
	if !st.GameOver || !st.Forfeited {
		t.Errorf("gameOver %v forfeited %v", st.GameOver, st.Forfeited)
	}
	if d, _ := st.Elapsed(); d != 5*time.Second {
		t.Errorf("elapsed = %v", d)
	}
}

func TestLandingPosition(t *testing.T) {
	e := newTestEngine(KindO)
	e.Start(t0)
	if got := e.State().Landing; got != (Point{X: 3, Y: Height - 2}) {
		t.Errorf("landing = %+v", got)
	}
}

func TestScoreNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	e := NewEngine(Options{Generator: NewRandomGenerator(99)})
	now := t0
	e.Start(now)

	actions := []func() bool{
		func() bool { return e.Move(-1) },
		func() bool { return e.Move(1) },
		func() bool { return e.Rotate(true) },
		func() bool { return e.Rotate(false) },
		func() bool { return e.Hold() },
		func() bool { return e.StepDown(now) },
		func() bool { return e.HardDrop(now) },
	}

	prevScore, prevLines := 0, 0
	for i := 0; i < 5000 && !e.GameOver(); i++ {
		now = now.Add(50 * time.Millisecond)
		if e.IsClearing() {
			e.Advance(now.Add(DefaultClearDelay))
		} else {
			actions[rng.Intn(len(actions))]()
		}
		st := e.State()
		if st.Score < prevScore || st.Lines < prevLines {
			t.Fatalf("step %d: score %d->%d lines %d->%d", i, prevScore, st.Score, prevLines, st.Lines)
		}
		if st.Level != st.Lines/10+1 {
			t.Fatalf("step %d: level %d for %d lines", i, st.Level, st.Lines)
		}
		prevScore, prevLines = st.Score, st.Lines
	}
}

func TestControllerGates(t *testing.T) {
	e := newTestEngine(KindI)
	fillRow(&e.board, 19, 3, 4, 5, 6)
	e.Start(t0)
	c := NewController(e, false)
	c.SetClock(func() time.Time { return t0 })

	if !c.Apply(core.ActionHardDrop) {
		t.Fatal("hard drop rejected")
	}
	if !e.IsClearing() {
		t.Fatal("expected a pending clear")
	}
	for _, a := range []core.Action{
		core.ActionMoveLeft, core.ActionMoveRight, core.ActionSoftDrop,
		core.ActionRotateCW, core.ActionRotateCCW, core.ActionHold, core.ActionHardDrop,
	} {
		if c.Apply(a) {
			t.Errorf("%s accepted during line clear", a)
		}
	}
	if c.Apply(core.ActionQuit) {
		t.Error("non-gameplay action accepted")
	}
	if !c.Apply(core.ActionSurrender) {
		t.Fatal("surrender rejected during line clear")
	}
	st := e.State()
	if !st.Forfeited || len(st.ClearingRows) != 0 || st.Lines != 0 {
		t.Errorf("forfeit %v rows %v lines %d", st.Forfeited, st.ClearingRows, st.Lines)
	}
	if c.Apply(core.ActionSurrender) {
		t.Error("surrender accepted after game over")
	}
}

func TestSpectatorControllerIsReadOnly(t *testing.T) {
	e := newTestEngine(KindT)
	e.Start(t0)
	c := NewController(e, true)
	rev := e.State().Revision
	for a := core.ActionMoveLeft; a <= core.ActionSurrender; a++ {
		if c.Apply(a) {
			t.Errorf("spectator %s accepted", a)
		}
	}
	if e.State().Revision != rev {
		t.Error("spectator changed the engine")
	}
}

func TestGravityInterval(t *testing.T) {
	tests := []struct {
		level int
		want  time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 900 * time.Millisecond},
		{5, 600 * time.Millisecond},
		{10, 100 * time.Millisecond},
		{25, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := GravityInterval(tt.level); got != tt.want {
			t.Errorf("GravityInterval(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
