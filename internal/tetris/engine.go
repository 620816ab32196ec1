package tetris

import "time"

// DefaultClearDelay is how long completed rows stay visible before removal.
const DefaultClearDelay = 300 * time.Millisecond

// Phase is the simulation state. Spawning and Locking are transient: every
// exported operation leaves the engine Falling, LineClearing or GameOver.
type Phase int

const (
	PhaseSpawning Phase = iota
	PhaseFalling
	PhaseLocking
	PhaseLineClearing
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseSpawning:
		return "Spawning"
	case PhaseFalling:
		return "Falling"
	case PhaseLocking:
		return "Locking"
	case PhaseLineClearing:
		return "LineClearing"
	case PhaseGameOver:
		return "GameOver"
	default:
		return "Unknown"
	}
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Generator  Generator
	QueueDepth int
	ClearDelay time.Duration
}

// Engine owns one player's board state machine. It is not safe for
// concurrent use; Runner serializes access.
type Engine struct {
	clearDelay time.Duration

	board     Board
	active    Piece
	hasActive bool
	pos       Point
	hold      Kind
	canHold   bool
	queue     *Queue

	score  int
	lines  int
	level  int
	pieces int

	phase      Phase
	started    bool
	forfeited  bool
	startedAt  time.Time
	finishedAt time.Time

	clearRows []int
	clearAt   time.Time
	locked    []LockedCell
	revision  uint64
}

// NewEngine creates an engine in the Spawning phase. Call Start to spawn the
// first piece.
func NewEngine(opts Options) *Engine {
	if opts.Generator == nil {
		opts.Generator = NewRandomGenerator(time.Now().UnixNano())
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = QueueDepth
	}
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = DefaultClearDelay
	}
	return &Engine{
		clearDelay: opts.ClearDelay,
		queue:      NewQueue(opts.Generator, opts.QueueDepth),
		level:      1,
		canHold:    true,
		phase:      PhaseSpawning,
	}
}

// Start records the start time and spawns the first piece. Later calls are no-ops.
func (e *Engine) Start(now time.Time) {
	if e.started {
		return
	}
	e.started = true
	e.startedAt = now
	e.spawn(now)
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// GameOver reports whether the simulation reached its terminal state.
func (e *Engine) GameOver() bool { return e.phase == PhaseGameOver }

// IsClearing reports whether a line-clear window is pending.
func (e *Engine) IsClearing() bool { return e.phase == PhaseLineClearing }

// Level returns the current level.
func (e *Engine) Level() int { return e.level }

// ClearDeadline returns when the pending line clear completes.
func (e *Engine) ClearDeadline() (time.Time, bool) {
	if e.phase != PhaseLineClearing {
		return time.Time{}, false
	}
	return e.clearAt, true
}

func (e *Engine) changed() {
	e.revision++
}

func (e *Engine) spawn(now time.Time) {
	e.phase = PhaseSpawning
	e.place(NewPiece(e.queue.Pop()), now)
}

// place puts p at the spawn anchor, ending the game if it does not fit.
func (e *Engine) place(p Piece, now time.Time) {
	e.active = p
	e.pos = SpawnPosition
	e.hasActive = true
	if Collides(p, e.pos, &e.board) {
		e.finish(now, false)
		return
	}
	e.phase = PhaseFalling
	e.changed()
}

func (e *Engine) finish(now time.Time, forfeit bool) {
	e.phase = PhaseGameOver
	e.finishedAt = now
	e.forfeited = forfeit
	e.hasActive = false
	e.clearRows = nil
	e.changed()
}

// StepDown moves the active piece one row down, locking it when the move
// collides. Gravity ticks and soft drops both use it.
func (e *Engine) StepDown(now time.Time) bool {
	if e.phase != PhaseFalling {
		return false
	}
	next := e.pos.Add(Point{Y: 1})
	if !Collides(e.active, next, &e.board) {
		e.pos = next
		e.changed()
		return true
	}
	e.lock(now)
	return true
}

// HardDrop moves the active piece to the lowest valid row and locks it there.
func (e *Engine) HardDrop(now time.Time) bool {
	if e.phase != PhaseFalling {
		return false
	}
	for !Collides(e.active, e.pos.Add(Point{Y: 1}), &e.board) {
		e.pos.Y++
	}
	e.lock(now)
	return true
}

// lock merges the active piece at its current position.
func (e *Engine) lock(now time.Time) {
	e.phase = PhaseLocking
	board, cells := Merge(e.board, e.active, e.pos)
	e.board = board
	e.locked = append(e.locked, cells...)
	e.pieces++
	e.hasActive = false
	e.canHold = true

	if rows := CompleteLines(&e.board); len(rows) > 0 {
		e.phase = PhaseLineClearing
		e.clearRows = rows
		e.clearAt = now.Add(e.clearDelay)
		e.changed()
		return
	}
	e.spawn(now)
}

// Advance completes a pending line clear once its window has elapsed.
func (e *Engine) Advance(now time.Time) bool {
	if e.phase != PhaseLineClearing || now.Before(e.clearAt) {
		return false
	}
	rows := e.clearRows
	n := len(rows)

	e.board = ClearLines(e.board, rows)
	e.locked = ShiftLockedCells(e.locked, rows)
	e.score += n * 100 * e.level
	e.lines += n
	e.level = e.lines/10 + 1
	e.clearRows = nil

	e.spawn(now)
	return true
}

// Move shifts the active piece horizontally by dx if the target is free.
func (e *Engine) Move(dx int) bool {
	if e.phase != PhaseFalling {
		return false
	}
	next := e.pos.Add(Point{X: dx})
	if Collides(e.active, next, &e.board) {
		return false
	}
	e.pos = next
	e.changed()
	return true
}

// Rotate turns the active piece. A colliding rotation is rejected, no kicks.
func (e *Engine) Rotate(clockwise bool) bool {
	if e.phase != PhaseFalling {
		return false
	}
	rotated := RotateCCW(e.active)
	if clockwise {
		rotated = RotateCW(e.active)
	}
	if Collides(rotated, e.pos, &e.board) {
		return false
	}
	e.active = rotated
	e.changed()
	return true
}

// Hold stores the active piece and brings in the held one, or the next queued
// piece when the slot is empty. Allowed once per piece lifetime; a swap whose
// incoming piece does not fit at the spawn anchor is rejected.
func (e *Engine) Hold() bool {
	if e.phase != PhaseFalling || !e.canHold {
		return false
	}
	incoming := e.hold
	fromQueue := incoming == KindNone
	if fromQueue {
		incoming = e.queue.Peek()[0]
	}
	next := NewPiece(incoming)
	if Collides(next, SpawnPosition, &e.board) {
		return false
	}
	if fromQueue {
		e.queue.Pop()
	}
	e.hold = e.active.Kind
	e.active = next
	e.pos = SpawnPosition
	e.canHold = false
	e.changed()
	return true
}

// Surrender ends the game as a forfeit. It is accepted in any live phase.
func (e *Engine) Surrender(now time.Time) bool {
	if e.phase == PhaseGameOver {
		return false
	}
	e.finish(now, true)
	return true
}

// State is a read-only copy of the simulation.
type State struct {
	Board        Board
	Active       *Piece // nil when no piece is in play
	Position     Point
	Landing      Point // where a hard drop would lock the active piece
	Hold         Kind
	CanHold      bool
	Next         []Kind
	Score        int
	Lines        int
	Level        int
	Pieces       int
	Phase        Phase
	GameOver     bool
	Forfeited    bool
	ClearingRows []int
	StartedAt    time.Time
	FinishedAt   time.Time // zero until game over
	Locked       []LockedCell
	Revision     uint64
}

// Elapsed returns the time from start to finish, or false while still playing.
func (s State) Elapsed() (time.Duration, bool) {
	if !s.GameOver || s.FinishedAt.IsZero() {
		return 0, false
	}
	return s.FinishedAt.Sub(s.StartedAt), true
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	st := State{
		Board:        e.board,
		Position:     e.pos,
		Hold:         e.hold,
		CanHold:      e.canHold,
		Next:         e.queue.Peek(),
		Score:        e.score,
		Lines:        e.lines,
		Level:        e.level,
		Pieces:       e.pieces,
		Phase:        e.phase,
		GameOver:     e.phase == PhaseGameOver,
		Forfeited:    e.forfeited,
		ClearingRows: append([]int(nil), e.clearRows...),
		StartedAt:    e.startedAt,
		FinishedAt:   e.finishedAt,
		Locked:       append([]LockedCell(nil), e.locked...),
		Revision:     e.revision,
	}
	if e.hasActive {
		p := e.active
		st.Active = &p
		st.Landing = e.pos
		for !Collides(p, st.Landing.Add(Point{Y: 1}), &e.board) {
			st.Landing.Y++
		}
	}
	return st
}
