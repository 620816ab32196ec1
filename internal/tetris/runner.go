package tetris

import (
	"context"
	"sync"
	"time"

	"github.com/vovakirdan/blockduel/internal/core"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Speed maps a level to its gravity period. Defaults to GravityInterval.
	Speed func(level int) time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Runner drives an Engine in real time: gravity ticks, line-clear deadlines
// and player input are serialized behind one mutex. Listeners receive a copy
// of the state after every change.
type Runner struct {
	mu        sync.Mutex
	ctrl      *Controller
	speed     func(level int) time.Duration
	clock     func() time.Time
	listeners []func(State)

	wake chan struct{}
	done chan struct{}
}

// NewRunner creates a runner around ctrl. The controller's clock is replaced
// with the runner's.
func NewRunner(ctrl *Controller, opts RunnerOptions) *Runner {
	if opts.Speed == nil {
		opts.Speed = GravityInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctrl.SetClock(opts.Clock)
	return &Runner{
		ctrl:  ctrl,
		speed: opts.Speed,
		clock: opts.Clock,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// OnChange registers fn to be called after each state change. Register
// listeners before calling Run.
func (r *Runner) OnChange(fn func(State)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// State returns the current simulation state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctrl.Engine().State()
}

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Apply routes a player action through the controller.
func (r *Runner) Apply(a core.Action) bool {
	return r.step(func(time.Time) bool { return r.ctrl.Apply(a) })
}

func (r *Runner) step(fn func(now time.Time) bool) bool {
	r.mu.Lock()
	changed := fn(r.clock())
	var st State
	var listeners []func(State)
	if changed {
		st = r.ctrl.Engine().State()
		listeners = append(listeners, r.listeners...)
	}
	r.mu.Unlock()

	if !changed {
		return false
	}
	for _, fn := range listeners {
		fn(st)
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Run starts the engine and drives it until game over or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	engine := r.ctrl.Engine()
	r.step(func(now time.Time) bool {
		engine.Start(now)
		return true
	})

	st := r.State()
	level := st.Level
	gravity := time.NewTicker(r.speed(level))
	defer gravity.Stop()

	clearTimer := time.NewTimer(time.Hour)
	clearTimer.Stop()
	defer clearTimer.Stop()
	var armed bool

	for !st.GameOver {
		spawned := false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gravity.C:
			r.step(engine.StepDown)
		case <-clearTimer.C:
			armed = false
			spawned = r.step(engine.Advance)
		case <-r.wake:
		}

		r.mu.Lock()
		st = engine.State()
		deadline, clearing := engine.ClearDeadline()
		r.mu.Unlock()

		// A piece spawned after a clear gets a full gravity period.
		if st.Level != level || spawned {
			level = st.Level
			gravity.Reset(r.speed(level))
		}
		switch {
		case clearing && !armed:
			wait := deadline.Sub(r.clock())
			if wait < 0 {
				wait = 0
			}
			clearTimer.Reset(wait)
			armed = true
		case !clearing && armed:
			clearTimer.Stop()
			armed = false
		}
	}
	return nil
}
