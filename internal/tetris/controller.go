package tetris

import (
	"time"

	"github.com/vovakirdan/blockduel/internal/core"
)

// Controller gates player input onto an Engine. Spectators, finished games
// and pending line clears reject gameplay actions; surrender only needs a live
// game owned by a player.
type Controller struct {
	engine    *Engine
	spectator bool
	now       func() time.Time
}

// NewController wraps engine. A spectator controller never mutates it.
func NewController(engine *Engine, spectator bool) *Controller {
	return &Controller{engine: engine, spectator: spectator, now: time.Now}
}

// SetClock replaces the time source used for drops and surrender.
func (c *Controller) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

func (c *Controller) Engine() *Engine { return c.engine }

func (c *Controller) Spectator() bool { return c.spectator }

func (c *Controller) accepts() bool {
	return !c.spectator && !c.engine.GameOver() && !c.engine.IsClearing()
}

func (c *Controller) MoveLeft() bool  { return c.accepts() && c.engine.Move(-1) }
func (c *Controller) MoveRight() bool { return c.accepts() && c.engine.Move(1) }
func (c *Controller) RotateCW() bool  { return c.accepts() && c.engine.Rotate(true) }
func (c *Controller) RotateCCW() bool { return c.accepts() && c.engine.Rotate(false) }
func (c *Controller) Hold() bool      { return c.accepts() && c.engine.Hold() }

func (c *Controller) SoftDrop() bool {
	return c.accepts() && c.engine.StepDown(c.now())
}

func (c *Controller) HardDrop() bool {
	return c.accepts() && c.engine.HardDrop(c.now())
}

func (c *Controller) Surrender() bool {
	if c.spectator || c.engine.GameOver() {
		return false
	}
	return c.engine.Surrender(c.now())
}

// Apply dispatches a gameplay action. Non-gameplay actions return false.
func (c *Controller) Apply(a core.Action) bool {
	switch a {
	case core.ActionMoveLeft:
		return c.MoveLeft()
	case core.ActionMoveRight:
		return c.MoveRight()
	case core.ActionSoftDrop:
		return c.SoftDrop()
	case core.ActionRotateCW:
		return c.RotateCW()
	case core.ActionRotateCCW:
		return c.RotateCCW()
	case core.ActionHold:
		return c.Hold()
	case core.ActionHardDrop:
		return c.HardDrop()
	case core.ActionSurrender:
		return c.Surrender()
	default:
		return false
	}
}
