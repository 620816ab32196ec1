package tetris

import "time"

const (
	BaseGravity    = time.Second
	GravityStep    = 100 * time.Millisecond
	MinimumGravity = 100 * time.Millisecond
)

// GravityInterval returns the automatic drop period for level.
func GravityInterval(level int) time.Duration {
	if level < 1 {
		level = 1
	}
	d := BaseGravity - time.Duration(level-1)*GravityStep
	if d < MinimumGravity {
		return MinimumGravity
	}
	return d
}
