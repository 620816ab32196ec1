// Package rating computes battle rating adjustments, experience points and
// score ranks. Everything here is pure and safe for concurrent use.
package rating

import (
	"math"
	"time"
)

// DefaultRating is the rating of a player with no recorded battles.
const DefaultRating = 1000

// Params tunes the rating formula.
type Params struct {
	K               float64
	Initial         int
	MaxBonus        int // cap on the winner's score-margin bonus
	BonusPoints     int // score margin worth one bonus point
	MaxLeniency     int // cap on the loser's survival leniency
	LeniencySeconds int // seconds survived worth one leniency point
	MinGain         int // smallest winner delta
	MaxLoss         int // largest loser penalty, as a positive number
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		K:               32,
		Initial:         DefaultRating,
		MaxBonus:        10,
		BonusPoints:     1000,
		MaxLeniency:     5,
		LeniencySeconds: 30,
		MinGain:         10,
		MaxLoss:         25,
	}
}

// Player is one side of a finished battle.
type Player struct {
	Rating    int
	Score     int
	Lines     int
	TimeAlive time.Duration
}

// Delta holds the rating changes for a battle.
type Delta struct {
	Winner int
	Loser  int
}

// Result holds the deltas together with the new ratings.
type Result struct {
	Delta
	WinnerRating int
	LoserRating  int
}

// Expected returns the winner's expected score on the logistic curve.
func Expected(winnerRating, loserRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
}

// Adjust computes the rating deltas with DefaultParams.
func Adjust(winner, loser Player) Delta {
	return DefaultParams().Adjust(winner, loser)
}

// Adjust computes the rating deltas for a battle won by winner.
func (p Params) Adjust(winner, loser Player) Delta {
	surprise := 1 - Expected(winner.Rating, loser.Rating)

	w := roundHalfUp(p.K * surprise)
	l := roundHalfUp(p.K * -surprise)

	if p.BonusPoints > 0 {
		bonus := int(math.Floor(float64(winner.Score-loser.Score) / float64(p.BonusPoints)))
		w += min(p.MaxBonus, bonus)
	}
	if p.LeniencySeconds > 0 {
		alive := math.Max(0, loser.TimeAlive.Seconds())
		l += min(p.MaxLeniency, int(math.Floor(alive/float64(p.LeniencySeconds))))
	}

	return Delta{
		Winner: max(p.MinGain, w),
		Loser:  max(-p.MaxLoss, l),
	}
}

// Apply computes the deltas and the resulting ratings. A loser's rating
// never drops below zero.
func (p Params) Apply(winner, loser Player) Result {
	d := p.Adjust(winner, loser)
	return Result{
		Delta:        d,
		WinnerRating: winner.Rating + d.Winner,
		LoserRating:  max(0, loser.Rating+d.Loser),
	}
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
