package rating

// XPPerLevel is the experience needed for each player level.
const XPPerLevel = 1000

// XP returns the experience earned by one game.
func XP(score, lines, level int) int {
	return floorDiv(score, 10) + lines*5 + level*10
}

// LevelForXP returns the player level reached with xp total experience.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

// Progress describes advancement towards a threshold.
type Progress struct {
	Current int
	Next    int
	Percent float64
	Level   int
}

// XPProgress reports how far xp is into its current level.
func XPProgress(xp int) Progress {
	level := LevelForXP(xp)
	current := xp - (level-1)*XPPerLevel
	if current < 0 {
		current = 0
	}
	return Progress{
		Current: current,
		Next:    XPPerLevel,
		Percent: min(float64(current)/XPPerLevel*100, 100),
		Level:   level,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
