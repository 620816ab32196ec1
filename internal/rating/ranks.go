package rating

// Rank is a named score tier.
type Rank struct {
	ID       int
	Name     string
	MinScore int
	Color    string
}

// Ranks lists every tier in ascending order of MinScore.
var Ranks = []Rank{
	{1, "Novice Blocker", 0, "#9CA3AF"},
	{2, "Quick Learner", 1000, "#10B981"},
	{3, "Tile Rookie", 3000, "#3B82F6"},
	{4, "Combo Trainee", 6000, "#8B5CF6"},
	{5, "Speed Shifter", 10000, "#06B6D4"},
	{6, "Smart Stacker", 15000, "#14B8A6"},
	{7, "Line Breaker", 22000, "#F59E0B"},
	{8, "Block Specialist", 30000, "#EF4444"},
	{9, "Tetris Warrior", 40000, "#DC2626"},
	{10, "Combo Slayer", 55000, "#EC4899"},
	{11, "Speed Master", 75000, "#A855F7"},
	{12, "IQ Strategist", 100000, "#6366F1"},
	{13, "Elite Tiler", 130000, "#8B5CF6"},
	{14, "Plasma Ranker", 170000, "#D946EF"},
	{15, "Void Commander", 220000, "#7C3AED"},
	{16, "Zen Grandmaster", 280000, "#06B6D4"},
	{17, "Matrix Hero", 350000, "#10B981"},
	{18, "Tetrion Legend", 450000, "#F59E0B"},
	{19, "Block Emperor", 600000, "#EAB308"},
	{20, "Infinite Coder", 800000, "#FFFFFF"},
}

func rankIndex(score int) int {
	for i := len(Ranks) - 1; i >= 0; i-- {
		if score >= Ranks[i].MinScore {
			return i
		}
	}
	return 0
}

// RankByScore returns the highest tier whose threshold score reaches.
func RankByScore(score int) Rank {
	return Ranks[rankIndex(score)]
}

// NextRank returns the tier after the one score is in, if any.
func NextRank(score int) (Rank, bool) {
	i := rankIndex(score) + 1
	if i >= len(Ranks) {
		return Rank{}, false
	}
	return Ranks[i], true
}

// ScoreProgress reports progress from the current tier to the next. At the
// top tier it is complete.
func ScoreProgress(score int) Progress {
	cur := RankByScore(score)
	next, ok := NextRank(score)
	if !ok {
		return Progress{Current: score, Next: score, Percent: 100, Level: cur.ID}
	}
	in := score - cur.MinScore
	if in < 0 {
		in = 0
	}
	span := next.MinScore - cur.MinScore
	return Progress{
		Current: in,
		Next:    span,
		Percent: min(float64(in)/float64(span)*100, 100),
		Level:   cur.ID,
	}
}
