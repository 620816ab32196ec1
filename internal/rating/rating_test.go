package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustEvenMatch(t *testing.T) {
	res := DefaultParams().Apply(
		Player{Rating: 1000, Score: 5000, TimeAlive: 100 * time.Second},
		Player{Rating: 1000, Score: 3000, TimeAlive: 80 * time.Second},
	)
	assert.Equal(t, 18, res.Winner)
	assert.Equal(t, -14, res.Loser)
	assert.Equal(t, 1018, res.WinnerRating)
	assert.Equal(t, 986, res.LoserRating)
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name   string
		winner Player
		loser  Player
		want   Delta
	}{
		{
			name:   "equal ratings no bonus",
			winner: Player{Rating: 1000, Score: 1000},
			loser:  Player{Rating: 1000, Score: 1000},
			want:   Delta{Winner: 16, Loser: -16},
		},
		{
			name:   "bonus capped",
			winner: Player{Rating: 1000, Score: 50000},
			loser:  Player{Rating: 1000},
			want:   Delta{Winner: 26, Loser: -16},
		},
		{
			name:   "leniency capped",
			winner: Player{Rating: 1000},
			loser:  Player{Rating: 1000, TimeAlive: time.Hour},
			want:   Delta{Winner: 16, Loser: -11},
		},
		{
			name:   "favourite wins gains minimum",
			winner: Player{Rating: 2000},
			loser:  Player{Rating: 1000},
			want:   Delta{Winner: 10, Loser: 0},
		},
		{
			name:   "underdog wins loss capped",
			winner: Player{Rating: 1000},
			loser:  Player{Rating: 2000},
			want:   Delta{Winner: 32, Loser: -25},
		},
		{
			name:   "tie-break winner with lower score",
			winner: Player{Rating: 1000, Score: 500},
			loser:  Player{Rating: 1000, Score: 1000},
			want:   Delta{Winner: 15, Loser: -16},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Adjust(tt.winner, tt.loser))
		})
	}
}

func TestRatingBounds(t *testing.T) {
	p := DefaultParams()
	for wr := 0; wr <= 3000; wr += 150 {
		for lr := 0; lr <= 3000; lr += 150 {
			for _, margin := range []int{-20000, -999, 0, 1500, 40000} {
				res := p.Apply(
					Player{Rating: wr, Score: 20000 + margin},
					Player{Rating: lr, Score: 20000, TimeAlive: time.Duration(lr) * time.Millisecond},
				)
				require.GreaterOrEqual(t, res.Winner, 10)
				require.GreaterOrEqual(t, res.Loser, -25)
				require.GreaterOrEqual(t, res.LoserRating, 0)
			}
		}
	}
}

func TestLoserRatingFloor(t *testing.T) {
	res := DefaultParams().Apply(Player{Rating: 0}, Player{Rating: 5})
	assert.Equal(t, 0, res.LoserRating)
}

func TestExpected(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-9)
	assert.InDelta(t, 1/(1+10.0), Expected(1000, 1400), 1e-9)
}

func TestXP(t *testing.T) {
	assert.Equal(t, 0+0+10, XP(0, 0, 1))
	assert.Equal(t, 523+40*5+5*10, XP(5234, 40, 5))
	assert.Equal(t, 1, LevelForXP(999))
	assert.Equal(t, 2, LevelForXP(1000))
	assert.Equal(t, 1, LevelForXP(-5))

	p := XPProgress(2250)
	assert.Equal(t, Progress{Current: 250, Next: 1000, Percent: 25, Level: 3}, p)
}

func TestRanks(t *testing.T) {
	require.Len(t, Ranks, 20)
	for i := 1; i < len(Ranks); i++ {
		require.Greater(t, Ranks[i].MinScore, Ranks[i-1].MinScore)
	}

	assert.Equal(t, "Novice Blocker", RankByScore(0).Name)
	assert.Equal(t, "Novice Blocker", RankByScore(-10).Name)
	assert.Equal(t, "Quick Learner", RankByScore(1000).Name)
	assert.Equal(t, "Block Emperor", RankByScore(799999).Name)
	assert.Equal(t, "Infinite Coder", RankByScore(5000000).Name)

	next, ok := NextRank(2500)
	require.True(t, ok)
	assert.Equal(t, "Tile Rookie", next.Name)
	_, ok = NextRank(800000)
	assert.False(t, ok)
}

func TestScoreProgress(t *testing.T) {
	p := ScoreProgress(2000)
	assert.Equal(t, 1000, p.Current)
	assert.Equal(t, 2000, p.Next)
	assert.InDelta(t, 50, p.Percent, 1e-9)

	top := ScoreProgress(900000)
	assert.InDelta(t, 100, top.Percent, 1e-9)
	assert.Equal(t, 20, top.Level)
}
