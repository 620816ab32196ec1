package multiplayer

import (
	"time"

	"github.com/google/uuid"
)

// Match describes a started duel. Both clients and any spectators receive the
// same value from the coordinator.
type Match struct {
	ID        MatchID
	Mode      MatchMode
	Players   [2]PlayerID
	StartedAt time.Time
	Code      string // room code, empty for matchmaking
}

// NewMatchID returns a fresh random match identifier.
func NewMatchID() MatchID {
	return MatchID(uuid.NewString())
}

// NewMatch creates a match between two players starting now.
func NewMatch(mode MatchMode, a, b PlayerID, now time.Time) Match {
	return Match{
		ID:        NewMatchID(),
		Mode:      mode,
		Players:   [2]PlayerID{a, b},
		StartedAt: now,
	}
}

// Has reports whether p plays in the match.
func (m Match) Has(p PlayerID) bool {
	return m.Players[0] == p || m.Players[1] == p
}

// Opponent returns the other player.
func (m Match) Opponent(p PlayerID) (PlayerID, bool) {
	switch p {
	case m.Players[0]:
		return m.Players[1], true
	case m.Players[1]:
		return m.Players[0], true
	default:
		return "", false
	}
}
