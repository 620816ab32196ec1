// Package multiplayer runs competitive block duels: rooms and matchmaking,
// the per-client Duel that couples a local engine to a mirrored opponent, and
// the arbiter that turns two finished games into one verdict.
package multiplayer

import "github.com/vovakirdan/blockduel/internal/replication"

// PlayerID is the stable opaque identifier supplied by the identity provider.
type PlayerID string

// SessionID uniquely identifies a connection (e.g., SSH session).
// One player may hold several sessions over time.
type SessionID string

// MatchID uniquely identifies a duel.
type MatchID string

// MatchMode defines how a match was arranged.
type MatchMode int

const (
	// MatchModeSolo is a single-player game with no opponent.
	MatchModeSolo MatchMode = iota

	// MatchModeCustom is a duel arranged through a room code.
	MatchModeCustom

	// MatchModeOnline is a duel arranged by the matchmaking queue.
	MatchModeOnline
)

// String returns a human-readable name for the match mode.
func (m MatchMode) String() string {
	switch m {
	case MatchModeSolo:
		return "Solo"
	case MatchModeCustom:
		return "Custom room"
	case MatchModeOnline:
		return "Online battle"
	default:
		return "Unknown"
	}
}

// Key returns the replication key of player's record in match.
func Key(match MatchID, player PlayerID) replication.Key {
	return replication.Key{MatchID: string(match), PlayerID: string(player)}
}
