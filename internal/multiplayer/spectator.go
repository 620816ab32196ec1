package multiplayer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/replication"
)

// Spectator watches both players of a match. It holds no engine, so it can
// never affect either game.
type Spectator struct {
	match   Match
	mirrors [2]*replication.Mirror
	arbiter *Arbiter
}

// Watch subscribes to both players' records.
func Watch(ctx context.Context, t replication.Transport, match Match, logger *log.Logger) (*Spectator, error) {
	s := &Spectator{match: match, arbiter: NewArbiter(match.StartedAt)}
	for i, p := range match.Players {
		m, err := replication.Follow(ctx, t, Key(match.ID, p), logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mirrors[i] = m
	}
	return s, nil
}

func (s *Spectator) Match() Match { return s.match }

// Player returns the mirrored view of player i (0 or 1).
func (s *Spectator) Player(i int) replication.MirrorState {
	return s.mirrors[i].State()
}

// OnChange registers fn on both mirrors.
func (s *Spectator) OnChange(fn func()) {
	for _, m := range s.mirrors {
		m.OnChange(func(replication.MirrorState) { fn() })
	}
}

// Verdict decides the match from the first player's perspective once both
// records are terminal.
func (s *Spectator) Verdict() (Verdict, bool) {
	a := OutcomeFromSnapshot(s.match.Players[0], s.mirrors[0].State().Snapshot)
	b := OutcomeFromSnapshot(s.match.Players[1], s.mirrors[1].State().Snapshot)
	if v, ok := s.arbiter.Observe(a, b); ok {
		return v, true
	}
	return s.arbiter.Verdict()
}

// Close unsubscribes from both records.
func (s *Spectator) Close() {
	for _, m := range s.mirrors {
		if m != nil {
			m.Close()
		}
	}
}
