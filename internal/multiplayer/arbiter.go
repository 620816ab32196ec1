package multiplayer

import (
	"context"
	"sync"
	"time"

	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

// Outcome is one side's terminal view as seen by the arbiter.
type Outcome struct {
	PlayerID   PlayerID
	Score      int
	Lines      int
	GameOver   bool
	Forfeited  bool
	StartedAt  time.Time
	FinishedAt time.Time // zero when unknown
}

// OutcomeFromState reads the local engine state. Timestamps are cut to the
// millisecond precision of the wire snapshot so the local side is judged
// exactly as the peer sees it.
func OutcomeFromState(id PlayerID, st tetris.State) Outcome {
	return Outcome{
		PlayerID:   id,
		Score:      st.Score,
		Lines:      st.Lines,
		GameOver:   st.GameOver,
		Forfeited:  st.Forfeited,
		StartedAt:  wireTime(st.StartedAt),
		FinishedAt: wireTime(st.FinishedAt),
	}
}

func wireTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli())
}

// OutcomeFromSnapshot reads a mirrored snapshot.
func OutcomeFromSnapshot(id PlayerID, s replication.Snapshot) Outcome {
	o := Outcome{
		PlayerID:  id,
		Score:     s.Score,
		Lines:     s.Lines,
		GameOver:  s.GameOver,
		Forfeited: s.Forfeited,
		StartedAt: s.Started(),
	}
	if t, ok := s.Finished(); ok {
		o.FinishedAt = t
	}
	return o
}

// Elapsed returns the time from start to finish. Without a finish time the
// elapsed time is unbounded and ok is false.
func (o Outcome) Elapsed(start time.Time) (d time.Duration, ok bool) {
	if start.IsZero() {
		start = o.StartedAt
	}
	if o.FinishedAt.IsZero() || start.IsZero() {
		return 0, false
	}
	return o.FinishedAt.Sub(start), true
}

// Reason names the rule that decided a verdict.
type Reason string

const (
	ReasonForfeit  Reason = "forfeit"
	ReasonScore    Reason = "score"
	ReasonTime     Reason = "time"
	ReasonPlayerID Reason = "player-id"
)

// Verdict is the decided result of a duel.
type Verdict struct {
	Winner Outcome
	Loser  Outcome
	Reason Reason
	Start  time.Time
}

// Decide applies the duel rules in priority order: a local forfeit loses, a
// peer forfeit wins, the higher score wins, the faster finisher wins. Equal
// times fall back to the smaller player id so every client reaches the same
// verdict.
func Decide(local, peer Outcome, start time.Time) Verdict {
	win := func(w, l Outcome, r Reason) Verdict {
		return Verdict{Winner: w, Loser: l, Reason: r, Start: start}
	}
	switch {
	case local.Forfeited:
		return win(peer, local, ReasonForfeit)
	case peer.Forfeited:
		return win(local, peer, ReasonForfeit)
	case local.Score > peer.Score:
		return win(local, peer, ReasonScore)
	case peer.Score > local.Score:
		return win(peer, local, ReasonScore)
	}

	lt, lok := local.Elapsed(start)
	pt, pok := peer.Elapsed(start)
	switch {
	case lok && (!pok || lt < pt):
		return win(local, peer, ReasonTime)
	case pok && (!lok || pt < lt):
		return win(peer, local, ReasonTime)
	case local.PlayerID < peer.PlayerID:
		return win(local, peer, ReasonPlayerID)
	default:
		return win(peer, local, ReasonPlayerID)
	}
}

// Result converts the verdict into the record submitted for rating.
func (v Verdict) Result(match MatchID) BattleResult {
	wt, _ := v.Winner.Elapsed(v.Start)
	lt, _ := v.Loser.Elapsed(v.Start)
	return BattleResult{
		MatchID:     match,
		WinnerID:    v.Winner.PlayerID,
		LoserID:     v.Loser.PlayerID,
		WinnerScore: v.Winner.Score,
		LoserScore:  v.Loser.Score,
		WinnerLines: v.Winner.Lines,
		LoserLines:  v.Loser.Lines,
		WinnerTime:  max(wt, 0),
		LoserTime:   max(lt, 0),
		Reason:      v.Reason,
	}
}

// Arbiter produces at most one verdict per match, once both sides are over.
type Arbiter struct {
	start time.Time

	mu      sync.Mutex
	verdict *Verdict
}

// NewArbiter creates an arbiter for a match that started at start.
func NewArbiter(start time.Time) *Arbiter {
	return &Arbiter{start: start}
}

// Observe decides the match when both outcomes are terminal. It returns true
// only on the call that produced the verdict.
func (a *Arbiter) Observe(local, peer Outcome) (Verdict, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.verdict != nil {
		return *a.verdict, false
	}
	if !local.GameOver || !peer.GameOver {
		return Verdict{}, false
	}
	v := Decide(local, peer, a.start)
	a.verdict = &v
	return v, true
}

// Verdict returns the decided verdict, if any.
func (a *Arbiter) Verdict() (Verdict, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.verdict == nil {
		return Verdict{}, false
	}
	return *a.verdict, true
}

// BattleResult is the match outcome submitted to the rating store. MatchID is
// the idempotency key: a second submission for the same match has no effect.
type BattleResult struct {
	MatchID     MatchID       `json:"matchId"`
	WinnerID    PlayerID      `json:"winnerId"`
	LoserID     PlayerID      `json:"loserId"`
	WinnerScore int           `json:"winnerScore"`
	LoserScore  int           `json:"loserScore"`
	WinnerLines int           `json:"winnerLines"`
	LoserLines  int           `json:"loserLines"`
	WinnerTime  time.Duration `json:"winnerTime"`
	LoserTime   time.Duration `json:"loserTime"`
	Reason      Reason        `json:"reason"`
}

// BattleRecord is the stored effect of a BattleResult.
type BattleRecord struct {
	Result       BattleResult `json:"result"`
	WinnerDelta  int          `json:"winnerDelta"`
	LoserDelta   int          `json:"loserDelta"`
	WinnerRating int          `json:"winnerRating"`
	LoserRating  int          `json:"loserRating"`
	RecordedAt   time.Time    `json:"recordedAt"`
	Applied      bool         `json:"applied"` // false when the match was already recorded
}

// ResultRecorder persists battle results and applies rating changes.
// Implemented by the sqlite store and by the relay HTTP client.
type ResultRecorder interface {
	RecordBattle(ctx context.Context, result BattleResult) (BattleRecord, error)
}
