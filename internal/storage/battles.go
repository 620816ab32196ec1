package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/rating"
)

const battleColumns = `match_id, winner_id, loser_id, winner_score, loser_score,
	winner_lines, loser_lines, winner_time_ms, loser_time_ms, reason,
	winner_delta, loser_delta, winner_rating, loser_rating, created_at`

func scanBattle(row scanner) (multiplayer.BattleRecord, error) {
	var rec multiplayer.BattleRecord
	var winnerMs, loserMs int64
	var reason string
	var createdAt any
	r := &rec.Result
	err := row.Scan(&r.MatchID, &r.WinnerID, &r.LoserID, &r.WinnerScore, &r.LoserScore,
		&r.WinnerLines, &r.LoserLines, &winnerMs, &loserMs, &reason,
		&rec.WinnerDelta, &rec.LoserDelta, &rec.WinnerRating, &rec.LoserRating, &createdAt)
	if err != nil {
		return multiplayer.BattleRecord{}, err
	}
	r.WinnerTime = time.Duration(winnerMs) * time.Millisecond
	r.LoserTime = time.Duration(loserMs) * time.Millisecond
	r.Reason = multiplayer.Reason(reason)
	rec.RecordedAt = parseTime(createdAt)
	return rec, nil
}

// RecordBattle applies a battle result exactly once per match id. Both
// profiles must exist. A repeated submission returns the stored record with
// Applied set to false and changes nothing.
func (s *Store) RecordBattle(ctx context.Context, res multiplayer.BattleResult) (multiplayer.BattleRecord, error) {
	if res.MatchID == "" || res.WinnerID == "" || res.LoserID == "" || res.WinnerID == res.LoserID {
		return multiplayer.BattleRecord{}, fmt.Errorf("storage: invalid battle result for match %q", res.MatchID)
	}
	params := s.ratingParams()

	var rec multiplayer.BattleRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Claim the match id first so concurrent submissions serialize on it.
		claim, err := tx.ExecContext(ctx,
			`INSERT INTO battle_results (match_id, winner_id, loser_id) VALUES (?, ?, ?)
			 ON CONFLICT(match_id) DO NOTHING`,
			res.MatchID, res.WinnerID, res.LoserID,
		)
		if err != nil {
			return fmt.Errorf("storage: cannot claim match %s: %w", res.MatchID, err)
		}
		if n, err := claim.RowsAffected(); err != nil {
			return fmt.Errorf("storage: cannot claim match %s: %w", res.MatchID, err)
		} else if n == 0 {
			stored, err := scanBattle(tx.QueryRowContext(ctx,
				`SELECT `+battleColumns+` FROM battle_results WHERE match_id = ?`, res.MatchID))
			if err != nil {
				return fmt.Errorf("storage: cannot load match %s: %w", res.MatchID, err)
			}
			rec = stored
			return nil
		}

		winner, err := getProfile(ctx, tx, string(res.WinnerID))
		if err != nil {
			return err
		}
		loser, err := getProfile(ctx, tx, string(res.LoserID))
		if err != nil {
			return err
		}
		if winner == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, res.WinnerID)
		}
		if loser == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, res.LoserID)
		}

		out := params.Apply(
			rating.Player{Rating: winner.Rating, Score: res.WinnerScore, Lines: res.WinnerLines, TimeAlive: res.WinnerTime},
			rating.Player{Rating: loser.Rating, Score: res.LoserScore, Lines: res.LoserLines, TimeAlive: res.LoserTime},
		)

		winner.Rating = out.WinnerRating
		winner.Wins++
		loser.Rating = out.LoserRating
		loser.Losses++
		if err := putProfile(ctx, tx, *winner); err != nil {
			return err
		}
		if err := putProfile(ctx, tx, *loser); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE battle_results SET
				winner_score = ?, loser_score = ?, winner_lines = ?, loser_lines = ?,
				winner_time_ms = ?, loser_time_ms = ?, reason = ?,
				winner_delta = ?, loser_delta = ?, winner_rating = ?, loser_rating = ?
			 WHERE match_id = ?`,
			res.WinnerScore, res.LoserScore, res.WinnerLines, res.LoserLines,
			res.WinnerTime.Milliseconds(), res.LoserTime.Milliseconds(), string(res.Reason),
			out.Winner, out.Loser, out.WinnerRating, out.LoserRating,
			res.MatchID,
		); err != nil {
			return fmt.Errorf("storage: cannot save battle %s: %w", res.MatchID, err)
		}

		rec = multiplayer.BattleRecord{
			Result:       res,
			WinnerDelta:  out.Winner,
			LoserDelta:   out.Loser,
			WinnerRating: out.WinnerRating,
			LoserRating:  out.LoserRating,
			RecordedAt:   time.Now(),
			Applied:      true,
		}
		return nil
	})
	if err != nil {
		return multiplayer.BattleRecord{}, err
	}
	return rec, nil
}

// Battle returns the stored record for a match, or nil.
func (s *Store) Battle(ctx context.Context, matchID multiplayer.MatchID) (*multiplayer.BattleRecord, error) {
	rec, err := scanBattle(s.db.QueryRowContext(ctx,
		`SELECT `+battleColumns+` FROM battle_results WHERE match_id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query battle %s: %w", matchID, err)
	}
	return &rec, nil
}

// RecentBattles returns the latest battles a player took part in.
func (s *Store) RecentBattles(ctx context.Context, playerID string, limit int) ([]multiplayer.BattleRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+battleColumns+`
		 FROM battle_results
		 WHERE winner_id = ? OR loser_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		playerID, playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query player battles: %w", err)
	}
	defer rows.Close()

	var out []multiplayer.BattleRecord
	for rows.Next() {
		rec, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// Ensure Store implements ResultRecorder
var _ multiplayer.ResultRecorder = (*Store)(nil)
