package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vovakirdan/blockduel/internal/rating"
)

// GameScore is a finished solo game.
type GameScore struct {
	PlayerID    string        `json:"playerId"`
	DisplayName string        `json:"displayName,omitempty"`
	Score       int           `json:"score"`
	Lines       int           `json:"lines"`
	Level       int           `json:"level"`
	Pieces      int           `json:"pieces"`
	Duration    time.Duration `json:"duration"`
}

// ScoreEntry represents a single stored game.
type ScoreEntry struct {
	ID        int64
	GameScore
	XP        int
	CreatedAt time.Time
}

// SaveGameScore stores a solo game and folds it into the player's profile,
// creating the profile if needed. It returns the XP earned.
func (s *Store) SaveGameScore(ctx context.Context, g GameScore) (int, error) {
	if g.PlayerID == "" {
		return 0, fmt.Errorf("storage: cannot save score: empty player id")
	}
	xp := rating.XP(g.Score, g.Lines, g.Level)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scores (player_id, score, lines, level, pieces, duration_ms, xp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.PlayerID, g.Score, g.Lines, g.Level, g.Pieces, g.Duration.Milliseconds(), xp,
		); err != nil {
			return fmt.Errorf("storage: cannot save score: %w", err)
		}

		existing, err := getProfile(ctx, tx, g.PlayerID)
		if err != nil {
			return err
		}
		p := newProfile(g.PlayerID)
		if existing != nil {
			p = *existing
		}
		if p.DisplayName == "" {
			p.DisplayName = g.DisplayName
		}
		p.TotalXP += xp
		p.TotalGames++
		p.TotalScore += int64(g.Score)
		p.TotalLines += g.Lines
		p.BestScore = max(p.BestScore, g.Score)
		return putProfile(ctx, tx, p)
	})
	if err != nil {
		return 0, err
	}
	return xp, nil
}

// RecentScores returns a player's latest solo games.
func (s *Store) RecentScores(ctx context.Context, playerID string, limit int) ([]ScoreEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, player_id, score, lines, level, pieces, duration_ms, xp, created_at
		 FROM scores
		 WHERE player_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query scores: %w", err)
	}
	defer rows.Close()

	var entries []ScoreEntry
	for rows.Next() {
		var e ScoreEntry
		var durationMs int64
		var createdAt any
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.Score, &e.Lines, &e.Level, &e.Pieces,
			&durationMs, &e.XP, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return entries, nil
}
