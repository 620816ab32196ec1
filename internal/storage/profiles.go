package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/blockduel/internal/rating"
)

// Profile is a player's persistent record.
type Profile struct {
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Rating      int       `json:"rating"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	BestScore   int       `json:"bestScore"`
	TotalGames  int       `json:"totalGames"`
	TotalScore  int64     `json:"totalScore"`
	TotalLines  int       `json:"totalLines"`
	TotalXP     int       `json:"totalXP"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Level returns the player level derived from total XP.
func (p Profile) Level() int { return rating.LevelForXP(p.TotalXP) }

// Rank returns the score tier of the player's best score.
func (p Profile) Rank() rating.Rank { return rating.RankByScore(p.BestScore) }

// ProfileUpdate lists fields to write. Nil fields are left alone by a merge.
type ProfileUpdate struct {
	DisplayName *string
	Rating      *int
	Wins        *int
	Losses      *int
	BestScore   *int
	TotalGames  *int
	TotalScore  *int64
	TotalLines  *int
	TotalXP     *int
}

func newProfile(id string) Profile {
	return Profile{PlayerID: id, Rating: rating.DefaultRating}
}

func (u ProfileUpdate) apply(p *Profile) {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Rating != nil {
		p.Rating = *u.Rating
	}
	if u.Wins != nil {
		p.Wins = *u.Wins
	}
	if u.Losses != nil {
		p.Losses = *u.Losses
	}
	if u.BestScore != nil {
		p.BestScore = *u.BestScore
	}
	if u.TotalGames != nil {
		p.TotalGames = *u.TotalGames
	}
	if u.TotalScore != nil {
		p.TotalScore = *u.TotalScore
	}
	if u.TotalLines != nil {
		p.TotalLines = *u.TotalLines
	}
	if u.TotalXP != nil {
		p.TotalXP = *u.TotalXP
	}
}

const profileColumns = `player_id, display_name, rating, wins, losses, best_score,
	total_games, total_score, total_lines, total_xp, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var p Profile
	var createdAt, updatedAt any
	err := row.Scan(&p.PlayerID, &p.DisplayName, &p.Rating, &p.Wins, &p.Losses, &p.BestScore,
		&p.TotalGames, &p.TotalScore, &p.TotalLines, &p.TotalXP, &createdAt, &updatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func getProfile(ctx context.Context, q querier, id string) (*Profile, error) {
	p, err := scanProfile(q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE player_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query profile %s: %w", id, err)
	}
	return &p, nil
}

func putProfile(ctx context.Context, q querier, p Profile) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO profiles (player_id, display_name, rating, wins, losses, best_score,
			total_games, total_score, total_lines, total_xp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
			display_name = excluded.display_name,
			rating = excluded.rating,
			wins = excluded.wins,
			losses = excluded.losses,
			best_score = excluded.best_score,
			total_games = excluded.total_games,
			total_score = excluded.total_score,
			total_lines = excluded.total_lines,
			total_xp = excluded.total_xp,
			updated_at = CURRENT_TIMESTAMP`,
		p.PlayerID, p.DisplayName, p.Rating, p.Wins, p.Losses, p.BestScore,
		p.TotalGames, p.TotalScore, p.TotalLines, p.TotalXP,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save profile %s: %w", p.PlayerID, err)
	}
	return nil
}

// GetProfile returns the profile for id, or nil when there is none.
func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	return getProfile(ctx, s.db, id)
}

// SetProfile writes upd. With merge only the non-nil fields change and a
// missing profile is created with defaults; without merge the record is
// replaced by defaults overlaid with upd.
func (s *Store) SetProfile(ctx context.Context, id string, upd ProfileUpdate, merge bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		p := newProfile(id)
		if merge {
			existing, err := getProfile(ctx, tx, id)
			if err != nil {
				return err
			}
			if existing != nil {
				p = *existing
			}
		}
		upd.apply(&p)
		return putProfile(ctx, tx, p)
	})
}

// EnsureProfile creates a default profile for id if none exists and returns
// the stored profile. A non-empty name fills in a missing display name.
func (s *Store) EnsureProfile(ctx context.Context, id, name string) (*Profile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (player_id, display_name, rating) VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET display_name = excluded.display_name
		 WHERE profiles.display_name = '' AND excluded.display_name != ''`,
		id, name, rating.DefaultRating,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot create profile %s: %w", id, err)
	}
	return s.GetProfile(ctx, id)
}

// TopScores returns profiles ordered by best solo score.
func (s *Store) TopScores(ctx context.Context, limit int) ([]Profile, error) {
	return s.leaderboard(ctx, "best_score DESC, total_xp DESC", limit)
}

// TopRated returns profiles ordered by battle rating.
func (s *Store) TopRated(ctx context.Context, limit int) ([]Profile, error) {
	return s.leaderboard(ctx, "rating DESC, wins DESC", limit)
}

func (s *Store) leaderboard(ctx context.Context, order string, limit int) ([]Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY `+order+`, player_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}
