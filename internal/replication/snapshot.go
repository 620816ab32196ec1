package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/blockduel/internal/tetris"
)

// Point is a board coordinate on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Snapshot is the published view of one player's game.
type Snapshot struct {
	Score       int                 `json:"score"`
	Lines       int                 `json:"lines"`
	Level       int                 `json:"level"`
	GameOver    bool                `json:"gameOver"`
	Forfeited   bool                `json:"forfeited"`
	Piece       string              `json:"currentPieceType,omitempty"`
	Position    *Point              `json:"position,omitempty"`
	LockedCells []tetris.LockedCell `json:"lockedCells"`
	FinishTime  *int64              `json:"finishTime,omitempty"`
	StartTime   int64               `json:"startTime"`
	LastUpdate  int64               `json:"lastUpdate"`
}

// EmptySnapshot is the view of a player nothing has been heard from.
func EmptySnapshot() Snapshot {
	return Snapshot{Level: 1, LockedCells: []tetris.LockedCell{}}
}

// FromState builds the published view of a local engine state. LastUpdate is
// stamped by the publisher.
func FromState(st tetris.State) Snapshot {
	s := Snapshot{
		Score:       st.Score,
		Lines:       st.Lines,
		Level:       st.Level,
		GameOver:    st.GameOver,
		Forfeited:   st.Forfeited,
		LockedCells: st.Locked,
	}
	if s.LockedCells == nil {
		s.LockedCells = []tetris.LockedCell{}
	}
	if st.Active != nil {
		s.Piece = st.Active.Kind.String()
		s.Position = &Point{X: st.Position.X, Y: st.Position.Y}
	}
	if !st.StartedAt.IsZero() {
		s.StartTime = st.StartedAt.UnixMilli()
	}
	if st.GameOver && !st.FinishedAt.IsZero() {
		ms := st.FinishedAt.UnixMilli()
		s.FinishTime = &ms
	}
	return s
}

// Decode parses a wire snapshot field by field. Missing or malformed fields
// take safe defaults: level 1, an empty locked-cell list, unset flags and no
// piece or timestamps. Only a payload that is not a JSON object is an error.
func Decode(data []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("not an object")
		}
		return EmptySnapshot(), fmt.Errorf("replication: decode snapshot: %w", err)
	}

	s := EmptySnapshot()
	field(fields, "score", &s.Score)
	field(fields, "lines", &s.Lines)
	field(fields, "level", &s.Level)
	field(fields, "gameOver", &s.GameOver)
	field(fields, "forfeited", &s.Forfeited)
	field(fields, "currentPieceType", &s.Piece)
	field(fields, "position", &s.Position)
	field(fields, "lockedCells", &s.LockedCells)
	field(fields, "finishTime", &s.FinishTime)
	field(fields, "startTime", &s.StartTime)
	field(fields, "lastUpdate", &s.LastUpdate)

	if s.Level < 1 {
		s.Level = 1
	}
	if s.LockedCells == nil {
		s.LockedCells = []tetris.LockedCell{}
	}
	return s, nil
}

// field decodes fields[name] into dst, leaving dst untouched when the value
// is absent or has the wrong shape.
func field[T any](fields map[string]json.RawMessage, name string, dst *T) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
}

// Encode serializes the snapshot.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("replication: encode snapshot: %w", err)
	}
	return data, nil
}

// tracked is the encoding used to decide whether a snapshot is worth
// publishing; it ignores the publish timestamp.
func (s Snapshot) tracked() []byte {
	s.LastUpdate = 0
	data, _ := json.Marshal(s)
	return data
}

// Kind returns the active piece kind, or KindNone.
func (s Snapshot) Kind() tetris.Kind {
	return tetris.ParseKind(s.Piece)
}

// Started returns the start time.
func (s Snapshot) Started() time.Time {
	if s.StartTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.StartTime)
}

// Finished returns the finish time when the game has one.
func (s Snapshot) Finished() (time.Time, bool) {
	if s.FinishTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.FinishTime), true
}

// Board rebuilds the playfield from the locked cells. Out-of-range cells are
// ignored.
func (s Snapshot) Board() tetris.Board {
	var b tetris.Board
	for _, c := range s.LockedCells {
		if c.X < 0 || c.X >= tetris.Width || c.Y < 0 || c.Y >= tetris.Height {
			continue
		}
		b[c.Y][c.X] = c.Color
	}
	return b
}
