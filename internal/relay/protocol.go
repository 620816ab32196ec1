// Package relay carries replication records between clients over websockets
// and exposes the results, score and leaderboard HTTP API.
package relay

import (
	"encoding/json"
	"time"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 16384
	sendBuffer     = 256
)

// MessageType identifies the kind of message sent over the wire.
type MessageType string

const (
	// Client -> Server messages
	MsgPublish     MessageType = "publish"
	MsgSubscribe   MessageType = "subscribe"
	MsgUnsubscribe MessageType = "unsubscribe"
	MsgRemove      MessageType = "remove"

	// Server -> Client messages
	MsgUpdate  MessageType = "update"
	MsgRemoved MessageType = "removed"
	MsgError   MessageType = "error"
)

// Envelope is the top-level wire format for all websocket messages. Key is a
// replication key in "match/player" form; Payload is the raw record.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ScoreRequest is the body of POST /api/scores. The player comes from the
// bearer token.
type ScoreRequest struct {
	DisplayName string        `json:"displayName,omitempty"`
	Score       int           `json:"score"`
	Lines       int           `json:"lines"`
	Level       int           `json:"level"`
	Pieces      int           `json:"pieces"`
	Duration    time.Duration `json:"duration"`
}

// ScoreResponse is returned by POST /api/scores.
type ScoreResponse struct {
	XP int `json:"xp"`
}

// Leaderboard orderings accepted by GET /api/leaderboard.
const (
	ByScore  = "score"
	ByRating = "rating"
)
