// Package replication exchanges per-player board snapshots between the two
// clients of a match. Each player owns one keyed record in a shared Transport;
// a Publisher writes the local record and a Mirror follows the opponent's.
package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by transports that have been shut down.
var ErrClosed = errors.New("replication: transport closed")

// Key addresses one player's record within a match.
type Key struct {
	MatchID  string
	PlayerID string
}

// String renders the key as "match/player".
func (k Key) String() string {
	return k.MatchID + "/" + k.PlayerID
}

// ParseKey parses the "match/player" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	match, player, ok := strings.Cut(s, "/")
	if !ok || match == "" || player == "" || strings.Contains(player, "/") {
		return Key{}, fmt.Errorf("replication: invalid key %q", s)
	}
	return Key{MatchID: match, PlayerID: player}, nil
}

// Handler receives the current record for a subscribed key. A nil data slice
// means the record was removed.
type Handler func(data []byte)

// Transport is a keyed publish/subscribe store. Implementations deliver
// records to a handler in order and never block the publisher on slow
// subscribers.
type Transport interface {
	Publish(ctx context.Context, key Key, data []byte) error
	Subscribe(ctx context.Context, key Key, fn Handler) (unsubscribe func(), err error)
	Remove(ctx context.Context, key Key) error
}
