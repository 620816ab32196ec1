package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/storage"
)

const httpTimeout = 4 * time.Second

type statusError int

func (s statusError) Error() string {
	return "unexpected status: " + http.StatusText(int(s))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var s statusError
	if errors.As(err, &s) {
		return int(s)
	}
	return 0
}

// Client talks to a relay server. It implements replication.Transport over a
// websocket and multiplayer.ResultRecorder over HTTP. Incoming records are
// cached in a local MemoryTransport which fans them out to subscribers.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger

	local *replication.MemoryTransport

	mu     sync.Mutex
	ws     *websocket.Conn
	send   chan []byte
	refs   map[replication.Key]int
	done   chan struct{}
	closed bool
}

var (
	_ replication.Transport      = (*Client)(nil)
	_ multiplayer.ResultRecorder = (*Client)(nil)
)

// NewClient creates an HTTP-only client for baseURL (http or https).
func NewClient(baseURL, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: httpTimeout},
		logger:  logger,
		local:   replication.NewMemoryTransport(),
		refs:    make(map[replication.Key]int),
	}
}

// Dial creates a client and opens its websocket.
func Dial(ctx context.Context, baseURL, token string, logger *log.Logger) (*Client, error) {
	c := NewClient(baseURL, token, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("relay: invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("relay: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()
	return u.String(), nil
}

// Connect opens the websocket and starts the read and write pumps.
func (c *Client) Connect(ctx context.Context) error {
	target, err := c.wsURL()
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return fmt.Errorf("relay: dial: %w", statusError(resp.StatusCode))
		}
		return fmt.Errorf("relay: dial: %w", err)
	}

	c.mu.Lock()
	c.ws = conn
	c.send = make(chan []byte, sendBuffer)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
	return nil
}

// Close shuts down the websocket and the local cache.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, done := c.ws, c.done
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}
	return c.local.Close()
}

func (c *Client) enqueue(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: marshal: %w", err)
	}
	c.mu.Lock()
	send, done, closed := c.send, c.done, c.closed
	c.mu.Unlock()
	if closed || send == nil {
		return replication.ErrClosed
	}

	select {
	case send <- data:
		return nil
	case <-done:
		return replication.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends data as the record for key. Only keys owned by the token's
// player are accepted by the server; rejections arrive asynchronously and
// are logged.
func (c *Client) Publish(ctx context.Context, key replication.Key, data []byte) error {
	return c.enqueue(ctx, Envelope{Type: MsgPublish, Key: key.String(), Payload: data})
}

// Remove deletes the record for key on the server.
func (c *Client) Remove(ctx context.Context, key replication.Key) error {
	return c.enqueue(ctx, Envelope{Type: MsgRemove, Key: key.String()})
}

// Subscribe follows key on the server. The server sends the current record
// first.
func (c *Client) Subscribe(ctx context.Context, key replication.Key, fn replication.Handler) (func(), error) {
	unsub, err := c.local.Subscribe(ctx, key, fn)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.refs[key]++
	first := c.refs[key] == 1
	c.mu.Unlock()

	if first {
		if err := c.enqueue(ctx, Envelope{Type: MsgSubscribe, Key: key.String()}); err != nil {
			c.release(key)
			unsub()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			if c.release(key) {
				if err := c.enqueue(context.Background(), Envelope{Type: MsgUnsubscribe, Key: key.String()}); err != nil && !errors.Is(err, replication.ErrClosed) {
					c.logger.Warn("Unsubscribe failed", "key", key, "error", err)
				}
			}
		})
	}, nil
}

// release drops one reference to key and reports whether it was the last.
func (c *Client) release(key replication.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs[key]--
	if c.refs[key] > 0 {
		return false
	}
	delete(c.refs, key)
	return true
}

func (c *Client) readPump() {
	c.mu.Lock()
	conn := c.ws
	c.mu.Unlock()

	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("Relay connection lost", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Dropping malformed message", "error", err)
			continue
		}

		switch env.Type {
		case MsgUpdate, MsgRemoved:
			key, err := replication.ParseKey(env.Key)
			if err != nil {
				c.logger.Debug("Dropping message with bad key", "key", env.Key)
				continue
			}
			if env.Type == MsgUpdate {
				err = c.local.Publish(ctx, key, env.Payload)
			} else {
				err = c.local.Remove(ctx, key)
			}
			if err != nil && !errors.Is(err, replication.ErrClosed) {
				c.logger.Warn("Local cache update failed", "key", key, "error", err)
			}
		case MsgError:
			c.logger.Warn("Relay rejected message", "key", env.Key, "error", env.Error)
		default:
			c.logger.Debug("Unknown message type", "type", env.Type)
		}
	}
}

func (c *Client) writePump() {
	c.mu.Lock()
	conn, send, done := c.ws, c.send, c.done
	c.mu.Unlock()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// --- HTTP API ---

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("relay: marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("relay: request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("relay: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("relay: %s %s: %w", method, path, statusError(resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("relay: decode response: %w", err)
	}
	return nil
}

// RecordBattle submits a battle result. Repeated submissions for one match
// return the stored record with Applied false.
func (c *Client) RecordBattle(ctx context.Context, res multiplayer.BattleResult) (multiplayer.BattleRecord, error) {
	var rec multiplayer.BattleRecord
	err := c.do(ctx, http.MethodPost, "/api/results", res, &rec)
	return rec, err
}

// SubmitScore stores a solo game for the token's player and returns the XP
// earned.
func (c *Client) SubmitScore(ctx context.Context, req ScoreRequest) (int, error) {
	var resp ScoreResponse
	if err := c.do(ctx, http.MethodPost, "/api/scores", req, &resp); err != nil {
		return 0, err
	}
	return resp.XP, nil
}

// Leaderboard fetches the top profiles ordered by ByScore or ByRating.
func (c *Client) Leaderboard(ctx context.Context, by string, limit int) ([]storage.Profile, error) {
	q := url.Values{"by": {by}, "limit": {strconv.Itoa(limit)}}
	var out []storage.Profile
	err := c.do(ctx, http.MethodGet, "/api/leaderboard?"+q.Encode(), nil, &out)
	return out, err
}

// Profile fetches one profile. A missing profile yields a 404 status error.
func (c *Client) Profile(ctx context.Context, id string) (*storage.Profile, error) {
	var p storage.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveGameScore submits g for the token's player. g.PlayerID is ignored.
func (c *Client) SaveGameScore(ctx context.Context, g storage.GameScore) (int, error) {
	return c.SubmitScore(ctx, ScoreRequest{
		DisplayName: g.DisplayName,
		Score:       g.Score,
		Lines:       g.Lines,
		Level:       g.Level,
		Pieces:      g.Pieces,
		Duration:    g.Duration,
	})
}

// TopScores returns the best-score leaderboard.
func (c *Client) TopScores(ctx context.Context, limit int) ([]storage.Profile, error) {
	return c.Leaderboard(ctx, ByScore, limit)
}

// TopRated returns the battle rating leaderboard.
func (c *Client) TopRated(ctx context.Context, limit int) ([]storage.Profile, error) {
	return c.Leaderboard(ctx, ByRating, limit)
}
