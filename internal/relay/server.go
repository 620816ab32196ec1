package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/blockduel/internal/identity"
	"github.com/vovakirdan/blockduel/internal/multiplayer"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/storage"
)

// ErrForbidden is returned when a client writes a record it does not own.
var ErrForbidden = errors.New("relay: forbidden")

const maxLeaderboard = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Store is the persistence the HTTP API needs. *storage.Store satisfies it.
type Store interface {
	multiplayer.ResultRecorder
	SaveGameScore(ctx context.Context, g storage.GameScore) (int, error)
	EnsureProfile(ctx context.Context, id, name string) (*storage.Profile, error)
	GetProfile(ctx context.Context, id string) (*storage.Profile, error)
	TopScores(ctx context.Context, limit int) ([]storage.Profile, error)
	TopRated(ctx context.Context, limit int) ([]storage.Profile, error)
}

var _ Store = (*storage.Store)(nil)

// Server relays replication records between websocket clients and serves
// the HTTP API.
type Server struct {
	records *replication.MemoryTransport
	issuer  *identity.Issuer
	store   Store
	logger  *log.Logger
	mux     *http.ServeMux

	mu    sync.Mutex
	conns map[*peer]struct{}
}

// NewServer creates a relay. store may be nil, in which case the results and
// score endpoints answer 503.
func NewServer(issuer *identity.Issuer, store Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		records: replication.NewMemoryTransport(),
		issuer:  issuer,
		store:   store,
		logger:  logger,
		mux:     http.NewServeMux(),
		conns:   make(map[*peer]struct{}),
	}

	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("POST /api/results", s.handleResults)
	s.mux.HandleFunc("POST /api/scores", s.handleScores)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/profiles/{id}", s.handleProfile)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return s
}

// Handler returns the HTTP handler for the relay.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Records exposes the relay's record store.
func (s *Server) Records() *replication.MemoryTransport {
	return s.records
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay: listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Relay shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeConns()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay: shutdown: %w", err)
	}
	return nil
}

func (s *Server) closeConns() {
	s.mu.Lock()
	conns := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		conns = append(conns, p)
	}
	s.mu.Unlock()
	for _, p := range conns {
		p.ws.Close()
	}
}

// ConnCount returns the number of connected websocket clients.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) authenticate(r *http.Request) (identity.Identity, error) {
	raw := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); h != "" {
		raw = strings.TrimPrefix(h, "Bearer ")
	}
	if s.issuer == nil {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return s.issuer.Verify(raw)
}

// --- Websocket ---

type peer struct {
	server *Server
	id     identity.Identity
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}

	mu    sync.Mutex
	subs  map[replication.Key]func()
	owned map[replication.Key]struct{}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		server: s,
		id:     id,
		ws:     conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		subs:   make(map[replication.Key]func()),
		owned:  make(map[replication.Key]struct{}),
	}

	s.mu.Lock()
	s.conns[p] = struct{}{}
	s.mu.Unlock()

	if s.store != nil {
		if _, err := s.store.EnsureProfile(r.Context(), id.PlayerID, id.Name); err != nil {
			s.logger.Warn("Failed to ensure profile", "player", id.PlayerID, "error", err)
		}
	}
	s.logger.Info("Client connected", "player", id.PlayerID)

	go p.writePump()
	p.readPump()
	p.cleanup()

	s.mu.Lock()
	delete(s.conns, p)
	s.mu.Unlock()
	s.logger.Info("Client disconnected", "player", id.PlayerID)
}

func (p *peer) readPump() {
	defer p.ws.Close()

	p.ws.SetReadLimit(maxMessageSize)
	p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		p.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.server.logger.Warn("Read error", "player", p.id.PlayerID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			p.server.logger.Debug("Dropping malformed message", "player", p.id.PlayerID, "error", err)
			continue
		}
		if err := p.handle(env); err != nil {
			p.enqueue(Envelope{Type: MsgError, Key: env.Key, Error: err.Error()})
		}
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			p.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// enqueue never blocks. When the buffer is full the oldest message is dropped.
func (p *peer) enqueue(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		p.server.logger.Warn("Marshal error", "player", p.id.PlayerID, "error", err)
		return
	}
	for {
		select {
		case p.send <- data:
			return
		default:
		}
		select {
		case <-p.send:
		default:
		}
	}
}

func (p *peer) handle(env Envelope) error {
	key, err := replication.ParseKey(env.Key)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch env.Type {
	case MsgPublish:
		if key.PlayerID != p.id.PlayerID {
			return fmt.Errorf("%w: %s is not yours", ErrForbidden, key)
		}
		if len(env.Payload) == 0 {
			return fmt.Errorf("relay: empty payload for %s", key)
		}
		if err := p.server.records.Publish(ctx, key, env.Payload); err != nil {
			return err
		}
		p.mu.Lock()
		p.owned[key] = struct{}{}
		p.mu.Unlock()

	case MsgRemove:
		if key.PlayerID != p.id.PlayerID {
			return fmt.Errorf("%w: %s is not yours", ErrForbidden, key)
		}
		p.mu.Lock()
		delete(p.owned, key)
		p.mu.Unlock()
		return p.server.records.Remove(ctx, key)

	case MsgSubscribe:
		p.mu.Lock()
		_, already := p.subs[key]
		p.mu.Unlock()
		if already {
			return nil
		}
		unsub, err := p.server.records.Subscribe(ctx, key, func(data []byte) {
			if data == nil {
				p.enqueue(Envelope{Type: MsgRemoved, Key: key.String()})
				return
			}
			p.enqueue(Envelope{Type: MsgUpdate, Key: key.String(), Payload: data})
		})
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.subs[key] = unsub
		p.mu.Unlock()

	case MsgUnsubscribe:
		p.mu.Lock()
		unsub := p.subs[key]
		delete(p.subs, key)
		p.mu.Unlock()
		if unsub != nil {
			unsub()
		}

	default:
		return fmt.Errorf("relay: unknown message type %q", env.Type)
	}
	return nil
}

// cleanup drops the peer's subscriptions and removes the records it owns.
func (p *peer) cleanup() {
	close(p.done)

	p.mu.Lock()
	subs := p.subs
	owned := p.owned
	p.subs = map[replication.Key]func(){}
	p.owned = map[replication.Key]struct{}{}
	p.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	for key := range owned {
		if err := p.server.records.Remove(context.Background(), key); err != nil && !errors.Is(err, replication.ErrClosed) {
			p.server.logger.Warn("Failed to remove record", "key", key, "error", err)
		}
	}
}

// --- HTTP API ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	var res multiplayer.BattleResult
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid battle result")
		return
	}
	if string(res.WinnerID) != id.PlayerID && string(res.LoserID) != id.PlayerID {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}

	rec, err := s.store.RecordBattle(r.Context(), res)
	switch {
	case errors.Is(err, storage.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Warn("Failed to record battle", "match", res.MatchID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rec.Applied {
		s.logger.Info("Battle recorded", "match", res.MatchID, "winner", res.WinnerID,
			"delta", rec.WinnerDelta, "loser", res.LoserID, "loserDelta", rec.LoserDelta)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	var req ScoreRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid score")
		return
	}
	if req.Score < 0 || req.Lines < 0 || req.Level < 0 {
		writeError(w, http.StatusBadRequest, "invalid score")
		return
	}
	name := req.DisplayName
	if name == "" {
		name = id.Name
	}

	xp, err := s.store.SaveGameScore(r.Context(), storage.GameScore{
		PlayerID:    id.PlayerID,
		DisplayName: name,
		Score:       req.Score,
		Lines:       req.Lines,
		Level:       req.Level,
		Pieces:      req.Pieces,
		Duration:    req.Duration,
	})
	if err != nil {
		s.logger.Warn("Failed to save score", "player", id.PlayerID, "error", err)
		writeError(w, http.StatusInternalServerError, "cannot save score")
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{XP: xp})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLeaderboard)
	}

	var (
		profiles []storage.Profile
		err      error
	)
	switch by := r.URL.Query().Get("by"); by {
	case "", ByScore:
		profiles, err = s.store.TopScores(r.Context(), limit)
	case ByRating:
		profiles, err = s.store.TopRated(r.Context(), limit)
	default:
		writeError(w, http.StatusBadRequest, "unknown ordering "+by)
		return
	}
	if err != nil {
		s.logger.Warn("Failed to load leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load leaderboard")
		return
	}
	if profiles == nil {
		profiles = []storage.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	p, err := s.store.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Warn("Failed to load profile", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load profile")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
