package multiplayer

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Room is a code-addressed waiting area. Once a second player joins, the room
// holds the started match and accepts spectators until both players finish.
type Room struct {
	Code       string
	Host       SessionHandle
	Joiner     SessionHandle
	Spectators map[SessionID]SessionHandle
	Match      *Match
	CreatedAt  time.Time
}

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	RoomTimeout   time.Duration // How long a room may wait for a second player
	CleanupPeriod time.Duration // How often to expire idle rooms
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		RoomTimeout:   2 * time.Minute,
		CleanupPeriod: 30 * time.Second,
	}
}

type activeMatch struct {
	match   Match
	code    string
	playing map[SessionID]bool
}

// Coordinator pairs sessions into matches through rooms and the matchmaking
// queue. It only arranges matches; the duels themselves run in each session.
type Coordinator struct {
	config   CoordinatorConfig
	sessions *SessionRegistry
	logger   *log.Logger
	clock    func() time.Time

	mu           sync.RWMutex
	rooms        map[string]*Room
	matches      map[MatchID]*activeMatch
	sessionRoom  map[SessionID]string
	sessionMatch map[SessionID]MatchID
	queue        []SessionHandle

	msgChan  chan CoordinatorMessage
	done     chan struct{}
	stopOnce sync.Once
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg CoordinatorConfig, sessions *SessionRegistry, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = DefaultCoordinatorConfig().CleanupPeriod
	}
	if cfg.RoomTimeout <= 0 {
		cfg.RoomTimeout = DefaultCoordinatorConfig().RoomTimeout
	}
	return &Coordinator{
		config:       cfg,
		sessions:     sessions,
		logger:       logger,
		clock:        time.Now,
		rooms:        make(map[string]*Room),
		matches:      make(map[MatchID]*activeMatch),
		sessionRoom:  make(map[SessionID]string),
		sessionMatch: make(map[SessionID]MatchID),
		msgChan:      make(chan CoordinatorMessage, 256),
		done:         make(chan struct{}),
	}
}

// Start begins the coordinator's background processing.
func (c *Coordinator) Start() {
	go c.processMessages()
	go c.cleanupLoop()
}

// Stop shuts down the coordinator. Safe to call more than once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Send sends a message to the coordinator for async processing.
func (c *Coordinator) Send(msg CoordinatorMessage) {
	select {
	case c.msgChan <- msg:
	case <-c.done:
	}
}

func (c *Coordinator) processMessages() {
	for {
		select {
		case msg := <-c.msgChan:
			c.handleMessage(msg)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) handleMessage(msg CoordinatorMessage) {
	switch m := msg.(type) {
	case CreateRoomMsg:
		c.handleCreateRoom(m)
	case JoinRoomMsg:
		c.handleJoinRoom(m)
	case SpectateRoomMsg:
		c.handleSpectate(m)
	case LeaveRoomMsg:
		c.handleLeaveRoom(m)
	case QueueMsg:
		c.handleQueue(m)
	case CancelQueueMsg:
		c.handleCancelQueue(m)
	case MatchFinishedMsg:
		c.handleMatchFinished(m)
	case SessionDisconnectedMsg:
		c.handleSessionDisconnected(m)
	}
}

// busy reports whether the session already waits or plays somewhere.
// Must be called with lock held.
func (c *Coordinator) busy(id SessionID) bool {
	if _, ok := c.sessionRoom[id]; ok {
		return true
	}
	if _, ok := c.sessionMatch[id]; ok {
		return true
	}
	return c.queueIndex(id) >= 0
}

func (c *Coordinator) handleCreateRoom(msg CreateRoomMsg) {
	session, ok := c.sessions.Get(msg.SessionID)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.busy(msg.SessionID) {
		c.mu.Unlock()
		session.Send(RoomErrorEvent{Message: "Already in a room"})
		return
	}
	code := c.generateUniqueCode()
	c.rooms[code] = &Room{
		Code:       code,
		Host:       session,
		Spectators: make(map[SessionID]SessionHandle),
		CreatedAt:  c.clock(),
	}
	c.sessionRoom[msg.SessionID] = code
	c.mu.Unlock()

	c.logger.Info("room created", "code", code, "host", session.Player())
	session.Send(RoomCreatedEvent{Code: code})
}

func (c *Coordinator) handleJoinRoom(msg JoinRoomMsg) {
	session, ok := c.sessions.Get(msg.SessionID)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy(msg.SessionID) {
		session.Send(RoomErrorEvent{Message: "Already in a room"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(msg.Code))
	room, exists := c.rooms[code]
	if !exists {
		session.Send(RoomErrorEvent{Message: "Room not found"})
		return
	}
	if room.Joiner != nil || room.Match != nil {
		session.Send(RoomErrorEvent{Message: "Room is full"})
		return
	}
	if room.Host.ID() == msg.SessionID {
		session.Send(RoomErrorEvent{Message: "Cannot join your own room"})
		return
	}
	if room.Host.Player() == session.Player() {
		session.Send(RoomErrorEvent{Message: "Cannot play against yourself"})
		return
	}

	room.Joiner = session
	c.sessionRoom[msg.SessionID] = code

	match := NewMatch(MatchModeCustom, room.Host.Player(), session.Player(), c.clock())
	match.Code = code
	room.Match = &match
	c.startMatch(match, code, room.Host, session)
}

// startMatch registers a match and notifies both players.
// Must be called with lock held.
func (c *Coordinator) startMatch(match Match, code string, a, b SessionHandle) {
	c.matches[match.ID] = &activeMatch{
		match:   match,
		code:    code,
		playing: map[SessionID]bool{a.ID(): true, b.ID(): true},
	}
	c.sessionMatch[a.ID()] = match.ID
	c.sessionMatch[b.ID()] = match.ID

	c.logger.Info("match started", "match", match.ID, "mode", match.Mode,
		"player1", match.Players[0], "player2", match.Players[1])

	a.Send(MatchStartedEvent{Match: match, You: a.Player(), Opponent: b.Player()})
	b.Send(MatchStartedEvent{Match: match, You: b.Player(), Opponent: a.Player()})
}

func (c *Coordinator) handleSpectate(msg SpectateRoomMsg) {
	session, ok := c.sessions.Get(msg.SessionID)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy(msg.SessionID) {
		session.Send(RoomErrorEvent{Message: "Already in a room"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(msg.Code))
	room, exists := c.rooms[code]
	if !exists {
		session.Send(RoomErrorEvent{Message: "Room not found"})
		return
	}
	if room.Match == nil {
		session.Send(RoomErrorEvent{Message: "Match has not started"})
		return
	}
	room.Spectators[msg.SessionID] = session
	c.sessionRoom[msg.SessionID] = code
	session.Send(SpectateStartedEvent{Match: *room.Match})
}

func (c *Coordinator) handleLeaveRoom(msg LeaveRoomMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	code := strings.ToUpper(msg.Code)
	room, exists := c.rooms[code]
	if !exists {
		return
	}
	c.leaveRoom(room, msg.SessionID, RoomClosedCancelled)
}

// leaveRoom removes a session from room. A host leaving a waiting room closes
// it; a player leaving a started room finishes their part of the match.
// Must be called with lock held.
func (c *Coordinator) leaveRoom(room *Room, id SessionID, reason RoomCloseReason) {
	if _, ok := room.Spectators[id]; ok {
		delete(room.Spectators, id)
		delete(c.sessionRoom, id)
		return
	}
	if room.Match == nil {
		if room.Host.ID() == id {
			c.closeRoom(room, reason)
		}
		return
	}
	if matchID, ok := c.sessionMatch[id]; ok && matchID == room.Match.ID {
		c.finish(id)
	}
}

// closeRoom deletes room and notifies everyone still attached.
// Must be called with lock held.
func (c *Coordinator) closeRoom(room *Room, reason RoomCloseReason) {
	evt := RoomClosedEvent{Code: room.Code, Reason: reason}
	if room.Match == nil {
		room.Host.Send(evt)
	}
	delete(c.sessionRoom, room.Host.ID())
	if room.Joiner != nil {
		delete(c.sessionRoom, room.Joiner.ID())
	}
	for id, s := range room.Spectators {
		s.Send(evt)
		delete(c.sessionRoom, id)
	}
	delete(c.rooms, room.Code)
	c.logger.Info("room closed", "code", room.Code, "reason", reason)
}

func (c *Coordinator) handleQueue(msg QueueMsg) {
	session, ok := c.sessions.Get(msg.SessionID)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy(msg.SessionID) {
		session.Send(RoomErrorEvent{Message: "Already queued or in a room"})
		return
	}
	for i, waiting := range c.queue {
		if waiting.Player() == session.Player() {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		match := NewMatch(MatchModeOnline, waiting.Player(), session.Player(), c.clock())
		c.startMatch(match, "", waiting, session)
		return
	}
	c.queue = append(c.queue, session)
	session.Send(QueuedEvent{Position: len(c.queue)})
}

func (c *Coordinator) handleCancelQueue(msg CancelQueueMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dequeue(msg.SessionID)
}

// Must be called with lock held.
func (c *Coordinator) queueIndex(id SessionID) int {
	for i, s := range c.queue {
		if s.ID() == id {
			return i
		}
	}
	return -1
}

// Must be called with lock held.
func (c *Coordinator) dequeue(id SessionID) {
	if i := c.queueIndex(id); i >= 0 {
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
	}
}

func (c *Coordinator) handleMatchFinished(msg MatchFinishedMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.sessionMatch[msg.SessionID]; ok && id == msg.MatchID {
		c.finish(msg.SessionID)
	}
}

// finish marks a player session as done with its match. When neither player
// is left the match is dropped and its room closed.
// Must be called with lock held.
func (c *Coordinator) finish(id SessionID) {
	matchID := c.sessionMatch[id]
	delete(c.sessionMatch, id)
	am, ok := c.matches[matchID]
	if !ok {
		return
	}
	delete(am.playing, id)
	if len(am.playing) > 0 {
		return
	}
	delete(c.matches, matchID)
	if room, ok := c.rooms[am.code]; ok && am.code != "" {
		c.closeRoom(room, RoomClosedFinished)
	}
}

func (c *Coordinator) handleSessionDisconnected(msg SessionDisconnectedMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dequeue(msg.SessionID)
	if code, inRoom := c.sessionRoom[msg.SessionID]; inRoom {
		if room, exists := c.rooms[code]; exists {
			c.leaveRoom(room, msg.SessionID, RoomClosedHostLeft)
		}
		delete(c.sessionRoom, msg.SessionID)
	}
	if _, inMatch := c.sessionMatch[msg.SessionID]; inMatch {
		c.finish(msg.SessionID)
	}
}

func (c *Coordinator) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpiredRooms()
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) cleanupExpiredRooms() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for _, room := range c.rooms {
		if room.Match == nil && now.Sub(room.CreatedAt) > c.config.RoomTimeout {
			c.closeRoom(room, RoomClosedExpired)
		}
	}
}

// Must be called with lock held.
func (c *Coordinator) generateUniqueCode() string {
	for {
		code := generateJoinCode()
		if _, exists := c.rooms[code]; !exists {
			return code
		}
	}
}

// generateJoinCode creates a 6-character uppercase alphanumeric code.
func generateJoinCode() string {
	b := make([]byte, 4) // 4 bytes = 32 bits, base32 encodes to 8 chars, we take 6
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	return base32.StdEncoding.EncodeToString(b)[:6]
}

// GetRoom returns a copy of the room with the given code.
func (c *Coordinator) GetRoom(code string) (Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[strings.ToUpper(code)]
	if !ok {
		return Room{}, false
	}
	return *r, true
}

// RoomCount returns the number of open rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

// MatchCount returns the number of matches with a player still in them.
func (c *Coordinator) MatchCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.matches)
}

// QueueLen returns the number of sessions waiting for matchmaking.
func (c *Coordinator) QueueLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.queue)
}
