package multiplayer

// SessionEvent represents an event sent from the coordinator to a session.
type SessionEvent interface {
	sessionEvent()
}

// RoomCreatedEvent is sent to the host once a room is open.
type RoomCreatedEvent struct {
	Code string
}

func (RoomCreatedEvent) sessionEvent() {}

// RoomErrorEvent is sent when a room or queue operation fails.
type RoomErrorEvent struct {
	Message string
}

func (RoomErrorEvent) sessionEvent() {}

// RoomClosedEvent tells a waiting session its room is gone.
type RoomClosedEvent struct {
	Code   string
	Reason RoomCloseReason
}

func (RoomClosedEvent) sessionEvent() {}

// QueuedEvent confirms a session is waiting for a matchmaking opponent.
type QueuedEvent struct {
	Position int
}

func (QueuedEvent) sessionEvent() {}

// MatchStartedEvent is sent to both players when a duel begins.
type MatchStartedEvent struct {
	Match    Match
	You      PlayerID
	Opponent PlayerID
}

func (MatchStartedEvent) sessionEvent() {}

// SpectateStartedEvent is sent to a spectator of a running duel.
type SpectateStartedEvent struct {
	Match Match
}

func (SpectateStartedEvent) sessionEvent() {}

// RoomCloseReason describes why a room closed before or after its match.
type RoomCloseReason int

const (
	RoomClosedCancelled RoomCloseReason = iota // host cancelled
	RoomClosedHostLeft                         // host disconnected
	RoomClosedExpired                          // nobody joined in time
	RoomClosedFinished                         // the match ended
)

func (r RoomCloseReason) String() string {
	switch r {
	case RoomClosedCancelled:
		return "Room cancelled"
	case RoomClosedHostLeft:
		return "Host left"
	case RoomClosedExpired:
		return "Room expired"
	case RoomClosedFinished:
		return "Match finished"
	default:
		return "Unknown"
	}
}

// CoordinatorMessage represents a message from a session to the coordinator.
type CoordinatorMessage interface {
	coordinatorMessage()
}

// CreateRoomMsg requests a new room hosted by the session.
type CreateRoomMsg struct {
	SessionID SessionID
}

func (CreateRoomMsg) coordinatorMessage() {}

// JoinRoomMsg joins a waiting room as the second player.
type JoinRoomMsg struct {
	SessionID SessionID
	Code      string
}

func (JoinRoomMsg) coordinatorMessage() {}

// SpectateRoomMsg attaches a viewer to a room whose match is running.
type SpectateRoomMsg struct {
	SessionID SessionID
	Code      string
}

func (SpectateRoomMsg) coordinatorMessage() {}

// LeaveRoomMsg leaves or cancels a room.
type LeaveRoomMsg struct {
	SessionID SessionID
	Code      string
}

func (LeaveRoomMsg) coordinatorMessage() {}

// QueueMsg enters the matchmaking queue.
type QueueMsg struct {
	SessionID SessionID
}

func (QueueMsg) coordinatorMessage() {}

// CancelQueueMsg leaves the matchmaking queue.
type CancelQueueMsg struct {
	SessionID SessionID
}

func (CancelQueueMsg) coordinatorMessage() {}

// MatchFinishedMsg is sent by a player's session when its duel is over.
type MatchFinishedMsg struct {
	SessionID SessionID
	MatchID   MatchID
}

func (MatchFinishedMsg) coordinatorMessage() {}

// SessionDisconnectedMsg is sent when a session disconnects.
type SessionDisconnectedMsg struct {
	SessionID SessionID
}

func (SessionDisconnectedMsg) coordinatorMessage() {}
