/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

// Subscriber is a transport-side handle for one connected client.
type Subscriber interface {
	// Deliver queues msg for the client without blocking.
	Deliver(msg any) bool
}

// Channel is the realtime transport: one broadcast room per session.
type Channel interface {
	Subscribe(sessionID string, sub Subscriber)
	Unsubscribe(sessionID string, sub Subscriber)
	Broadcast(sessionID string, msg any)
	// Close drops every subscriber of a session's room.
	Close(sessionID string)
}

// Event names, shared with the web client.
const (
	EventPlayerJoined = "player_joined"
	EventGameStart    = "game_start"
	EventTimeUp       = "time_up"
	EventGameResults  = "game_results"
	EventPlayerReady  = "player_ready"
)

type PlayerJoinedMessage struct {
	Type string `json:"type"` // "player_joined"
	ID   string `json:"id"`
	Name string `json:"name"`
}

type GameStartMessage struct {
	Type            string `json:"type"` // "game_start"
	ReferenceImage  string `json:"reference_image"`
	Round           int    `json:"round"`
	DurationSeconds int    `json:"duration_seconds"`
}

type TimeUpMessage struct {
	Type  string `json:"type"` // "time_up"
	Round int    `json:"round"`
}

type GameResultsMessage struct {
	Type string `json:"type"` // "game_results"
	RoundResult
}

type PlayerReadyMessage struct {
	Type       string `json:"type"` // "player_ready"
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}
