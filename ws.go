/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/sketchduel/games/sketch"
)

const (
	maxMessageBytes = 4 << 20
	requestTimeout  = 5 * time.Second
	sendBufferSize  = 16
)

// ClientMessage is everything a client may send over the websocket.
type ClientMessage struct {
	Type        string `json:"type"`                   // "join_game", "start_game", "submit_drawing", "play_again"
	GameID      string `json:"game_id"`                // all
	PlayerID    string `json:"player_id,omitempty"`    // start_game / submit_drawing / play_again
	PlayerName  string `json:"player_name,omitempty"`  // join_game
	DrawingData string `json:"drawing_data,omitempty"` // submit_drawing
}

// JoinedMessage answers a successful join_game, to the joining client only.
type JoinedMessage struct {
	Type     string `json:"type"` // "joined"
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// Client is one websocket connection. It satisfies sketch.Subscriber.
type Client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once

	// Sessions this connection joined; touched only by readPump.
	games map[string]bool
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:  conn,
		send:  make(chan any, sendBufferSize),
		done:  make(chan struct{}),
		games: make(map[string]bool),
	}
}

// Deliver queues msg without blocking. It reports false when the client is
// gone or too far behind.
func (c *Client) Deliver(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close disconnects the client. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Rooms is the realtime channel: one set of clients per session.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[sketch.Subscriber]bool
}

func newRooms() *Rooms {
	return &Rooms{
		rooms: make(map[string]map[sketch.Subscriber]bool),
	}
}

func (r *Rooms) Subscribe(sessionID string, sub sketch.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		room = make(map[sketch.Subscriber]bool)
		r.rooms[sessionID] = room
	}
	room[sub] = true
}

func (r *Rooms) Unsubscribe(sessionID string, sub sketch.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(r.rooms, sessionID)
	}
}

// Broadcast delivers msg to every member of the room. Members that cannot
// keep up are dropped from it.
func (r *Rooms) Broadcast(sessionID string, msg any) {
	r.mu.RLock()
	members := make([]sketch.Subscriber, 0, len(r.rooms[sessionID]))
	for sub := range r.rooms[sessionID] {
		members = append(members, sub)
	}
	r.mu.RUnlock()

	for _, sub := range members {
		if !sub.Deliver(msg) {
			r.Unsubscribe(sessionID, sub)
		}
	}
}

// Close forgets the room and disconnects its members.
func (r *Rooms) Close(sessionID string) {
	r.mu.Lock()
	room := r.rooms[sessionID]
	delete(r.rooms, sessionID)
	r.mu.Unlock()

	for sub := range room {
		if c, ok := sub.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// Size returns the number of subscribers in a room.
func (r *Rooms) Size(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[sessionID])
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || cfg.allowOrigin == "*" {
				return true
			}
			if cfg.allowOrigin != "" {
				return origin == cfg.allowOrigin
			}
			return sameOrigin(r, origin)
		},
	}
}

func sameOrigin(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func serveWS(cfg *Config, ctrl *sketch.Controller) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}
		conn.SetReadLimit(maxMessageBytes)

		client := newClient(conn)

		logf(cfg, "SERVE: Websocket opened by %s", realIP(r))

		go client.writePump()
		client.readPump(r.Context(), cfg, ctrl)

		logf(cfg, "SERVE: Websocket closed by %s", realIP(r))
	}
}

func (c *Client) readPump(ctx context.Context, cfg *Config, ctrl *sketch.Controller) {
	defer func() {
		for id := range c.games {
			ctrl.Leave(id, c)
		}
		c.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.handle(ctx, cfg, ctrl, msg)
	}
}

func (c *Client) handle(ctx context.Context, cfg *Config, ctrl *sketch.Controller, msg ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var err error

	switch msg.Type {
	case "join_game":
		var playerID string
		playerID, err = ctrl.Join(ctx, msg.GameID, msg.PlayerName, c)
		if err == nil {
			c.games[msg.GameID] = true
			c.Deliver(JoinedMessage{
				Type:     "joined",
				GameID:   msg.GameID,
				PlayerID: playerID,
			})
		}
	case "start_game":
		err = ctrl.Start(ctx, msg.GameID, msg.PlayerID)
	case "submit_drawing":
		err = ctrl.Submit(ctx, msg.GameID, msg.PlayerID, msg.DrawingData)
	case "play_again":
		err = ctrl.PlayAgain(ctx, msg.GameID, msg.PlayerID)
	default:
		// ignore unknown types
		return
	}

	if err != nil {
		logf(cfg, "GAMES: %s for %s rejected: %v", msg.Type, msg.GameID, err)

		c.Deliver(SocketErrorMessage{
			Type:    "error",
			Code:    errorCode(err),
			Message: err.Error(),
		})
	}
}

func (c *Client) writePump() {
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
