package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 16
)

// WSHub manages WebSocket connections and room-based message delivery.
// Rooms are player-scoped ("player:{id}"); the hub is per process.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn // room -> connID -> conn
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// WSConn is one registered connection. Send is drained by the write pump.
type WSConn struct {
	ID       string
	PlayerID string
	Send     chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewWSHub creates a new WebSocket hub. checkOrigin may be nil to accept any origin.
func NewWSHub(logger *slog.Logger, checkOrigin func(*http.Request) bool) *WSHub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHub{
		rooms:    make(map[string]map[string]*WSConn),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// PlayerRoom returns the room name of a player.
func PlayerRoom(playerID string) string { return "player:" + playerID }

// Join adds a connection to a room.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room and closes its send channel.
func (h *WSHub) Leave(room string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		if c, ok := conns[connID]; ok {
			close(c.Send)
			delete(conns, connID)
		}
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends a message to all connections in a room. A full buffer drops
// the message for that connection; notifications are resync hints, so a
// dropped one is recovered by the next.
func (h *WSHub) Publish(room string, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// PublishToPlayer publishes to a player-scoped room.
func (h *WSHub) PublishToPlayer(playerID string, event string, data interface{}) {
	h.Publish(PlayerRoom(playerID), event, data)
}

// Serve upgrades the request and streams the player's room until the peer
// goes away. It blocks for the life of the connection.
func (h *WSHub) Serve(w http.ResponseWriter, r *http.Request, playerID string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade error", "error", err, "player_id", playerID)
		return
	}

	conn := &WSConn{ID: uuid.NewString(), PlayerID: playerID, Send: make(chan []byte, wsSendBuffer)}
	room := PlayerRoom(playerID)
	h.Join(room, conn)
	h.logger.Debug("ws client connected", "conn_id", conn.ID, "player_id", playerID)

	go writePump(ws, conn.Send)
	readPump(ws)

	h.Leave(room, conn.ID)
	h.logger.Debug("ws client disconnected", "conn_id", conn.ID, "player_id", playerID)
}

// writePump owns every write on ws. It exits when send is closed or a write fails.
func writePump(ws *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case msg, ok := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and returns when the peer disconnects.
func readPump(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes all connections.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			close(conn.Send)
		}
		delete(h.rooms, room)
	}
}
