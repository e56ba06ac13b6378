package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// Notification is one message pushed by the API over /ws.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Listener keeps a websocket to the API open and hands every notification
// to a callback. Notifications are resync hints only; a dropped connection
// loses nothing that the next resync will not recover.
type Listener struct {
	url    string
	token  string
	logger *slog.Logger
	dialer *websocket.Dialer

	writeMu sync.Mutex // serialises pings against close
}

// NewListener derives the ws URL from the API base URL.
func NewListener(baseURL, token string, logger *slog.Logger) *Listener {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &Listener{
		url:    strings.TrimRight(u, "/") + "/ws",
		token:  token,
		logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

// Run connects and dispatches notifications to fn until ctx is cancelled,
// reconnecting with exponential backoff. onConnect, if set, runs after every
// successful dial so the caller can resync state it may have missed.
func (l *Listener) Run(ctx context.Context, fn func(Notification), onConnect func()) {
	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, resp, err := l.dialer.DialContext(ctx, l.url, http.Header{"Authorization": {"Bearer " + l.token}})
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			l.logger.Warn("ws dial failed", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay
		l.logger.Debug("ws connected", "url", l.url)
		if onConnect != nil {
			onConnect()
		}

		err = l.readLoop(ctx, conn, fn)
		l.logger.Debug("ws disconnected", "error", err)
	}
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn, fn func(Notification)) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	go l.pingLoop(connCtx, conn)
	go func() {
		<-connCtx.Done()
		l.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		l.writeMu.Unlock()
		conn.Close()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		fn(n)
	}
}

// pingLoop sends periodic pings until ctx is cancelled or a write fails.
func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
