package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second

	// events queued per subscriber before it is dropped as too slow
	wsSendBuffer = 16
)

// wsClient is a realtime.Client for one websocket subscriber. Events are
// queued on send and written by a single writer goroutine, so a slow peer
// never blocks the publisher.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
}

// Send queues message. A subscriber with a full queue is disconnected.
func (c *wsClient) Send(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		c.Close()
		return false
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writeLoop drains the queue and keeps the connection alive with pings
// until done is closed or a write fails.
func (c *wsClient) writeLoop(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the feed carries no per-user data; browsers on any origin may subscribe
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events upgrades the connection and subscribes it to cache events.
// GET /api/events
func (h *Handler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := newWSClient(conn)
	done := make(chan struct{})
	go client.writeLoop(done)
	h.Hub.Register(client)
	h.Logger.Debug("event subscriber connected", "remote", conn.RemoteAddr().String())

	defer func() {
		h.Hub.Unregister(client)
		close(done)
		client.Close()
		h.Logger.Debug("event subscriber gone", "remote", conn.RemoteAddr().String())
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// the feed is one way; reading only serves pongs and close frames
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
