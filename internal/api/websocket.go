package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arbsim/internal/metrics"
	"arbsim/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// streamMessage is the envelope of every frame sent to a stream client.
type streamMessage struct {
	Type string           `json:"type"`
	Data session.Snapshot `json:"data"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(s.cfg.AllowedOrigins, origin)
		},
	}
}

// wsClient streams session snapshots to one WebSocket connection.
type wsClient struct {
	server  *Server
	conn    *websocket.Conn
	updates <-chan session.Snapshot
	closed  chan struct{}
}

// handleWebSocket upgrades the connection, sends the current state and then
// every published snapshot until the client goes away.
func (s *Server) handleWebSocket(c *gin.Context) {
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Server: websocket upgrade failed", "error", err)
		return
	}

	updates, cancel := s.ctrl.Subscribe()
	client := &wsClient{
		server:  s,
		conn:    conn,
		updates: updates,
		closed:  make(chan struct{}),
	}
	metrics.StreamConnected(1)
	s.logger.Debug("Server: stream client connected", "remote", conn.RemoteAddr().String())

	go func() {
		defer func() {
			cancel()
			metrics.StreamConnected(-1)
		}()
		client.writePump(s.ctrl.Snapshot())
	}()
	go client.readPump()
}

func (c *wsClient) write(snap session.Snapshot) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(streamMessage{Type: "SNAPSHOT", Data: snap})
}

func (c *wsClient) writePump(initial session.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(initial); err != nil {
		return
	}
	for {
		select {
		case snap := <-c.updates:
			if err := c.write(snap); err != nil {
				c.server.logger.Debug("Server: stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump discards client frames and detects disconnects.
func (c *wsClient) readPump() {
	defer close(c.closed)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("Server: stream read error", "error", err)
			}
			return
		}
	}
}
