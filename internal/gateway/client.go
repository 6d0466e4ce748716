package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inboundFrame is what clients may push upstream. Only typing signals are
// accepted; everything durable goes through the HTTP API.
type inboundFrame struct {
	Type     string `json:"type"`
	MatchID  int64  `json:"match_id"`
	IsTyping bool   `json:"is_typing"`
}

// Client binds one websocket to the gateway registry.
type Client struct {
	id      string
	ownerID int64
	conn    *websocket.Conn
	gateway *Gateway
	logger  *zap.Logger

	// sendMu orders Send against Close: the channel is only closed while
	// holding it, so a racing Send sees the closed flag instead of a
	// closed channel.
	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// ServeWS upgrades the request and runs the connection until the peer goes
// away. The caller has already authenticated ownerID.
func ServeWS(g *Gateway, ownerID int64, w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		ownerID: ownerID,
		conn:    conn,
		gateway: g,
		logger:  logger,
		send:    make(chan []byte, 256),
	}

	if err := g.Register(r.Context(), ownerID, client); err != nil {
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// Send queues a payload without blocking. False means the connection is
// already closed or cannot keep up, and the gateway should drop it.
func (c *Client) Send(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close is idempotent and safe to call concurrently with Send.
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.gateway.Unregister(context.Background(), c.ownerID, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var in inboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		if in.Type != "typing" || in.MatchID <= 0 {
			continue
		}

		if err := c.gateway.Typing(context.Background(), c.ownerID, in.MatchID, in.IsTyping); err != nil {
			c.logger.Debug("typing relay failed",
				zap.String("conn_id", c.id),
				zap.Int64("match_id", in.MatchID),
				zap.Error(err),
			)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
