package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rishabh-28-shubham/TechStroke/internal/metrics"
	"github.com/rishabh-28-shubham/TechStroke/internal/protocol"
	"github.com/rishabh-28-shubham/TechStroke/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live transport session. id is the connection identity;
// roomID and name are the binding state, touched only by the hub loop.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	rateLimiter *ratelimit.Limiter

	id     string
	roomID string
	name   string
}

// ServeWs upgrades an HTTP request and registers the connection with the
// hub. Room binding happens later, through a join event.
func ServeWs(hub *Hub, rate float64, burst int, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 512),
		rateLimiter: ratelimit.NewLimiter(rate, burst),
		id:          uuid.NewString(),
	}

	hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	rateLimitWarnings := 0

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "conn", c.id, "err", err)
			}
			break
		}

		if !c.rateLimiter.Allow() {
			rateLimitWarnings++
			if rateLimitWarnings%100 == 1 {
				c.hub.log.Warn("rate limit exceeded", "conn", c.id, "warnings", rateLimitWarnings)
			}
			if rateLimitWarnings > 1000 {
				c.hub.log.Warn("disconnecting client for excessive rate limit violations", "conn", c.id)
				return
			}
			continue
		}

		in, err := protocol.Decode(message)
		if err != nil {
			// Protocol errors drop the frame, never the connection.
			metrics.DroppedFramesTotal.Inc()
			c.hub.log.Warn("invalid frame dropped", "conn", c.id, "err", err)
			continue
		}

		c.hub.inbound <- &inboundEvent{client: c, event: in}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
