package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SameeraMS/BusTracking-Backend/internal/core/domain"
)

// Conn is one viewer connection. A dedicated writer goroutine owns all
// writes to the socket; everything else enqueues through the outbox.
type Conn struct {
	id     string
	hub    *Hub
	socket *websocket.Conn

	outbox    chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	// guarded by hub.mu
	subscriptions map[string]domain.Subscription
}

func newConn(hub *Hub, socket *websocket.Conn) *Conn {
	return &Conn{
		id:            hub.nextConnID(),
		hub:           hub,
		socket:        socket,
		outbox:        make(chan []byte, sendBufferSize),
		closed:        make(chan struct{}),
		subscriptions: make(map[string]domain.Subscription),
	}
}

// send enqueues a payload for the writer goroutine. A connection whose
// outbox is full is torn down; one slow viewer must not stall a broadcast.
func (c *Conn) send(payload []byte) bool {
	if payload == nil {
		return false
	}

	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.outbox <- payload:
		return true
	default:
		c.hub.logger.Warn("Viewer outbox full, terminating",
			zap.String("connection_id", c.id),
		)
		c.close()
		return false
	}
}

// deliver is send for hub-generated control messages.
func (c *Conn) deliver(payload []byte) {
	c.send(payload)
}

// close signals the pumps to stop. Registry cleanup happens in writePump's
// teardown so it runs exactly once regardless of who noticed the failure.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// writePump owns the socket for writing. It drains the outbox and pings on
// the configured period; a deadline miss on either closes the connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
		c.hub.remove(c)
	}()

	for {
		select {
		case payload := <-c.outbox:
			c.socket.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Warn("Viewer write failed",
					zap.String("connection_id", c.id),
					zap.Error(err),
				)
				c.close()
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			c.socket.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump handles inbound subscribe/unsubscribe/ping messages. The read
// deadline is refreshed on every pong; a viewer that misses one ping cycle
// times out here and is torn down.
func (c *Conn) readPump() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Viewer read failed",
					zap.String("connection_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		c.hub.mu.Lock()
		c.hub.messagesReceived++
		c.hub.mu.Unlock()

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.deliver(c.hub.envelope(envelope{Type: "error", Message: "Invalid message format"}))
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.Area == "" || msg.Bounds == nil {
				c.deliver(c.hub.envelope(envelope{Type: "error", Message: "subscribe requires area and bounds"}))
				continue
			}
			c.hub.subscribe(c, msg.Area, *msg.Bounds)
		case "unsubscribe":
			if msg.Area == "" {
				continue
			}
			c.hub.unsubscribe(c, msg.Area)
		case "ping":
			c.deliver(c.hub.envelope(envelope{Type: "pong"}))
		default:
			c.hub.logger.Debug("Unknown viewer message type",
				zap.String("connection_id", c.id),
				zap.String("type", msg.Type),
			)
		}
	}
}
