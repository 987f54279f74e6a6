package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client owns one WebSocket connection. The read pump feeds frames to the
// router one at a time; the write pump drains the send queue. All
// outbound traffic goes through enqueue, which is safe against a
// concurrent Close.
type Client struct {
	ID     string
	conn   *websocket.Conn
	router *Router
	send   chan []byte
	logger *zap.Logger

	maxMessageBytes int64

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, router *Router, queueSize int, maxMessageBytes int64, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ID:              id,
		conn:            conn,
		router:          router,
		send:            make(chan []byte, queueSize),
		maxMessageBytes: maxMessageBytes,
		logger:          logger.With(zap.String("connection_id", id)),
	}
}

// Start begins the client's read and write pumps and sends the transport
// hello carrying the connection id.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()

	c.Send(newFrame(MessageConnectionEstablished, ConnectionEstablishedPayload{ConnectionID: c.ID}))
}

// readPump pumps frames from the connection into the router. Running the
// router inline keeps a connection's frames in arrival order. Cleanup is
// handled by the router on exit, however the connection died.
func (c *Client) readPump() {
	defer func() {
		c.router.HandleDisconnect(c)
		c.logger.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(c.maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Binary messages not supported")
			continue
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.Send(errorFrame(CodeValidationError, "malformed frame"))
			continue
		}
		c.router.HandleFrame(context.Background(), c, frame)
	}
}

// writePump pumps queued messages to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

			// Drain whatever queued up behind the current message
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					c.logger.Warn("Failed to write batched message", zap.Error(err))
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send marshals and queues a frame addressed to this connection alone. A
// full queue on a direct send means the client cannot keep up; it is
// closed like any other slow consumer.
func (c *Client) Send(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		c.logger.Warn("Send queue full, closing connection")
		c.Close()
	}
}

// enqueue offers pre-marshaled bytes to the send queue without blocking.
// It reports false when the client is closed or the queue is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close shuts the connection down once. Closing the send channel lets the
// write pump drain queued frames before it closes the underlying
// connection, which in turn unblocks the read pump and triggers
// disconnect cleanup through the router.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
