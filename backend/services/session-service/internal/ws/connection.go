package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit  = 64 * 1024
	pongWait   = 60 * time.Second
	sendBuffer = 16
)

// MessageProcessor handles raw client messages. A nil response sends nothing back.
type MessageProcessor interface {
	Process(ctx context.Context, clientID string, raw []byte) ([]byte, error)
}

// Connection represents an active status subscriber.
type Connection struct {
	clientID     string
	ws           *websocket.Conn
	logger       *zap.Logger
	processor    MessageProcessor
	writeTimeout time.Duration
	onClose      func(clientID string)

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConnection builds a connection wrapper.
func NewConnection(clientID string, ws *websocket.Conn, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		clientID:     clientID,
		ws:           ws,
		send:         make(chan []byte, sendBuffer),
		logger:       logger,
		processor:    processor,
		writeTimeout: writeTimeout,
		onClose:      onClose,
	}
}

// ClientID returns the connection identifier.
func (c *Connection) ClientID() string {
	return c.clientID
}

// Start launches the write pump and blocks in the read pump until the peer goes away.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("connection read closed", zap.String("client_id", c.clientID), zap.Error(err))
			return
		}

		response, err := c.processor.Process(ctx, c.clientID, message)
		if err != nil {
			c.logger.Warn("failed to process message", zap.String("client_id", c.clientID), zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			_ = c.ws.Close()
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message for writing. Messages to a slow or closed client are dropped.
func (c *Connection) Send(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping outgoing message, buffer full", zap.String("client_id", c.clientID))
	}
}

// Ping sends a ping frame. Control frames may be written concurrently with the write pump.
func (c *Connection) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeTimeout))
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.clientID)
	}
}
