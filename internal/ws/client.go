// Package ws adapts a gorilla websocket to presence.Conn.
package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/courier/internal/presence"
	"github.com/matheus3301/courier/internal/wire"
	"go.uber.org/zap"
)

const (
	sendBuffer     = 64
	maxInboundSize = 4096
)

// ErrBufferFull is returned by Push when the client is not draining its queue.
var ErrBufferFull = errors.New("send buffer full")

// Heartbeat bounds how long a silent peer stays connected.
type Heartbeat struct {
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

// Client is one live connection. Push never blocks.
type Client struct {
	userID string
	conn   *websocket.Conn
	hb     Heartbeat
	logger *zap.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ presence.Conn = (*Client)(nil)

// NewClient wraps an upgraded connection.
func NewClient(userID string, conn *websocket.Conn, hb Heartbeat, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		userID: userID,
		conn:   conn,
		hb:     hb,
		logger: logger.With(zap.String("user_id", userID)),
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Push queues an event frame.
func (c *Client) Push(event string, payload any) error {
	data, err := json.Marshal(wire.Envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return presence.ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Run pumps frames until the peer goes away, misses a pong, or Close is
// called. It returns after the socket is closed.
func (c *Client) Run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	c.readPump()
	_ = c.Close()
	<-writerDone
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hb.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hb.PongWait))
	})
	for {
		// Clients only talk over HTTP; inbound frames are drained for control messages.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hb.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hb.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hb.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.hb.WriteWait))
			return
		}
	}
}
