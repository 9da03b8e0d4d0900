package remote

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/atlo/dashboard/pkg/streaming"
)

const (
	sendChSize     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	// ErrDisconnected is returned for commands sent after the client left.
	ErrDisconnected = errors.New("map client disconnected")
	// ErrBackpressure is returned when the client is not draining commands.
	ErrBackpressure = errors.New("map client send queue full")
)

// connection owns one upgraded WebSocket. A single goroutine writes; a
// single goroutine reads and hands envelopes to onMessage.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	onMessage func(streaming.Envelope)
	logger    *slog.Logger
}

func newConnection(conn *ws.Conn, onMessage func(streaming.Envelope), logger *slog.Logger) *connection {
	return &connection{
		conn:      conn,
		sendCh:    make(chan []byte, sendChSize),
		done:      make(chan struct{}),
		onMessage: onMessage,
		logger:    logger,
	}
}

func (c *connection) start() {
	go c.writeLoop()
	go c.readLoop()
}

// writeLoop drains sendCh and keeps the connection alive with pings.
func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.write(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				_ = c.close()
				return
			}
		case <-ticker.C:
			if err := c.write(ws.PingMessage, nil); err != nil {
				c.logger.Debug("WebSocket ping failed", "error", err)
				_ = c.close()
				return
			}
		}
	}
}

func (c *connection) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// readLoop decodes envelopes from the client until the connection drops.
func (c *connection) readLoop() {
	defer func() { _ = c.close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					c.logger.Warn("WebSocket read error", "error", err)
				}
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed message received", "raw", string(message))
			continue
		}
		c.onMessage(env)
	}
}

// send pushes data to the write loop without blocking.
func (c *connection) send(data []byte) error {
	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return ErrDisconnected
	default:
		return ErrBackpressure
	}
}

// close sends a WebSocket close frame and shuts down both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}
