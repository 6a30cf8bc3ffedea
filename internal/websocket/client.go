package websocket

import (
	"context"
	"sync"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is a middleman between the websocket connection and the gateway.
type Client struct {
	id       string
	identity entity.Identity

	conn    *websocket.Conn
	handler EventHandler
	logger  logger.ILogger

	// Buffered channel of outbound frames.
	send chan []byte

	// done is closed once; send is never closed so Push cannot panic.
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, identity entity.Identity, sendBuffer int, handler EventHandler, log logger.ILogger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		handler:  handler,
		logger:   log,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Identity() entity.Identity {
	return c.identity
}

func (c *Client) Push(frame []byte) error {
	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrSinkClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.logger.Debug("Client", "readPump exiting", map[string]interface{}{"conn_id": c.id, "identity": c.identity.Key()})
		c.handler.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{"conn_id": c.id, "error": err.Error()})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.handler.Handle(ctx, c, frame)
	}
}

// writePump pumps frames from the send buffer to the websocket connection.
// Frames are written one per websocket message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn("Client", "Write failed", map[string]interface{}{"conn_id": c.id, "error": err.Error()})
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
