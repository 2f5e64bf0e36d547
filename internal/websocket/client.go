package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal"
)

// Client is one websocket connection. The caller identity it carries is set
// by a successful join and read by vote submission.
type Client struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	engine Engine
	cfg    Config

	send      chan []byte
	sendMu    sync.Mutex
	sendShut  bool
	closeOnce sync.Once

	// room is guarded by hub.mu
	room string

	callerMu sync.RWMutex
	caller   internal.Caller
}

func (c *Client) Caller() internal.Caller {
	c.callerMu.RLock()
	defer c.callerMu.RUnlock()
	return c.caller
}

func (c *Client) bind(caller internal.Caller) {
	c.callerMu.Lock()
	c.caller = caller
	c.callerMu.Unlock()
}

// enqueue reports false only when the send buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendShut {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendShut {
		c.sendShut = true
		close(c.send)
	}
}

// drop closes the underlying connection; the read pump then unregisters.
func (c *Client) drop() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			log.Debug().Err(err).Str("connection_id", c.id).Msg("[drop] close failed")
		}
	})
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.drop()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("[writePump] write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("[writePump] ping failed")
				return
			}
		}
	}
}

// readPump decodes commands until the connection goes away. Commands from one
// connection are handled one at a time, in arrival order.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.drop()
		log.Info().Str("connection_id", c.id).Msg("[readPump] connection closed")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("[readPump] unexpected close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.handle(ctx, raw)
	}
}
