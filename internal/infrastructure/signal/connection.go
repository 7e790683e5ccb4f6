package signal

import (
	"sync"
	"time"

	"sportshub/internal/core/domain"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// connection is one upgraded WebSocket. Outbound frames go through send and
// are written by writePump; closed is the only shutdown signal, send is
// never closed.
type connection struct {
	id        domain.ConnectionID
	userID    domain.UserID
	ws        *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter
	opened    time.Time
	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(id domain.ConnectionID, userID domain.UserID, ws *websocket.Conn, cfg Config) *connection {
	var limiter *rate.Limiter
	if cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst)
	}
	return &connection{
		id:      id,
		userID:  userID,
		ws:      ws,
		send:    make(chan []byte, cfg.SendBuffer),
		limiter: limiter,
		opened:  time.Now(),
		closed:  make(chan struct{}),
	}
}

// enqueue never blocks. A full buffer closes the connection.
func (c *connection) enqueue(frame []byte) error {
	select {
	case <-c.closed:
		return domain.ErrConnectionNotFound
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.close()
		return domain.ErrSendBufferFull
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *connection) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *connection) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			c.flush(cfg)
			deadline := time.Now().Add(cfg.WriteTimeout)
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// flush writes whatever is already buffered so that a final error frame
// reaches the client before the close.
func (c *connection) flush(cfg Config) {
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
