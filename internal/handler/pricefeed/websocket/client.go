package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/krobus00/price-feed-service/internal/entity"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// client owns one socket. Only writePump writes to conn; readPump is run by
// the http handler goroutine.
type client struct {
	id       entity.ConnectionID
	conn     *websocket.Conn
	clock    clockwork.Clock
	cfg      config.WebsocketConfig
	limiter  *rate.Limiter
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClient(id entity.ConnectionID, conn *websocket.Conn, clock clockwork.Clock, cfg config.WebsocketConfig) *client {
	c := &client{
		id:      id,
		conn:    conn,
		clock:   clock,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		send:    make(chan []byte, cfg.SendBufferSize),
		done:    make(chan struct{}),
	}

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.extendReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	c.wg.Add(1)
	go c.writePump()

	return c
}

// enqueue never blocks the caller.
func (c *client) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return entity.ErrConnectionNotFound
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return entity.ErrSendBufferFull
	}
}

// enqueueWait blocks for at most WriteWait. Used for replies that a later
// tick does not replace.
func (c *client) enqueueWait(payload []byte) error {
	select {
	case <-c.done:
		return entity.ErrConnectionNotFound
	default:
	}

	timer := c.clock.NewTimer(c.cfg.WriteWait)
	defer timer.Stop()

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return entity.ErrConnectionNotFound
	case <-timer.Chan():
		return entity.ErrSendBufferFull
	}
}

func (c *client) writePump() {
	ticker := c.clock.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case payload := <-c.send:
			c.extendWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.WithField("connection", c.id).Debugf("write failed: %v", err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.Chan():
			c.extendWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("connection", c.id).Debugf("ping failed: %v", err)
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// stop waits for writePump before sending the close frame so the socket
// never sees two writers.
func (c *client) stop(code int, reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.extendWriteDeadline()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		_ = c.conn.Close()
	})
}

func (c *client) extendReadDeadline() {
	_ = c.conn.SetReadDeadline(c.clock.Now().Add(c.cfg.PongWait))
}

func (c *client) extendWriteDeadline() {
	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(c.cfg.WriteWait))
}
