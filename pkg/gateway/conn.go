package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// Connection errors.
var (
	ErrConnClosed = errors.New("connection closed")
	ErrQueueFull  = errors.New("outbound queue full")
)

// conn is one subscribed WebSocket client.
type conn struct {
	id         string
	timerID    string
	remoteAddr string
	ws         *websocket.Conn

	queue       chan timer.Snapshot
	sendTimeout time.Duration

	logger *slog.Logger
	events log.Logger

	closed    chan struct{}
	closeOnce sync.Once
	writerWg  sync.WaitGroup
}

func newConn(id, timerID, remoteAddr string, ws *websocket.Conn, queueSize int, sendTimeout time.Duration, logger *slog.Logger, events log.Logger) *conn {
	return &conn{
		id:          id,
		timerID:     timerID,
		remoteAddr:  remoteAddr,
		ws:          ws,
		queue:       make(chan timer.Snapshot, queueSize),
		sendTimeout: sendTimeout,
		logger:      logger,
		events:      events,
		closed:      make(chan struct{}),
	}
}

// ID implements timer.Subscriber.
func (c *conn) ID() string {
	return c.id
}

// Send implements timer.Subscriber. It only enqueues. A full queue gets
// the subscriber dropped, so the socket is closed too and the client sees
// a disconnect instead of going stale. Send runs under the registry lock,
// which is why the close happens on its own goroutine.
func (c *conn) Send(snap timer.Snapshot) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.queue <- snap:
		return nil
	default:
		c.logger.Debug("outbound queue full, closing connection", "conn_id", c.id, "timer_id", c.timerID)
		go c.close()
		return ErrQueueFull
	}
}

func (c *conn) startWriter() {
	c.writerWg.Add(1)
	go c.writeLoop()
}

func (c *conn) writeLoop() {
	defer c.writerWg.Done()

	for {
		select {
		case <-c.closed:
			return
		case snap := <-c.queue:
			if err := c.write(snap); err != nil {
				c.logger.Debug("write failed, closing connection", "conn_id", c.id, "timer_id", c.timerID, "error", err)
				c.logError(err, "write snapshot")
				c.close()
				return
			}
		}
	}
}

func (c *conn) write(snap timer.Snapshot) error {
	if c.sendTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return err
		}
	}
	return websocket.JSON.Send(c.ws, snap)
}

// close stops the writer and closes the socket, which also unblocks the
// reader. It is safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// wait blocks until the writer goroutine has exited.
func (c *conn) wait() {
	c.writerWg.Wait()
}

func (c *conn) logError(err error, context string) {
	c.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		TimerID:      c.timerID,
		Direction:    log.DirectionNone,
		Layer:        log.LayerGateway,
		Category:     log.CategoryError,
		RemoteAddr:   c.remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerGateway,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (c *conn) logState(from, to, reason string) {
	c.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		TimerID:      c.timerID,
		Direction:    log.DirectionNone,
		Layer:        log.LayerGateway,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

var _ timer.Subscriber = (*conn)(nil)
