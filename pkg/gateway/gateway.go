package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// PathPrefix is where the gateway is mounted; the timer id follows it.
const PathPrefix = "/timer/ws/"

// Defaults for Config.
const (
	DefaultSendTimeout = 5 * time.Second
	DefaultQueueSize   = 16
)

// DefinitionLookup resolves timer definitions for new connections.
type DefinitionLookup interface {
	Get(ctx context.Context, id string) (store.Definition, error)
}

// Config configures a Gateway.
type Config struct {
	Registry    *timer.Registry
	Handler     *timer.Handler
	Broadcaster *timer.Broadcaster

	// Definitions seeds timers that are not tracked yet. Without it only
	// timers already in the registry can be joined.
	Definitions DefinitionLookup

	// SendTimeout is the write deadline for one snapshot.
	SendTimeout time.Duration

	// QueueSize is the per-connection outbound buffer. A connection whose
	// queue is full when a snapshot is pushed is dropped.
	QueueSize int

	Logger      *slog.Logger
	EventLogger log.Logger
}

// Gateway is an http.Handler serving the timer push channel.
type Gateway struct {
	registry    *timer.Registry
	handler     *timer.Handler
	broadcaster *timer.Broadcaster
	defs        DefinitionLookup

	sendTimeout time.Duration
	queueSize   int

	logger *slog.Logger
	events log.Logger

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
	wg     sync.WaitGroup
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		registry:    cfg.Registry,
		handler:     cfg.Handler,
		broadcaster: cfg.Broadcaster,
		defs:        cfg.Definitions,
		sendTimeout: cfg.SendTimeout,
		queueSize:   cfg.QueueSize,
		logger:      cfg.Logger,
		events:      log.OrNoop(cfg.EventLogger),
		conns:       make(map[string]*conn),
	}
}

// subscribeFunc binds one subscriber to the resolved timer.
type subscribeFunc func(sub timer.Subscriber) error

// ServeHTTP resolves the timer before upgrading, so an unknown id is a
// plain 404 rather than an open socket.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, PathPrefix)
	}
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Timer id required", http.StatusBadRequest)
		return
	}

	subscribe, err := g.resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, timer.ErrTimerNotFound) {
			http.Error(w, "Timer not found", http.StatusNotFound)
			return
		}
		g.logger.Error("failed to resolve timer", "timer_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()
	defer g.wg.Done()

	remote := r.RemoteAddr
	srv := websocket.Server{
		Handler: func(ws *websocket.Conn) {
			g.serveConn(ws, id, remote, subscribe)
		},
	}
	srv.ServeHTTP(w, r)
}

func (g *Gateway) resolve(ctx context.Context, id string) (subscribeFunc, error) {
	if g.defs != nil {
		def, err := g.defs.Get(ctx, id)
		switch {
		case err == nil:
			return func(sub timer.Subscriber) error {
				return g.registry.SubscribeOrCreate(id, def.Name, def.Duration, sub)
			}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	// The definition may be gone while the timer is still live.
	if _, err := g.registry.Info(id); err != nil {
		return nil, err
	}
	return func(sub timer.Subscriber) error {
		return g.registry.Subscribe(id, sub)
	}, nil
}

func (g *Gateway) serveConn(ws *websocket.Conn, timerID, remote string, subscribe subscribeFunc) {
	c := newConn(uuid.NewString(), timerID, remote, ws, g.queueSize, g.sendTimeout, g.logger, g.events)
	logger := g.logger.With("conn_id", c.id, "timer_id", timerID)

	if !g.track(c) {
		ws.Close()
		return
	}
	defer g.untrack(c)

	c.logState("", "connected", "")
	c.startWriter()
	defer c.wait()
	defer c.close()

	if err := subscribe(c); err != nil {
		logger.Warn("subscribe failed", "error", err)
		c.logError(err, "subscribe")
		return
	}
	logger.Info("client subscribed", "remote", remote)

	if g.broadcaster != nil {
		g.broadcaster.Start()
	}

	reason := g.readLoop(c, logger)

	g.registry.Unsubscribe(timerID, c.id)
	c.logState("connected", "disconnected", reason)
	logger.Info("client disconnected", "reason", reason)
}

// readLoop relays inbound commands until the socket fails.
func (g *Gateway) readLoop(c *conn, logger *slog.Logger) string {
	ctx := context.Background()

	for {
		var data []byte
		if err := websocket.Message.Receive(c.ws, &data); err != nil {
			select {
			case <-c.closed:
				return "closed by server"
			default:
			}
			return err.Error()
		}

		req, err := timer.ParseRequest(data)
		if err != nil {
			logger.Warn("ignoring inbound message", "error", err, "payload", truncate(data, 128))
			c.logError(err, "decode command")
			continue
		}

		if g.handler == nil {
			continue
		}
		if _, err := g.handler.ExecuteFrom(ctx, c.timerID, c.id, req); err != nil {
			logger.Info("command rejected", "command", req.Command, "error", err)
		}
	}
}

func (g *Gateway) track(c *conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.conns[c.id] = c
	return true
}

func (g *Gateway) untrack(c *conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c.id)
}

// ConnectionCount returns the number of open connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close disconnects every client and waits for their handlers to return.
// New connections are refused afterwards.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.closed = true
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	g.wg.Wait()
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
