package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/habitflow/habitflow-go/pkg/timer"
)

// WebSocketPath is the server path prefix for timer connections.
const WebSocketPath = "/timer/ws/"

// ErrClosed is returned by commands on a closed connection.
var ErrClosed = errors.New("client: connection closed")

// Conn is a push connection bound to one timer.
type Conn struct {
	TimerID string

	ws        *websocket.Conn
	snapshots chan timer.Snapshot

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}
	err       error
}

// Dial opens a push connection to timerID on the server at baseURL
// (http or https).
func Dial(ctx context.Context, baseURL, timerID string) (*Conn, error) {
	wsURL, origin, err := websocketURL(baseURL, timerID)
	if err != nil {
		return nil, err
	}

	config, err := websocket.NewConfig(wsURL, origin)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	ws, err := config.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", wsURL, err)
	}

	c := &Conn{
		TimerID:   timerID,
		ws:        ws,
		snapshots: make(chan timer.Snapshot, 16),
		done:      make(chan struct{}),
		readDone:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func websocketURL(baseURL, timerID string) (wsURL, origin string, err error) {
	if timerID == "" {
		return "", "", errors.New("client: timer id required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("client: invalid base URL: %w", err)
	}

	origin = u.Scheme + "://" + u.Host
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	if strings.HasPrefix(origin, "ws") {
		origin = "http" + strings.TrimPrefix(origin, "ws")
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + WebSocketPath + timerID
	u.RawPath = ""
	u.RawQuery = ""
	return u.String(), origin, nil
}

func (c *Conn) readLoop() {
	defer close(c.readDone)
	defer close(c.snapshots)

	for {
		var snap timer.Snapshot
		if err := websocket.JSON.Receive(c.ws, &snap); err != nil {
			select {
			case <-c.done:
			default:
				c.err = err
			}
			return
		}
		select {
		case c.snapshots <- snap:
		case <-c.done:
			return
		}
	}
}

// Snapshots delivers server snapshots in order. The channel is closed
// when the connection ends; Err then reports why.
func (c *Conn) Snapshots() <-chan timer.Snapshot {
	return c.snapshots
}

// Err returns the error that ended the connection, or nil after Close.
// It is only meaningful once Snapshots is closed.
func (c *Conn) Err() error {
	select {
	case <-c.readDone:
		return c.err
	default:
		return nil
	}
}

// Start sends {"action":"start"}.
func (c *Conn) Start() error { return c.Send(timer.Request{Command: timer.CmdStart}) }

// Pause sends {"action":"pause"}.
func (c *Conn) Pause() error { return c.Send(timer.Request{Command: timer.CmdPause}) }

// Resume sends {"action":"resume"}.
func (c *Conn) Resume() error { return c.Send(timer.Request{Command: timer.CmdResume}) }

// Stop sends {"action":"stop"}.
func (c *Conn) Stop() error { return c.Send(timer.Request{Command: timer.CmdStop}) }

// Set sends {"set":"HHMMSS"}. The value is checked locally first.
func (c *Conn) Set(hhmmss string) error {
	if _, err := timer.DecodeHHMMSS(hhmmss); err != nil {
		return err
	}
	return c.Send(timer.Request{Command: timer.CmdSet, Value: hhmmss})
}

// Send writes one command. The server answers with a snapshot on success
// and silence on rejection.
func (c *Conn) Send(req timer.Request) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.JSON.Send(c.ws, req)
}

// Close ends the connection and waits for the reader to exit.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
		<-c.readDone
	})
	return err
}
