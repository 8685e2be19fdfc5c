// Package interactive provides the interactive command-line interface
// for habitflow-timer.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/habitflow/habitflow-go/pkg/client"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// Shell handles interactive mode for habitflow-timer. Commands for the
// attached timer go over its push connection; everything else uses the
// REST API so rejections are reported.
type Shell struct {
	baseURL string
	api     *client.API
	out     io.Writer

	mu       sync.Mutex
	conn     *client.Conn
	watchers sync.WaitGroup
}

// New creates a shell talking to the server at baseURL. Output goes to out
// until Run replaces it with the readline writer.
func New(baseURL string, api *client.API, out io.Writer) *Shell {
	return &Shell{
		baseURL: baseURL,
		api:     api,
		out:     out,
	}
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "timer> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.mu.Lock()
	s.out = rl.Stdout()
	s.mu.Unlock()
	defer s.Detach()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			s.printf("Exiting...\n")
			cancel()
			return nil
		}

		if s.Execute(ctx, line) {
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "list", "ls":
		s.cmdList(ctx)

	case "active", "a":
		s.cmdActive(ctx)

	case "create", "new":
		s.cmdCreate(ctx, args)

	case "delete", "rm":
		s.cmdDelete(ctx, args)

	case "attach", "watch":
		s.cmdAttach(ctx, args)

	case "detach":
		if !s.Detach() {
			s.printf("Not attached\n")
		}

	case "start", "pause", "resume", "stop":
		c, _ := timer.ParseCommand(cmd)
		s.cmdCommand(ctx, timer.Request{Command: c}, args)

	case "set":
		if len(args) == 0 {
			s.printf("Usage: set <HHMMSS> [timer-id]\n")
			return false
		}
		s.cmdCommand(ctx, timer.Request{Command: timer.CmdSet, Value: args[0]}, args[1:])

	case "quit", "exit", "q":
		s.printf("Exiting...\n")
		return true

	default:
		s.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	s.printf(`Commands:
  list                      List timer definitions
  active                    List live timers
  create <name> <duration>  Create a timer (HHMMSS or Go duration, e.g. 25m)
  delete <id>               Delete a timer definition
  attach <id>               Watch a timer and send commands to it
  detach                    Stop watching
  start|pause|resume|stop [id]
  set <HHMMSS> [id]         Reset a stopped, paused or finished timer
  quit                      Exit
`)
}

func (s *Shell) cmdList(ctx context.Context) {
	defs, err := s.api.ListTimers(ctx)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	if len(defs) == 0 {
		s.printf("No timers\n")
		return
	}
	for _, d := range defs {
		s.printf("  %-36s  %-20s  %s\n", d.ID, d.Name, timer.EncodeHHMMSS(d.Duration))
	}
}

func (s *Shell) cmdActive(ctx context.Context) {
	active, err := s.api.ListActive(ctx)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	if len(active) == 0 {
		s.printf("No live timers\n")
		return
	}
	for _, a := range active {
		s.printf("  %-36s  %-20s  %s  %-8s  %d subscriber(s)\n",
			a.ID, a.Name, a.Remaining, a.Status, a.Subscribers)
	}
}

func (s *Shell) cmdCreate(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.printf("Usage: create <name> <duration>\n")
		return
	}
	seconds, err := ParseDuration(args[len(args)-1])
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	name := strings.Join(args[:len(args)-1], " ")

	def, err := s.api.CreateTimer(ctx, name, seconds)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Created %s (%s, %s)\n", def.ID, def.Name, timer.EncodeHHMMSS(def.Duration))
}

func (s *Shell) cmdDelete(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.printf("Usage: delete <id>\n")
		return
	}
	if err := s.api.DeleteTimer(ctx, args[0]); err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Deleted %s\n", args[0])
}

func (s *Shell) cmdAttach(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.printf("Usage: attach <id>\n")
		return
	}
	if err := s.Attach(ctx, args[0]); err != nil {
		s.printf("Error: %v\n", err)
	}
}

func (s *Shell) cmdCommand(ctx context.Context, req timer.Request, args []string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if len(args) == 0 || (conn != nil && args[0] == conn.TimerID) {
		if conn == nil {
			s.printf("Not attached; pass a timer id\n")
			return
		}
		if err := s.sendPush(conn, req); err != nil {
			s.printf("Error: %v\n", err)
		}
		return
	}

	snap, err := s.api.Command(ctx, args[0], req)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("[%s] %s %s\n", args[0], snap.Remaining, snap.Status)
}

func (s *Shell) sendPush(conn *client.Conn, req timer.Request) error {
	switch req.Command {
	case timer.CmdStart:
		return conn.Start()
	case timer.CmdPause:
		return conn.Pause()
	case timer.CmdResume:
		return conn.Resume()
	case timer.CmdStop:
		return conn.Stop()
	case timer.CmdSet:
		return conn.Set(req.Value)
	default:
		return conn.Send(req)
	}
}

// Attach opens a push connection to id, replacing any earlier one, and
// prints every snapshot it receives.
func (s *Shell) Attach(ctx context.Context, id string) error {
	conn, err := client.Dial(ctx, s.baseURL, id)
	if err != nil {
		return err
	}

	s.Detach()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.watchers.Add(1)
	go s.watch(conn)
	s.printf("Attached to %s\n", id)
	return nil
}

// Detach closes the push connection. It reports whether one was open.
func (s *Shell) Detach() bool {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return false
	}
	conn.Close()
	s.watchers.Wait()
	return true
}

func (s *Shell) watch(conn *client.Conn) {
	defer s.watchers.Done()

	var last timer.Status
	for snap := range conn.Snapshots() {
		s.printf("[%s] %s %s\n", conn.TimerID, snap.Remaining, snap.Status)
		if snap.Status == timer.StatusFinished && last != timer.StatusFinished {
			s.printf("[%s] time is up\n", conn.TimerID)
		}
		last = snap.Status
	}

	if err := conn.Err(); err != nil {
		s.printf("[%s] connection lost: %v\n", conn.TimerID, err)
	}
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

// ParseDuration accepts HHMMSS, a plain number of seconds, or a Go
// duration string such as "25m".
func ParseDuration(value string) (int, error) {
	if d, err := time.ParseDuration(value); err == nil {
		if d < time.Second {
			return 0, fmt.Errorf("duration %q is shorter than one second", value)
		}
		return int(d / time.Second), nil
	}
	if len(value) >= 6 {
		if seconds, err := timer.DecodeHHMMSS(value); err == nil {
			return seconds, nil
		}
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("invalid duration %q", value)
}
