// Command habitflow-server runs the habitflow timer engine behind an HTTP
// API and a WebSocket push channel.
//
// It offers:
//   - REST API for timer definitions and live timer commands
//   - WebSocket channel at /timer/ws/{id} broadcasting the timer state
//   - SQLite persistence for timer definitions
//   - Optional mDNS advertisement and CBOR protocol event capture
//
// Usage:
//
//	habitflow-server [flags]
//
// Flags:
//
//	-config string           YAML config file
//	-addr string             HTTP listen address (default ":8080")
//	-db string               SQLite database path (default "./habitflow.db")
//	-tick duration           Broadcast tick interval (default 1s)
//	-send-timeout duration   Write deadline for one snapshot (default 5s)
//	-queue int               Per-connection outbound queue size (default 16)
//	-persist-timeout duration Timeout for persisting a set duration (default 5s)
//	-event-log string        Write protocol events to this .tlog file
//	-mdns                    Advertise the server over mDNS
//	-mdns-name string        mDNS instance name
//	-log-level string        Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start the server on the default port
//	habitflow-server
//
//	# Use an in-memory database and capture protocol events
//	habitflow-server -db :memory: -event-log events.tlog
//
//	# Load settings from a file, overriding the address
//	habitflow-server -config habitflow.yaml -addr :9000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.showVersion {
		fmt.Printf("habitflow-server %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg := opts.config
	logger := setupLogging(cfg.LogLevel)

	srv, err := NewServer(ServerConfig{
		Config:  cfg,
		Version: Version,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create server: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting habitflow server on %s", cfg.Addr)
	log.Printf("Database: %s", cfg.DBPath)
	if opts.configPath != "" {
		log.Printf("Config: %s", opts.configPath)
	}
	if cfg.EventLog != "" {
		log.Printf("Event log: %s", cfg.EventLog)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		srv.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		return 1
	}
	if err := <-errCh; err != nil {
		fmt.Fprintf(os.Stderr, "Error: server failed: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging configures the standard logger and returns the structured
// logger used by the engine.
func setupLogging(level string) *slog.Logger {
	log.SetFlags(log.Ldate | log.Ltime)
	if level == "debug" {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	}

	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
