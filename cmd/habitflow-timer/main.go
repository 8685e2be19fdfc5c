// Command habitflow-timer is an interactive client for a habitflow server.
//
// It lists and creates timers over the REST API and attaches to a timer's
// push channel to watch it count down and control it.
//
// Usage:
//
//	habitflow-timer [flags]
//
// Flags:
//
//	-server string      Server base URL; discovered over mDNS when empty
//	-timer string       Attach to this timer on startup
//	-discover duration  mDNS browse timeout (default 5s)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Find a server on the local network
//	habitflow-timer
//
//	# Connect to a known server and watch one timer
//	habitflow-timer -server http://kitchen.local:8080 -timer tea
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/habitflow/habitflow-go/cmd/habitflow-timer/interactive"
	"github.com/habitflow/habitflow-go/pkg/client"
	"github.com/habitflow/habitflow-go/pkg/discovery"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	serverURL   = flag.String("server", "", "Server base URL; discovered over mDNS when empty")
	timerID     = flag.String("timer", "", "Attach to this timer on startup")
	discoverFor = flag.Duration("discover", discovery.BrowseTimeout, "mDNS browse timeout")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("habitflow-timer %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	log.SetFlags(log.Ldate | log.Ltime)
	if *logLevel == "debug" {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	baseURL := *serverURL
	if baseURL == "" {
		found, err := discover(ctx, *discoverFor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: no server found: %v\n", err)
			return 1
		}
		baseURL = found
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	api := client.NewAPI(baseURL, httpClient)
	shell := interactive.New(baseURL, api, os.Stdout)

	if *timerID != "" {
		if err := shell.Attach(ctx, *timerID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: attach %s: %v\n", *timerID, err)
			return 1
		}
	}

	if err := shell.Run(ctx, cancel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// discover browses for the first habitflow server and returns its base URL.
func discover(ctx context.Context, timeout time.Duration) (string, error) {
	log.Printf("Browsing for %s.%s (%s)...", discovery.ServiceType, discovery.Domain, timeout)

	cfg := discovery.DefaultBrowserConfig()
	cfg.BrowseTimeout = timeout
	browser := discovery.NewBrowser(cfg)
	defer browser.Stop()

	svc, err := browser.FindFirst(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("Found %s at %s (version %s)", svc.InstanceName, svc.BaseURL(), svc.Version)
	return svc.BaseURL(), nil
}
