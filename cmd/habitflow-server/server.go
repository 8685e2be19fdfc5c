package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/habitflow/habitflow-go/cmd/habitflow-server/api"
	"github.com/habitflow/habitflow-go/pkg/clock"
	"github.com/habitflow/habitflow-go/pkg/discovery"
	"github.com/habitflow/habitflow-go/pkg/gateway"
	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// maxPeerTimeout bounds the ?timeout= parameter of /api/v1/peers.
const maxPeerTimeout = 30 * time.Second

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Config
	Version string

	// Clock overrides the wall clock. Tests use clock.Fake.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server wires the store, the timer engine and the gateway behind one mux.
type Server struct {
	config ServerConfig
	mux    *http.ServeMux
	server *http.Server
	logger *slog.Logger

	store       *store.SQLiteStore
	registry    *timer.Registry
	handler     *timer.Handler
	broadcaster *timer.Broadcaster
	gateway     *gateway.Gateway
	timersAPI   *api.TimersAPI

	fileLogger *log.FileLogger
	advertiser *discovery.Advertiser

	closeOnce sync.Once
	closeErr  error
}

// NewServer creates a new server with the given configuration.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	events := []log.Logger{log.NewSlogAdapter(logger)}
	var fileLogger *log.FileLogger
	if cfg.EventLog != "" {
		fileLogger, err = log.NewFileLogger(cfg.EventLog)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		events = append(events, fileLogger)
	}
	eventLogger := log.NewMultiLogger(events...)

	registry := timer.NewRegistry(timer.RegistryConfig{
		Clock:       cfg.Clock,
		Logger:      logger,
		EventLogger: eventLogger,
	})
	handler := timer.NewHandler(registry, timer.HandlerConfig{
		Store:          st,
		Logger:         logger,
		EventLogger:    eventLogger,
		PersistTimeout: cfg.PersistTimeout,
	})
	broadcaster := timer.NewBroadcaster(registry, timer.BroadcasterConfig{
		Interval: cfg.TickInterval,
		Logger:   logger,
	})
	gw := gateway.New(gateway.Config{
		Registry:    registry,
		Handler:     handler,
		Broadcaster: broadcaster,
		Definitions: st,
		SendTimeout: cfg.SendTimeout,
		QueueSize:   cfg.QueueSize,
		Logger:      logger,
		EventLogger: eventLogger,
	})

	timersAPI := api.NewTimersAPI(st, registry, handler, broadcaster)
	timersAPI.SetEventLogger(eventLogger)

	s := &Server{
		config:      cfg,
		mux:         http.NewServeMux(),
		logger:      logger,
		store:       st,
		registry:    registry,
		handler:     handler,
		broadcaster: broadcaster,
		gateway:     gw,
		timersAPI:   timersAPI,
		fileLogger:  fileLogger,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/info", s.handleInfo)

	s.mux.HandleFunc("/api/v1/timers", s.timersAPI.HandleTimers)
	s.mux.HandleFunc("/api/v1/timers/active", s.timersAPI.HandleActive)
	s.mux.HandleFunc("/api/v1/timers/{id}", s.timersAPI.HandleTimerByID)
	s.mux.HandleFunc("/api/v1/timers/{id}/commands", s.timersAPI.HandleCommand)

	s.mux.HandleFunc("/api/v1/peers", s.handlePeers)

	s.mux.Handle("GET "+gateway.PathPrefix+"{id}", s.gateway)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

// handleInfo returns server information.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defs, _ := s.store.List(r.Context())

	writeJSON(w, http.StatusOK, map[string]int{
		"timer_count":  len(defs),
		"active_count": s.registry.Len(),
		"connections":  s.gateway.ConnectionCount(),
	})
}

// handlePeers browses for other habitflow servers on the local network.
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	timeout := discovery.BrowseTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid timeout",
			})
			return
		}
		timeout = min(d, maxPeerTimeout)
	}

	browser := discovery.NewBrowser(discovery.BrowserConfig{BrowseTimeout: timeout})
	defer browser.Stop()

	peers, err := browser.FindAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if peers == nil {
		peers = []*discovery.Service{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"peers": peers,
		"total": len(peers),
	})
}

// ListenAndServe listens on the configured address and serves requests.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called. The server is
// advertised over mDNS while it serves when MDNS is set.
func (s *Server) Serve(ln net.Listener) error {
	if s.config.MDNS {
		if err := s.advertise(ln.Addr()); err != nil {
			s.logger.Warn("mDNS advertisement failed", slog.String("error", err.Error()))
		}
	}

	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) advertise(addr net.Addr) error {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return err
	}

	adv := discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
	err = adv.Advertise(context.Background(), &discovery.ServiceInfo{
		InstanceName: s.config.MDNSName,
		Port:         uint16(port),
		Version:      s.config.Version,
		ServerName:   s.config.MDNSName,
	})
	if err != nil {
		return err
	}
	s.advertiser = adv
	s.logger.Info("advertising over mDNS",
		slog.String("service", discovery.ServiceType),
		slog.Uint64("port", port))
	return nil
}

// Shutdown stops accepting requests, closes every push connection and
// releases resources. In-flight duration writes finish before the store
// is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.advertiser != nil {
			s.advertiser.Stop()
		}

		// Hijacked WebSocket connections are not tracked by http.Server.
		gwErr := s.gateway.Close()
		httpErr := s.server.Shutdown(ctx)

		s.broadcaster.Stop()
		s.handler.Wait()

		var fileErr error
		if s.fileLogger != nil {
			fileErr = s.fileLogger.Close()
		}
		s.closeErr = errors.Join(gwErr, httpErr, fileErr, s.store.Close())
	})
	return s.closeErr
}

// Close shuts the server down without a deadline.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
