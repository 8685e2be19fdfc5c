package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every server setting. The YAML file is read first and
// flags that were set explicitly override it.
type Config struct {
	Addr           string        `yaml:"addr"`
	DBPath         string        `yaml:"db"`
	TickInterval   time.Duration `yaml:"tick"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	QueueSize      int           `yaml:"queue_size"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	EventLog       string        `yaml:"event_log"`
	MDNS           bool          `yaml:"mdns"`
	MDNSName       string        `yaml:"mdns_name"`
	LogLevel       string        `yaml:"log_level"`
}

// DefaultConfig returns the settings used when neither file nor flags
// say otherwise.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "./habitflow.db",
		TickInterval:   time.Second,
		SendTimeout:    5 * time.Second,
		QueueSize:      16,
		PersistTimeout: 5 * time.Second,
		LogLevel:       "info",
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db must not be empty")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.TickInterval)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("send_timeout must be positive, got %s", c.SendTimeout)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// options are the parsed command line switches.
type options struct {
	config      Config
	configPath  string
	showVersion bool
}

// parseFlags parses args into options. The config file named by -config
// is loaded before explicit flags are applied.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("habitflow-server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	def := DefaultConfig()
	var (
		configPath     = fs.String("config", "", "YAML config file")
		addr           = fs.String("addr", def.Addr, "HTTP listen address")
		dbPath         = fs.String("db", def.DBPath, "SQLite database path")
		tick           = fs.Duration("tick", def.TickInterval, "Broadcast tick interval")
		sendTimeout    = fs.Duration("send-timeout", def.SendTimeout, "Write deadline for one snapshot")
		queueSize      = fs.Int("queue", def.QueueSize, "Per-connection outbound queue size")
		persistTimeout = fs.Duration("persist-timeout", def.PersistTimeout, "Timeout for persisting a set duration")
		eventLog       = fs.String("event-log", "", "Write protocol events to this .tlog file")
		mdns           = fs.Bool("mdns", false, "Advertise the server over mDNS")
		mdnsName       = fs.String("mdns-name", "", "mDNS instance name (default habitflow-<hostname>)")
		logLevel       = fs.String("log-level", def.LogLevel, "Log level: debug, info, warn, error")
		showVersion    = fs.Bool("version", false, "Show version information")
	)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return options{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "tick":
			cfg.TickInterval = *tick
		case "send-timeout":
			cfg.SendTimeout = *sendTimeout
		case "queue":
			cfg.QueueSize = *queueSize
		case "persist-timeout":
			cfg.PersistTimeout = *persistTimeout
		case "event-log":
			cfg.EventLog = *eventLog
		case "mdns":
			cfg.MDNS = *mdns
		case "mdns-name":
			cfg.MDNSName = *mdnsName
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	return options{config: cfg, configPath: *configPath, showVersion: *showVersion}, nil
}
