package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is advertised by every habitflow server.
	ServiceType = "_habitflow._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default HTTP port.
	DefaultPort = 8080
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyAPIPath = "api"
	TXTKeyWSPath  = "ws"
	TXTKeyName    = "name"
)

// Default paths carried in TXT records.
const (
	DefaultAPIPath = "/api/v1"
	DefaultWSPath  = "/timer/ws"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 5 * time.Second

	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrNotFound            = errors.New("service not found")
	ErrMissingRequired     = errors.New("missing required TXT field")
	ErrInstanceNameTooLong = errors.New("instance name too long")
)

// ServiceInfo is what a server advertises about itself.
type ServiceInfo struct {
	InstanceName string
	Port         uint16
	Version      string
	APIPath      string
	WSPath       string
	ServerName   string
}

// Service is a discovered habitflow server.
type Service struct {
	InstanceName string   `json:"instance_name"`
	Host         string   `json:"host"`
	Port         uint16   `json:"port"`
	Addresses    []string `json:"addresses"`
	Version      string   `json:"version"`
	APIPath      string   `json:"api_path"`
	WSPath       string   `json:"ws_path"`
	ServerName   string   `json:"server_name,omitempty"`
}

// BaseURL returns an http URL for the service, preferring the first
// resolved address over the host name.
func (s *Service) BaseURL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(int(s.Port))))
}
