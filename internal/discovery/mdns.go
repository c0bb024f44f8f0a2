package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type ASUS routers advertise their
	// web UI under
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for router discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default web UI port
	DefaultPort = 80
)

// modelPattern matches ASUS router hostnames, which carry the model name
// followed by a MAC suffix (e.g. "RT-AX88U-1A2B.local")
var modelPattern = regexp.MustCompile(`^((?:RT|GT|GS|TUF|DSL|ZenWiFi)[-_][A-Za-z0-9_-]+?)(?:-[0-9A-Fa-f]{4})?\.local\.?$`)

// Scanner handles mDNS router discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForRouters discovers all ASUS routers on the local network
// Returns a list of discovered routers or an error
func (s *Scanner) ScanForRouters() ([]*Router, error) {
	return s.ScanForRoutersWithContext(context.Background())
}

// ScanForRoutersWithContext discovers routers with a custom context
func (s *Scanner) ScanForRoutersWithContext(ctx context.Context) ([]*Router, error) {
	// Create a context with timeout
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	// Channel to receive service entries
	entries := make(chan *zeroconf.ServiceEntry)
	routers := make([]*Router, 0)

	// Start the resolver
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	// Browse for services in a goroutine
	go func() {
		for entry := range entries {
			router := s.parseServiceEntry(entry)
			if router != nil {
				routers = append(routers, router)
			}
		}
	}()

	// Start browsing for HTTP services
	err = resolver.Browse(ctx, ServiceType, ServiceDomain, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for context to complete (timeout or cancellation)
	<-ctx.Done()

	return routers, nil
}

// parseServiceEntry converts a zeroconf service entry to a Router
// Returns nil if the entry does not look like an ASUS router
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Router {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := modelPattern.FindStringSubmatch(hostname)
	if len(matches) < 2 {
		return nil
	}
	model := strings.ReplaceAll(matches[1], "_", "-")

	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}

	// Fallback to IPv6 if no IPv4
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}

	if ip == "" {
		return nil
	}

	// Get port (default to 80 if not specified)
	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// Parse TXT records into metadata
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		// TXT records are in "key=value" format
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			// Key without value
			metadata[parts[0]] = ""
		}
	}

	return &Router{
		Model:        model,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForRouters is a convenience function to scan with a custom timeout
func ScanForRouters(timeout time.Duration) ([]*Router, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.ScanForRouters()
}
