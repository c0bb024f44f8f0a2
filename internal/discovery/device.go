package discovery

import (
	"fmt"
	"time"
)

// Router represents a discovered ASUS router on the network
type Router struct {
	// Model is the model prefix taken from the hostname (e.g. "RT-AX88U")
	Model string

	// Hostname is the mDNS hostname (e.g. "RT-AX88U-1A2B.local")
	Hostname string

	// IP is the IPv4 address (e.g. "192.168.1.1")
	IP string

	// Port is the web UI port (typically 80)
	Port int

	// Metadata contains additional mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the router was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the router
func (r *Router) String() string {
	return fmt.Sprintf("ASUS %s (%s) at %s:%d", r.Model, r.Hostname, r.IP, r.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Router) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
