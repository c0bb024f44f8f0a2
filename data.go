package asuslink

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a class of router data that can be requested from
// the client. The set is closed: the mapping from a category to concrete
// firmware endpoints lives in the endpoint table and varies with
// firmware, the categories themselves do not.
type Category int

const (
	// CategoryClients is the list of devices known to the router.
	CategoryClients Category = iota
	// CategoryNetwork is per-interface traffic counters.
	CategoryNetwork
	// CategoryWAN is the upstream connection state.
	CategoryWAN
	// CategorySysinfo is extended system information (Merlin only).
	CategorySysinfo
	// CategoryFirmware is the installed and available firmware versions.
	CategoryFirmware
	// CategoryParentalControl is the parental-control rule set.
	CategoryParentalControl
	// CategoryTemperature is the CPU and radio temperature sensors.
	CategoryTemperature

	categoryCount // sentinel, keep last
)

var categoryNames = map[Category]string{
	CategoryClients:         "clients",
	CategoryNetwork:         "network",
	CategoryWAN:             "wan",
	CategorySysinfo:         "sysinfo",
	CategoryFirmware:        "firmware",
	CategoryParentalControl: "parental_control",
	CategoryTemperature:     "temperature",
}

// String returns the canonical lowercase name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// valid reports whether c is a member of the closed category set.
func (c Category) valid() bool {
	return c >= 0 && c < categoryCount
}

// Categories returns all known categories in declaration order.
func Categories() []Category {
	all := make([]Category, 0, int(categoryCount))
	for c := Category(0); c < categoryCount; c++ {
		all = append(all, c)
	}
	return all
}

// ParseCategory resolves a canonical category name. Matching is
// case-insensitive and accepts dashes for underscores.
func ParseCategory(name string) (Category, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for category, canonical := range categoryNames {
		if canonical == normalized {
			return category, nil
		}
	}
	return 0, newError(KindUnsupportedData, fmt.Sprintf("unknown data category %q", name), nil)
}

// ConnectionType describes how a client is attached to the router.
type ConnectionType string

const (
	ConnectionWired   ConnectionType = "wired"
	ConnectionWLAN2G  ConnectionType = "2ghz"
	ConnectionWLAN5G  ConnectionType = "5ghz"
	ConnectionWLAN5G2 ConnectionType = "5ghz2"
	ConnectionWLAN6G  ConnectionType = "6ghz"
	ConnectionUnknown ConnectionType = "unknown"
)

// ClientInfo is one device known to the router. MAC is always
// populated; every other field is best-effort and keeps its zero value
// when the firmware did not report it or the raw value could not be
// parsed.
type ClientInfo struct {
	MAC        string
	IP         string
	Name       string
	Vendor     string
	Online     bool
	Connection ConnectionType
	RSSI       *int
	// Blocked mirrors the parental-control internet state for the MAC.
	Blocked bool
}

// ClientList is the normalized record for CategoryClients.
type ClientList struct {
	// Clients is keyed by canonical MAC address.
	Clients map[string]ClientInfo
}

// TrafficCounters is a single interface's byte counters.
type TrafficCounters struct {
	RxBytes int64
	TxBytes int64
}

// NetworkStats is the normalized record for CategoryNetwork: traffic
// counters keyed by interface group (wan, wired, 2ghz, 5ghz, ...).
type NetworkStats struct {
	Interfaces map[string]TrafficCounters
}

// WANStatus is the normalized record for CategoryWAN.
type WANStatus struct {
	Connected bool
	Status    string
	IPAddress string
	Gateway   string
	Mask      string
	DNS       []string
	Protocol  string
}

// WLANStats is per-band client accounting from the sysinfo page.
type WLANStats struct {
	Associated    int
	Authorized    int
	Authenticated int
}

// Sysinfo is the normalized record for CategorySysinfo.
type Sysinfo struct {
	WLAN        map[string]WLANStats
	ConnTotal   *int
	ConnActive  *int
	LoadAverage []float64
}

// FirmwareInfo is the normalized record for CategoryFirmware.
type FirmwareInfo struct {
	Current         Firmware
	Available       *Firmware
	UpdateAvailable bool
}

// ParentalControlRule is a single MAC-based rule.
type ParentalControlRule struct {
	MAC  string
	Name string
	// Type is the firmware rule type: "block" (disable internet) or
	// "time" (scheduled access).
	Type string
}

// ParentalControl is the normalized record for CategoryParentalControl.
type ParentalControl struct {
	Enabled  bool
	BlockAll bool
	Rules    []ParentalControlRule
}

// Temperature is the normalized record for CategoryTemperature. Sensors
// the firmware does not expose stay nil.
type Temperature struct {
	CPU    *float64
	WLAN2G *float64
	WLAN5G *float64
}

// Record is the unit of data the caller observes: a normalized value for
// one category together with its retrieval metadata. Data holds one of
// the category record types (*ClientList, *WANStatus, ...).
type Record struct {
	Category  Category
	Data      any
	Timestamp time.Time

	// Stale marks a cached record returned past its freshness window
	// because every endpoint failed on re-fetch.
	Stale bool

	// Partial marks a record assembled from a subset of the category's
	// endpoints after per-endpoint failures.
	Partial bool
}
