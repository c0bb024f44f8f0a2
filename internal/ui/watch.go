package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/asuslink"
)

// WatchSnapshot is one refresh worth of router state for the watch view.
// Fields stay nil when the corresponding fetch failed; Stale marks
// snapshots where at least one category came from an expired cache.
type WatchSnapshot struct {
	Identity  asuslink.DeviceIdentity
	WAN       *asuslink.WANStatus
	Network   *asuslink.NetworkStats
	Clients   *asuslink.ClientList
	Temps     *asuslink.Temperature
	Stale     bool
	FetchedAt time.Time
}

// SnapshotFunc fetches a fresh snapshot. Called off the UI goroutine.
type SnapshotFunc func(ctx context.Context) (*WatchSnapshot, error)

type snapshotMsg struct {
	snapshot *WatchSnapshot
	err      error
}

type refreshTickMsg time.Time

// WatchModel is the bubbletea model behind "asuslink watch": a
// periodically refreshing dashboard of WAN state, traffic rates and the
// client list.
type WatchModel struct {
	fetch    SnapshotFunc
	interval time.Duration

	spin    spinner.Model
	loading bool

	snapshot *WatchSnapshot
	previous *WatchSnapshot
	err      error

	width  int
	height int

	quitting bool
}

// NewWatchModel creates a watch model refreshing at the given interval.
func NewWatchModel(fetch SnapshotFunc, interval time.Duration) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()

	return WatchModel{
		fetch:    fetch,
		interval: interval,
		spin:     sp,
		loading:  true,
		width:    width,
		height:   height,
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchCmd())
}

func (m WatchModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		snapshot, err := fetch(ctx)
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}

func (m WatchModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.loading {
				m.loading = true
				return m, tea.Batch(m.spin.Tick, m.fetchCmd())
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		m.height = msg.Height

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.previous = m.snapshot
			m.snapshot = msg.snapshot
		}
		return m, m.scheduleRefresh()

	case refreshTickMsg:
		m.loading = true
		return m, tea.Batch(m.spin.Tick, m.fetchCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.snapshot == nil {
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(ErrorMessageStyle.Render("  " + FailureMarker + " " + m.err.Error()))
			b.WriteString("\n")
		} else {
			b.WriteString("\n  " + m.spin.View() + " Connecting...\n")
		}
		b.WriteString("\n" + MutedStyle.Render("  q quit · r refresh"))
		return b.String()
	}

	b.WriteString(m.renderWAN())
	b.WriteString(m.renderTraffic())
	b.WriteString(m.renderClients())
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m WatchModel) renderHeader() string {
	title := "ASUS Router"
	params := map[string]string{}
	if m.snapshot != nil {
		id := m.snapshot.Identity
		if id.Model != "" {
			title = id.Model
		}
		if id.Firmware.Major != "" {
			params["Firmware"] = id.Firmware.String()
		}
		if id.MAC != "" {
			params["MAC"] = id.MAC
		}
	}
	return NewHeader(title, "asuslink watch", params).SetWidth(m.width).Render()
}

func (m WatchModel) renderWAN() string {
	if m.snapshot.WAN == nil {
		return ""
	}
	wan := m.snapshot.WAN

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SectionTitleStyle.Render("WAN"))
	b.WriteString("\n")

	var state string
	if wan.Connected {
		state = OnlineStyle.Render(OnlineMarker + " connected")
	} else {
		state = ErrorMessageStyle.Render(OfflineMarker + " " + wan.Status)
	}
	b.WriteString(fmt.Sprintf("    %s", state))
	if wan.IPAddress != "" {
		b.WriteString(MutedStyle.Render("  ip "))
		b.WriteString(wan.IPAddress)
	}
	if wan.Gateway != "" {
		b.WriteString(MutedStyle.Render("  gw "))
		b.WriteString(wan.Gateway)
	}
	if wan.Protocol != "" {
		b.WriteString(MutedStyle.Render("  via "))
		b.WriteString(wan.Protocol)
	}
	b.WriteString("\n")
	return b.String()
}

func (m WatchModel) renderTraffic() string {
	if m.snapshot.Network == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SectionTitleStyle.Render("Traffic"))
	b.WriteString("\n")

	names := make([]string, 0, len(m.snapshot.Network.Interfaces))
	for name := range m.snapshot.Network.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		counters := m.snapshot.Network.Interfaces[name]
		line := fmt.Sprintf("    %-8s rx %-10s tx %-10s",
			name, formatBytes(counters.RxBytes), formatBytes(counters.TxBytes))

		// Rates need two samples of the same interface.
		if rates, ok := m.rates(name, counters); ok {
			line += MutedStyle.Render(fmt.Sprintf("  ↓ %s/s  ↑ %s/s",
				formatBytes(rates.RxBytes), formatBytes(rates.TxBytes)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// rates derives per-second byte rates from the previous snapshot.
func (m WatchModel) rates(name string, current asuslink.TrafficCounters) (asuslink.TrafficCounters, bool) {
	if m.previous == nil || m.previous.Network == nil {
		return asuslink.TrafficCounters{}, false
	}
	prev, ok := m.previous.Network.Interfaces[name]
	if !ok {
		return asuslink.TrafficCounters{}, false
	}
	elapsed := m.snapshot.FetchedAt.Sub(m.previous.FetchedAt).Seconds()
	if elapsed <= 0 {
		return asuslink.TrafficCounters{}, false
	}
	rx := current.RxBytes - prev.RxBytes
	tx := current.TxBytes - prev.TxBytes
	if rx < 0 || tx < 0 {
		// Counter reset (reboot or 32-bit rollover).
		return asuslink.TrafficCounters{}, false
	}
	return asuslink.TrafficCounters{
		RxBytes: int64(float64(rx) / elapsed),
		TxBytes: int64(float64(tx) / elapsed),
	}, true
}

func (m WatchModel) renderClients() string {
	if m.snapshot.Clients == nil {
		return ""
	}

	clients := make([]asuslink.ClientInfo, 0, len(m.snapshot.Clients.Clients))
	for _, client := range m.snapshot.Clients.Clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Online != clients[j].Online {
			return clients[i].Online
		}
		return clientLabel(clients[i]) < clientLabel(clients[j])
	})

	online := 0
	for _, client := range clients {
		if client.Online {
			online++
		}
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(SectionTitleStyle.Render(fmt.Sprintf("Clients (%d online / %d known)", online, len(clients))))
	b.WriteString("\n")

	// Cap the list to what fits; the header and sections above take
	// roughly 14 rows.
	maxRows := m.height - 14
	if maxRows < 5 {
		maxRows = 5
	}

	shown := 0
	for _, client := range clients {
		if shown >= maxRows {
			b.WriteString(MutedStyle.Render(fmt.Sprintf("    … and %d more\n", len(clients)-shown)))
			break
		}
		b.WriteString(m.renderClientLine(client))
		b.WriteString("\n")
		shown++
	}
	return b.String()
}

func (m WatchModel) renderClientLine(client asuslink.ClientInfo) string {
	var marker string
	if client.Online {
		marker = OnlineStyle.Render(OnlineMarker)
	} else {
		marker = OfflineStyle.Render(OfflineMarker)
	}

	label := clientLabel(client)
	if len(label) > 24 {
		label = label[:23] + "…"
	}

	line := fmt.Sprintf("    %s %-24s %-17s %-15s %-6s",
		marker, label, client.MAC, client.IP, string(client.Connection))

	if client.RSSI != nil {
		line += MutedStyle.Render(fmt.Sprintf(" %4d dBm", *client.RSSI))
	}
	if client.Blocked {
		line += "  " + BlockedStyle.Render("blocked")
	}
	return line
}

func clientLabel(client asuslink.ClientInfo) string {
	if client.Name != "" {
		return client.Name
	}
	if client.Vendor != "" {
		return client.Vendor
	}
	return client.MAC
}

func (m WatchModel) renderFooter() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.snapshot.Temps != nil {
		var parts []string
		if m.snapshot.Temps.CPU != nil {
			parts = append(parts, fmt.Sprintf("cpu %.1f°C", *m.snapshot.Temps.CPU))
		}
		if m.snapshot.Temps.WLAN2G != nil {
			parts = append(parts, fmt.Sprintf("2ghz %.1f°C", *m.snapshot.Temps.WLAN2G))
		}
		if m.snapshot.Temps.WLAN5G != nil {
			parts = append(parts, fmt.Sprintf("5ghz %.1f°C", *m.snapshot.Temps.WLAN5G))
		}
		if len(parts) > 0 {
			b.WriteString(MutedStyle.Render("  " + strings.Join(parts, "  ")))
			b.WriteString("\n")
		}
	}

	status := fmt.Sprintf("  updated %s", m.snapshot.FetchedAt.Format("15:04:05"))
	if m.snapshot.Stale {
		status += "  " + StaleStyle.Render("(stale)")
	}
	if m.loading {
		status += "  " + m.spin.View()
	}
	if m.err != nil {
		status += "  " + ErrorMessageStyle.Render("refresh failed: "+m.err.Error())
	}
	b.WriteString(MutedStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render("  q quit · r refresh"))
	return b.String()
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
