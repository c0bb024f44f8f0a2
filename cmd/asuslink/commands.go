package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/asuslink"
	"github.com/muurk/asuslink/internal/config"
	"github.com/muurk/asuslink/internal/discovery"
	"github.com/muurk/asuslink/internal/ui"
)

// Connection flags shared across device commands
var (
	hostFlag     string
	portFlag     int
	usernameFlag string
	profileFlag  string
	useTLSFlag   bool
	insecureFlag bool
	timeoutFlag  int

	scanTimeout  int
	outputFormat string
	forceRefresh bool
	confirmFlag  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Router hostname or IP address")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Router web service port (default 80, or 8443 with --tls)")
	rootCmd.PersistentFlags().StringVarP(&usernameFlag, "username", "u", "", "Web UI username (default \"admin\")")
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "Saved profile to use")
	rootCmd.PersistentFlags().BoolVar(&useTLSFlag, "tls", false, "Connect over HTTPS")
	rootCmd.PersistentFlags().BoolVar(&insecureFlag, "insecure", false, "Skip TLS certificate verification (self-signed routers)")
	rootCmd.PersistentFlags().IntVar(&timeoutFlag, "timeout", 0, "Request timeout in seconds")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(profileCmd)
}

// commandContext returns a context cancelled on Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// scanCmd discovers routers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for ASUS routers on the network",
	Long: `Scan for ASUS routers using mDNS/DNS-SD discovery.

Routers advertise their web UI on the local network with a hostname
derived from the model name. This command lists all matches with their
addresses.`,
	Example: `  # Scan for 10 seconds (default)
  asuslink scan

  # Quick 3-second scan
  asuslink scan --scan-timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for ASUS routers (timeout: %ds)...\n\n", scanTimeout)

	routers, err := discovery.ScanForRouters(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(routers) == 0 {
		fmt.Println("No routers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - mDNS is often disabled on guest networks and VLANs")
		fmt.Println("  - Try increasing --scan-timeout for slower networks")
		fmt.Println("  - Use --host to specify the router address manually")
		return nil
	}

	fmt.Printf("Found %d router(s):\n\n", len(routers))
	for i, router := range routers {
		fmt.Printf("%d. %s\n", i+1, router.Model)
		fmt.Printf("   Hostname: %s\n", router.Hostname)
		fmt.Printf("   Address:  %s:%d\n", router.IP, router.Port)
		fmt.Println()
	}

	fmt.Println("Use 'asuslink status --host <ip>' to connect")
	return nil
}

// statusCmd shows the router identity and WAN state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show router identity and WAN state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	identity := client.Identity()
	params := map[string]string{}
	if identity.Firmware.Major != "" {
		params["Firmware"] = fmt.Sprintf("%s (%s)", identity.Firmware, identity.Firmware.Type)
	}
	if identity.MAC != "" {
		params["MAC"] = identity.MAC
	}
	title := identity.Model
	if title == "" {
		title = "ASUS Router"
	}
	fmt.Println(ui.NewHeader(title, "asuslink status", params).Render())
	fmt.Println()

	wan, err := client.GetWAN(ctx)
	if err != nil {
		return fmt.Errorf("failed to read WAN state: %w", err)
	}

	if wan.Connected {
		fmt.Printf("  WAN: %s connected", ui.OnlineStyle.Render(ui.OnlineMarker))
	} else {
		fmt.Printf("  WAN: %s %s", ui.ErrorMessageStyle.Render(ui.OfflineMarker), wan.Status)
	}
	if wan.IPAddress != "" {
		fmt.Printf("  ip %s", wan.IPAddress)
	}
	if wan.Gateway != "" {
		fmt.Printf("  gw %s", wan.Gateway)
	}
	if wan.Protocol != "" {
		fmt.Printf("  via %s", wan.Protocol)
	}
	fmt.Println()
	if len(wan.DNS) > 0 {
		fmt.Printf("  DNS: %s\n", strings.Join(wan.DNS, ", "))
	}

	return nil
}

// getCmd fetches a raw data category
var getCmd = &cobra.Command{
	Use:   "get <category>",
	Short: "Fetch a data category",
	Long: `Fetch one data category from the router and print it.

Available categories: ` + categoryList() + `

Records are cached briefly on the client; use --force to bypass the
cache. Output marked "stale" was served from an expired cache because
the router could not be reached.`,
	Example: `  asuslink get wan --host 192.168.1.1
  asuslink get clients --format json
  asuslink get temperature --force`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVar(&outputFormat, "format", "json", "Output format (json, compact)")
	getCmd.Flags().BoolVar(&forceRefresh, "force", false, "Bypass the client-side cache")
}

func categoryList() string {
	names := make([]string, 0)
	for _, category := range asuslink.Categories() {
		names = append(names, category.String())
	}
	return strings.Join(names, ", ")
}

func runGet(cmd *cobra.Command, args []string) error {
	category, err := asuslink.ParseCategory(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	record, err := client.GetData(ctx, category, forceRefresh)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", category, err)
	}

	var data []byte
	if outputFormat == "compact" {
		data, err = json.Marshal(record.Data)
	} else {
		data, err = json.MarshalIndent(record.Data, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	fmt.Println(string(data))

	if record.Stale {
		fmt.Fprintln(os.Stderr, ui.StaleStyle.Render("warning: stale data (router unreachable, served from cache)"))
	} else if record.Partial {
		fmt.Fprintln(os.Stderr, ui.MutedStyle.Render("note: partial data (some endpoints failed)"))
	}
	return nil
}

// clientsCmd lists devices known to the router
var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List devices known to the router",
	RunE:  runClients,
}

func runClients(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	list, err := client.GetClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch clients: %w", err)
	}

	clients := make([]asuslink.ClientInfo, 0, len(list.Clients))
	for _, entry := range list.Clients {
		clients = append(clients, entry)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Online != clients[j].Online {
			return clients[i].Online
		}
		return clients[i].MAC < clients[j].MAC
	})

	fmt.Printf("%-3s %-24s %-17s %-15s %-6s %s\n", "", "NAME", "MAC", "IP", "LINK", "")
	for _, entry := range clients {
		marker := ui.OfflineStyle.Render(ui.OfflineMarker)
		if entry.Online {
			marker = ui.OnlineStyle.Render(ui.OnlineMarker)
		}
		name := entry.Name
		if name == "" {
			name = entry.Vendor
		}
		note := ""
		if entry.Blocked {
			note = ui.BlockedStyle.Render("blocked")
		}
		fmt.Printf("%-3s %-24s %-17s %-15s %-6s %s\n",
			marker, name, entry.MAC, entry.IP, string(entry.Connection), note)
	}
	return nil
}

// blockCmd cuts a device's internet access
var blockCmd = &cobra.Command{
	Use:   "block <mac>",
	Short: "Block a device's internet access",
	Long: `Add a parental-control block rule for the device and apply the
firewall. The device stays associated with the router but loses
internet access.`,
	Example: `  asuslink block AA:BB:CC:DD:EE:FF --host 192.168.1.1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBlock(args[0], true)
	},
}

// unblockCmd restores a device's internet access
var unblockCmd = &cobra.Command{
	Use:   "unblock <mac>",
	Short: "Restore a device's internet access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBlock(args[0], false)
	},
}

func runBlock(mac string, block bool) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if block {
		err = client.BlockClient(ctx, mac)
	} else {
		err = client.UnblockClient(ctx, mac)
	}
	if err != nil {
		return err
	}

	if block {
		fmt.Printf("%s %s blocked\n", ui.OnlineStyle.Render(ui.SuccessMarker), mac)
	} else {
		fmt.Printf("%s %s unblocked\n", ui.OnlineStyle.Render(ui.SuccessMarker), mac)
	}
	return nil
}

// rebootCmd restarts the router
var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot the router",
	Long: `Reboot the router. The router is unreachable for one to two
minutes while it restarts; all clients briefly lose connectivity.`,
	RunE: runReboot,
}

func init() {
	rebootCmd.Flags().BoolVarP(&confirmFlag, "yes", "y", false, "Skip the confirmation prompt")
}

func runReboot(cmd *cobra.Command, args []string) error {
	if !confirmFlag {
		fmt.Print("Reboot the router? All clients will briefly lose connectivity. [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if err := client.Reboot(ctx); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}
	fmt.Printf("%s Reboot requested. The router will be back in a minute or two.\n",
		ui.OnlineStyle.Render(ui.SuccessMarker))
	return nil
}

// profileCmd manages saved connection profiles
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved connection profiles",
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if len(registry.Profiles) == 0 {
			fmt.Println("No profiles saved. Use 'asuslink profile save <name> --host <ip>'.")
			return nil
		}

		names := make([]string, 0, len(registry.Profiles))
		for name := range registry.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		defaultName := ""
		if registry.Preferences != nil {
			defaultName = registry.Preferences.DefaultProfile
		}
		for _, name := range names {
			profile := registry.Profiles[name]
			line := fmt.Sprintf("%-16s %s@%s", name, profile.Username, profile.Host)
			if profile.LastKnownModel != "" {
				line += fmt.Sprintf("  (%s)", profile.LastKnownModel)
			}
			if name == defaultName {
				line += "  [default]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current connection flags as a profile",
	Example: `  asuslink profile save home --host 192.168.1.1 --username admin
  asuslink profile save home --host 192.168.1.1 --tls --insecure`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hostFlag == "" {
			return fmt.Errorf("--host is required to save a profile")
		}
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		profile := registry.EnsureProfile(args[0])
		profile.Host = hostFlag
		if portFlag > 0 {
			profile.Port = portFlag
		}
		if usernameFlag != "" {
			profile.Username = usernameFlag
		}
		profile.UseTLS = useTLSFlag
		profile.InsecureSkipVerify = insecureFlag
		if timeoutFlag > 0 {
			profile.TimeoutSeconds = timeoutFlag
		}

		if registry.Preferences != nil && registry.Preferences.DefaultProfile == "" {
			registry.Preferences.DefaultProfile = args[0]
		}

		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Profile %q saved.\n", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if registry.GetProfile(args[0]) == nil {
			return fmt.Errorf("unknown profile %q", args[0])
		}
		delete(registry.Profiles, args[0])
		if registry.Preferences != nil && registry.Preferences.DefaultProfile == args[0] {
			registry.Preferences.DefaultProfile = ""
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Profile %q removed.\n", args[0])
		return nil
	},
}
