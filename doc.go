// Package asuslink is a client for the HTTP(S) API of ASUS consumer
// routers, covering both stock firmware and the Merlin community fork.
//
// The client authenticates against the firmware's proprietary session
// model, retrieves device state through the vendor's assorted endpoints,
// normalizes it into stable typed records and dispatches control
// commands back to the device. It is designed to be consumed as a
// library by higher-level automation such as smart-home integrations.
//
// # Data Categories
//
// Data is requested per category, a firmware-independent identifier for
// a class of router state. The mapping from category to firmware
// endpoints is internal and varies with firmware type and version:
//   - CategoryClients: devices known to the router (MAC, IP, name, band)
//   - CategoryNetwork: per-interface traffic counters
//   - CategoryWAN: upstream connection state
//   - CategorySysinfo: extended system info (Merlin only)
//   - CategoryFirmware: installed and available firmware versions
//   - CategoryParentalControl: MAC-based access rules
//   - CategoryTemperature: CPU and radio sensors
//
// # Usage Example
//
//	client, err := asuslink.NewClient(asuslink.Config{
//	    Host:     "192.168.1.1",
//	    Username: "admin",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(ctx)
//
//	clients, err := client.GetClients(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for mac, c := range clients.Clients {
//	    fmt.Printf("%s %s %s\n", mac, c.IP, c.Name)
//	}
//
//	// Cut a device's internet access
//	if err := client.BlockClient(ctx, "AA:BB:CC:DD:EE:FF"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Degraded Results
//
// A category is usually backed by several endpoints. When some of them
// fail the returned Record is marked Partial; when all of them fail and
// a previous record exists it is returned marked Stale instead of an
// error. Callers that need strict freshness must check both flags.
//
// # Concurrency
//
// A Client is safe for concurrent use. Concurrent requests for the same
// category are coalesced onto one device fetch, and login is strictly
// serialized: concurrent operations during a renewal share the outcome
// of a single login request.
//
// # Errors
//
// All failures are *Error values categorized by ErrorKind, with
// IsAuthenticationError, IsConnectivityError and friends for matching.
// Command errors are distinct from connectivity errors so automation can
// tell a device rejection from an unreachable device.
package asuslink
