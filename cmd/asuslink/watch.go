package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/asuslink"
	"github.com/muurk/asuslink/internal/ui"
)

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live router dashboard in the terminal",
	Long: `Watch the router live: WAN state, per-interface traffic with
rates, the client list and temperatures, refreshing periodically.

Press q to quit, r to refresh immediately.`,
	Example: `  asuslink watch --host 192.168.1.1
  asuslink watch --profile home --interval 5`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 10, "Refresh interval in seconds")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	fetch := func(ctx context.Context) (*ui.WatchSnapshot, error) {
		snapshot := &ui.WatchSnapshot{
			Identity:  client.Identity(),
			FetchedAt: time.Now(),
		}

		// WAN is the one category a dashboard is useless without; the
		// rest degrade to hidden sections.
		wanRecord, err := client.GetData(ctx, asuslink.CategoryWAN, false)
		if err != nil {
			return nil, err
		}
		if wan, ok := wanRecord.Data.(*asuslink.WANStatus); ok {
			snapshot.WAN = wan
		}
		snapshot.Stale = wanRecord.Stale

		if record, err := client.GetData(ctx, asuslink.CategoryNetwork, false); err == nil {
			if network, ok := record.Data.(*asuslink.NetworkStats); ok {
				snapshot.Network = network
			}
			snapshot.Stale = snapshot.Stale || record.Stale
		}
		if record, err := client.GetData(ctx, asuslink.CategoryClients, false); err == nil {
			if clients, ok := record.Data.(*asuslink.ClientList); ok {
				snapshot.Clients = clients
			}
			snapshot.Stale = snapshot.Stale || record.Stale
		}
		if record, err := client.GetData(ctx, asuslink.CategoryTemperature, false); err == nil {
			if temps, ok := record.Data.(*asuslink.Temperature); ok {
				snapshot.Temps = temps
			}
		}

		return snapshot, nil
	}

	model := ui.NewWatchModel(fetch, time.Duration(watchInterval)*time.Second)
	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}
