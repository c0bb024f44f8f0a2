// Asuslink is a command line client for ASUS routers.
//
// It talks to the router's web service over HTTP(S), using the same
// endpoints the stock mobile app uses. It provides router discovery,
// status and client queries, parental-control blocking, and a live
// terminal dashboard.
//
// Usage:
//
//	asuslink [command] [flags]
//
// See 'asuslink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/asuslink/internal/logging"
	"github.com/muurk/asuslink/internal/version"
)

func main() {
	_ = logging.InitializeFromEnv()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "asuslink",
	Short: "ASUS router command line client",
	Long: `A command line client for ASUS routers.

Talks to the router's web service over HTTP(S) to query connected
clients, WAN state, traffic and temperatures, to block devices via
parental control, and to watch the router live in the terminal.

The router password is read from the ASUSLINK_PASSWORD environment
variable, or prompted when not set. Passwords are never written to the
configuration file.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("asuslink %s\n", version.Full())
		fmt.Printf("  built with %s for %s\n", info.Go, info.Platform)
	},
}
