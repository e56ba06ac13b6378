// Package cli implements the fuel command-line client using Cobra. Every
// completion goes through the client engine, so the CLI sees the same
// optimistic apply, conflict absorption and rollback as any other client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fuel",
		Short: "Earn and track Fuel Points from the terminal",
		Long: `fuel talks to the Fuel Points API as one player.

Configuration comes from the environment:
  FUEL_API_URL          API base URL (default http://localhost:3100)
  FUEL_TOKEN            player bearer token
  FUEL_TIMEZONE         zone that decides "today" (default: system zone)
  FUEL_RESYNC_DEBOUNCE  delay before refreshing after a change (default 300ms)

The --api-url, --timezone and --verbose flags override their variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api-url", "", "API base URL (overrides FUEL_API_URL)")
	root.PersistentFlags().String("timezone", "", "IANA zone that decides today (overrides FUEL_TIMEZONE)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log engine transitions to stderr")
	root.AddCommand(
		newStateCmd(),
		newBoostsCmd(),
		newBoostCmd(),
		newReassessCmd(),
		newChallengeCmd(),
		newCustomCmd(),
		newQuestCmd(),
		newWatchCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	root := NewRootCmd()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
