package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sessiond",
		Short: "Session persistence service for the wallpaper site",
		Long: `sessiond runs and maintains the relational session store.

Configuration is read from the environment and an optional .env file.
The serve command exposes the admin API, metrics and health checks;
the remaining commands are one-shot maintenance tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		gcCmd(),
		statsCmd(),
		clearCmd(),
		migrateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
