package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "azruntime",
		Short: "Show how long each Azure VM has been running or deallocated",
		Long: `azruntime - time in state for Azure virtual machines

azruntime lists every VM in your subscriptions together with how long it
has been in its current power state, worked out from the activity log.
Long-running VMs are highlighted so forgotten machines stand out.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "azruntime %s\n", version)
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.SetVersionTemplate(`azruntime {{.Version}}
`)
}
