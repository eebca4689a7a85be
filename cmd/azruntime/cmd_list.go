package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/azruntime/internal/config"
	"github.com/yairfalse/azruntime/internal/telemetry"
	"github.com/yairfalse/azruntime/inventory"
	"github.com/yairfalse/azruntime/providers/azure"
	"github.com/yairfalse/azruntime/report"
)

var (
	listConfig        string
	listSubscriptions []string
	listOutput        string
	listColor         string
	listConcurrency   int
	listRunningOnly   bool
	listGroups        []string
	listExcludeGroups []string
	listLocations     []string
	listCredential    string
	listMetricsFile   string
	listLogLevel      string
	listDebug         bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List VMs with their time in state",
	Long: `List every VM in the visible subscriptions with its power state and
how long it has been in that state.

Time in state comes from the subscription activity log, which only reaches
back about 90 days. VMs whose last start or deallocation is older than that
are shown as "more than 89 observable days".`,
	Example: `  azruntime list                            # All subscriptions, colored table
  azruntime list --running-only             # Only running VMs
  azruntime list -s <subscription-id>       # One subscription
  azruntime list -g rg-web -g rg-api        # Only some resource groups
  azruntime list -o json                    # Machine-readable output
  azruntime list --credential cli           # Reuse the az login session`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listConfig, "config", "c", "", "Path to YAML config file")
	listCmd.Flags().StringSliceVarP(&listSubscriptions, "subscription", "s", nil, "Subscription id to include (repeatable)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format: table, json, csv")
	listCmd.Flags().StringVar(&listColor, "color", "auto", "Color mode: auto, always, never")
	listCmd.Flags().IntVar(&listConcurrency, "concurrency", 8, "Parallel VM lookups")
	listCmd.Flags().BoolVar(&listRunningOnly, "running-only", false, "Show only running VMs")
	listCmd.Flags().StringSliceVarP(&listGroups, "resource-group", "g", nil, "Only inspect these resource groups")
	listCmd.Flags().StringSliceVar(&listExcludeGroups, "exclude-resource-group", nil, "Skip these resource groups")
	listCmd.Flags().StringSliceVar(&listLocations, "location", nil, "Only inspect VMs in these locations")
	listCmd.Flags().StringVar(&listCredential, "credential", "default", "Credential: default, cli, browser")
	listCmd.Flags().StringVar(&listMetricsFile, "metrics-file", "", "Write pass metrics to this Prometheus textfile")
	listCmd.Flags().StringVar(&listLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	listCmd.Flags().BoolVar(&listDebug, "debug", false, "Enable debug logging")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}
	cfg, err := config.Load(listConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyListFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(os.Stderr, cfg.Log.Level, listDebug); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	lc := &ListCommand{
		Config:    cfg,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
		Color:     report.UseColor(cfg.Output.Color, os.Stdout),
		Progress:  report.IsTerminal(os.Stderr),
		Recorder:  tp,
		Tracer:    tp.Tracer(),
		NewSource: newAzureSource,
	}
	if err := lc.Run(ctx); err != nil {
		return err
	}

	if err := tp.WriteTextfile(); err != nil {
		log.Warn().Err(err).Msg("metrics textfile not written")
	}
	return nil
}

// applyListFlags lets explicitly set flags win over file and environment.
func applyListFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("subscription") {
		cfg.Azure.Subscriptions = listSubscriptions
	}
	if flags.Changed("credential") {
		cfg.Azure.Credential = listCredential
	}
	if flags.Changed("output") {
		cfg.Output.Format = listOutput
	}
	if flags.Changed("color") {
		cfg.Output.Color = listColor
	}
	if flags.Changed("concurrency") {
		cfg.Inventory.Concurrency = listConcurrency
	}
	if flags.Changed("running-only") {
		cfg.Inventory.RunningOnly = listRunningOnly
	}
	if flags.Changed("resource-group") {
		cfg.Inventory.ResourceGroups = listGroups
	}
	if flags.Changed("exclude-resource-group") {
		cfg.Inventory.ExcludeResourceGroups = listExcludeGroups
	}
	if flags.Changed("location") {
		cfg.Inventory.Locations = listLocations
	}
	if flags.Changed("metrics-file") {
		cfg.OTEL.Metrics.Textfile = listMetricsFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = listLogLevel
	}
}

func newAzureSource(cfg *config.Config) (inventory.Source, error) {
	p, err := azure.New(azure.Config{
		Credential:    cfg.Azure.Credential,
		Subscriptions: cfg.Azure.Subscriptions,
		QueryRate:     cfg.Inventory.QueryRate,
		QueryBurst:    cfg.Inventory.QueryBurst,
		QueryTimeout:  cfg.Inventory.QueryTimeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
