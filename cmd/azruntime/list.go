package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/azruntime/internal/config"
	"github.com/yairfalse/azruntime/internal/filter"
	"github.com/yairfalse/azruntime/inventory"
	"github.com/yairfalse/azruntime/report"
)

// ListCommand runs one inventory pass and prints the report.
type ListCommand struct {
	Config *config.Config
	Stdout io.Writer
	Stderr io.Writer
	Color  bool
	// Progress shows a running VM count on Stderr while the pass runs.
	Progress bool
	Recorder inventory.Recorder
	Tracer   trace.Tracer

	NewSource func(cfg *config.Config) (inventory.Source, error)
}

// Run executes the list command. The pass and a signal handler run as one
// group, so an interrupt cancels in-flight Azure calls.
func (c *ListCommand) Run(ctx context.Context) error {
	start := time.Now()

	renderer, err := report.NewRenderer(c.Config.Output.Format, c.Color)
	if err != nil {
		return err
	}

	source, err := c.NewSource(c.Config)
	if err != nil {
		return fmt.Errorf("failed to create azure provider: %w", err)
	}

	inv := c.Config.Inventory
	opts := inventory.Options{
		Concurrency: inv.Concurrency,
		RunningOnly: inv.RunningOnly,
		Filter:      filter.New(inv.ResourceGroups, inv.ExcludeResourceGroups, inv.Locations),
		Tracer:      c.Tracer,
	}
	if c.Progress {
		opts.OnProgress = c.progress()
	}
	assembler := inventory.NewAssembler(source, opts, c.Recorder)

	var result *inventory.Result
	var g run.Group
	{
		passCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			var err error
			result, err = assembler.Run(passCtx)
			return err
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	if c.Progress {
		_, _ = fmt.Fprint(c.Stderr, "\r\x1b[K")
	}
	if err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			return fmt.Errorf("interrupted by %s", sig.Signal)
		}
		return err
	}

	for _, id := range result.SkippedSubscriptions {
		log.Warn().Str("subscription", id).Msg("subscription skipped, its VMs are missing from the report")
	}
	if result.Failed > 0 {
		log.Warn().Int("rows", result.Failed).Msg("some VMs could not be inspected")
	}

	rows := report.NewRowSet()
	rows.Add(result.Rows...)
	if err := renderer.Render(c.Stdout, rows.Rows()); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	_, _ = fmt.Fprintf(c.Stderr, "Operation completed in %.2f seconds.\n", time.Since(start).Seconds())
	return nil
}

func (c *ListCommand) progress() func(inventory.Progress) {
	var mu sync.Mutex
	return func(p inventory.Progress) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(c.Stderr, "\rInspecting VMs %d/%d", p.Done, p.Total)
	}
}
