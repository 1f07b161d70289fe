package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/treemerge/pkg/config"
	"github.com/Sumatoshi-tech/treemerge/pkg/observability"
	"github.com/Sumatoshi-tech/treemerge/pkg/version"
)

// Globals holds the persistent flags of the root command.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

// Register binds the persistent flags onto root.
func (g *Globals) Register(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", "", "configuration file (default: treemerge.yaml)")
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&g.Quiet, "quiet", "q", false, "suppress output")
	root.PersistentFlags().BoolVar(&g.NoColor, "no-color", false, "disable colored output")
}

// runEnv is what a command body gets: the loaded configuration and the
// telemetry built from it.
type runEnv struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	diff    *observability.DiffMetrics
	merge   *observability.MergeMetrics
	globals *Globals
}

// status writes a coloured status line unless --quiet is set.
func (rt *runEnv) status(w io.Writer, attr color.Attribute, format string, args ...any) {
	if rt.globals.Quiet {
		return
	}

	color.New(attr).Fprintf(w, format, args...)
}

type commandBody func(ctx context.Context, rt *runEnv, cmd *cobra.Command, args []string) error

// run wraps body with configuration loading, telemetry setup and teardown,
// one span per command and the command counters.
func (g *Globals) run(body commandBody) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if g.NoColor {
			color.NoColor = true //nolint:reassign // intentional override of library global
		}

		cfg, err := config.LoadConfig(g.ConfigPath)
		if err != nil {
			return err
		}

		if g.NoColor {
			cfg.Diff.Color = false
		}

		telemetry := cfg.Telemetry(version.Version)

		switch {
		case g.Verbose:
			telemetry.LogLevel = slog.LevelDebug
		case g.Quiet:
			telemetry.LogLevel = slog.LevelError
		}

		providers, err := observability.Init(telemetry)
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}

		defer func() {
			shutdownErr := providers.Shutdown(context.Background())
			if shutdownErr != nil {
				providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
			}
		}()

		rt, err := newRuntime(cfg, providers, g)
		if err != nil {
			return err
		}

		commandMetrics, err := observability.NewCommandMetrics(providers.Meter)
		if err != nil {
			return fmt.Errorf("create command metrics: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		name := cmd.CommandPath()
		start := time.Now()

		ctx, span := providers.Tracer.Start(ctx, "treemerge.command", trace.WithAttributes(
			attribute.String("command.name", name),
		))
		defer span.End()

		err = body(ctx, rt, cmd, args)

		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			rt.logger.DebugContext(ctx, "command failed", "command", name, "error", err)
		}

		commandMetrics.RecordCommand(ctx, name, status, time.Since(start))

		return err
	}
}

func newRuntime(cfg *config.Config, providers observability.Providers, g *Globals) (*runEnv, error) {
	diffMetrics, err := observability.NewDiffMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create diff metrics: %w", err)
	}

	mergeMetrics, err := observability.NewMergeMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create merge metrics: %w", err)
	}

	return &runEnv{
		cfg:     cfg,
		logger:  providers.Logger,
		tracer:  providers.Tracer,
		meter:   providers.Meter,
		diff:    diffMetrics,
		merge:   mergeMetrics,
		globals: g,
	}, nil
}
