package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Cornman92/Better11-sub004/internal/catalog"
	"github.com/Cornman92/Better11-sub004/internal/config"
	"github.com/Cornman92/Better11-sub004/internal/download"
	"github.com/Cornman92/Better11-sub004/internal/logger"
	"github.com/Cornman92/Better11-sub004/internal/metrics"
	"github.com/Cornman92/Better11-sub004/internal/orchestrator"
	"github.com/Cornman92/Better11-sub004/internal/ports"
	"github.com/Cornman92/Better11-sub004/internal/progress"
	"github.com/Cornman92/Better11-sub004/internal/runner"
	"github.com/Cornman92/Better11-sub004/internal/state"
	"github.com/Cornman92/Better11-sub004/internal/verify"
)

// appContext wires the installer components for one CLI invocation.
type appContext struct {
	settings    *config.Settings
	log         ports.Logger
	catalog     *catalog.Cache
	state       *state.Store
	orch        *orchestrator.Orchestrator
	publisher   *progress.Publisher
	prom        *metrics.Prom
	metricsFile string
	dryRun      bool
}

func newAppContext(cmd *cobra.Command, flags *rootFlags) (*appContext, error) {
	settings, err := config.Load(flags.configPath)
	if err != nil {
		return nil, newCommandError(cmd.Name(), "loading settings", err, "Check the settings file passed with --config or $BETTER11_CONFIG.")
	}

	dryRun := settings.DryRun
	if cmd.Flags().Changed("dry-run") {
		dryRun = flags.dryRun
	}
	level := settings.LogLevel
	if flags.verbose {
		level = "debug"
	}

	log, err := logger.New(logger.Options{
		Level:         level,
		HumanReadable: settings.LogFormat == "console",
		Writer:        cmd.ErrOrStderr(),
		Component:     "cli",
	})
	if err != nil {
		return nil, err
	}

	store, err := state.Open(settings.StatePath)
	if err != nil {
		return nil, newCommandError(cmd.Name(), "opening installation state", err, "Repair or remove the state file and try again.")
	}

	sourceRoot := settings.SourceRoot
	if sourceRoot == "" {
		sourceRoot = filepath.Dir(settings.CatalogPath)
	}
	downloader := download.New(settings.CacheDir,
		download.WithSourceRoot(sourceRoot),
		download.WithRetryPolicy(download.RetryPolicy{
			MaxAttempts:     settings.Download.MaxAttempts,
			InitialInterval: settings.Download.InitialBackoff,
			Multiplier:      2,
			MaxInterval:     settings.Download.MaxBackoff,
		}),
		download.WithTimeout(settings.Download.Timeout),
		download.WithLogger(log),
	)

	cat := catalog.NewCache(settings.CatalogPath, catalog.WithExpiration(settings.CacheExpiration))

	metricsFile := settings.MetricsFile
	if flags.metricsFile != "" {
		metricsFile = flags.metricsFile
	}
	var recorder ports.Metrics = metrics.Noop{}
	var prom *metrics.Prom
	if metricsFile != "" {
		prom = metrics.NewProm("")
		recorder = prom
	}

	publisher := progress.NewPublisher()
	if flags.verbose {
		publisher.Subscribe(progress.NewLoggingSink(log))
	}

	orch := orchestrator.New(cat, store, downloader, verify.New(),
		runner.New(runner.WithDryRun(dryRun), runner.WithLogger(log)),
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithProgress(publisher),
		orchestrator.WithReadOnlyState(dryRun),
	)

	return &appContext{
		settings:    settings,
		log:         log,
		catalog:     cat,
		state:       store,
		orch:        orch,
		publisher:   publisher,
		prom:        prom,
		metricsFile: metricsFile,
		dryRun:      dryRun,
	}, nil
}

// commandContext cancels on interrupt and carries a fresh correlation id.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	return ports.EnsureCorrelationID(ctx), cancel
}

// warnIfNotElevated logs when real installer runs lack administrator rights.
func (a *appContext) warnIfNotElevated(ctx context.Context) {
	if a.dryRun {
		return
	}
	elevated, err := runner.IsElevated()
	if err != nil {
		a.log.Debug(ctx, "elevation check failed", "error", err.Error())
		return
	}
	if !elevated {
		a.log.Warn(ctx, "not running elevated; installers may fail or prompt for consent")
	}
}

// startProgress attaches the progress renderer for one operation. Terminals get
// the interactive view, where ctrl+c calls cancel. The returned func detaches
// the renderer and must run before any further output is written.
func (a *appContext) startProgress(ctx context.Context, cmd *cobra.Command, cancel context.CancelFunc) func() {
	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		sub := a.publisher.Subscribe(progress.NewTerminalSink(out, 30, false))
		return sub.Unsubscribe
	}

	sink := progress.NewProgramSink(out, 30, cancel)
	sub := a.publisher.Subscribe(sink)
	sink.Start()
	return func() {
		sub.Unsubscribe()
		if err := sink.Stop(); err != nil {
			a.log.Debug(ctx, "progress view stopped", "error", err.Error())
		}
	}
}

// finish writes the metrics file when one was requested.
func (a *appContext) finish(ctx context.Context) error {
	if a.prom == nil {
		return nil
	}
	if err := a.prom.WriteFile(a.metricsFile); err != nil {
		return newCommandError("write metrics", a.metricsFile, err, "Check that the metrics file directory exists and is writable.")
	}
	a.log.Debug(ctx, "metrics written", "path", a.metricsFile)
	return nil
}

func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}
