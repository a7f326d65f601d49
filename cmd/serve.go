package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/wasmreload/internal/assets"
	"github.com/conneroisu/wasmreload/internal/build"
	"github.com/conneroisu/wasmreload/internal/config"
	"github.com/conneroisu/wasmreload/internal/dirty"
	"github.com/conneroisu/wasmreload/internal/fingerprint"
	"github.com/conneroisu/wasmreload/internal/logging"
	"github.com/conneroisu/wasmreload/internal/metrics"
	"github.com/conneroisu/wasmreload/internal/scanner"
	"github.com/conneroisu/wasmreload/internal/server"
	"github.com/conneroisu/wasmreload/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve [project-dir]",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server for a Rust wasm project.

The project is built once before the server starts listening. Every request
for /current.wasm rebuilds it, and the browser is told over a websocket when
the sources have changed since the last build.

When no project directory is given it is asked for on standard input.

Examples:
  wasmreload serve ./my-crate                  # Serve on 127.0.0.1:3030
  wasmreload serve ./my-crate --port 8080      # Serve on another port
  wasmreload serve ./my-crate --checksum xxhash
  wasmreload serve ./my-crate --assets-dir web/dist`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

// newRunner creates the runner used to invoke the toolchain.
var newRunner = func() build.Runner { return build.ExecRunner{} }

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := config.Defaults()

	serveCmd.Flags().IntP("port", "p", defaults.Server.Port, "Port to serve on")
	serveCmd.Flags().String("host", defaults.Server.Host, "Host to bind to")
	serveCmd.Flags().String("assets-dir", "", "Serve the bundle from this directory instead of the embedded one")
	serveCmd.Flags().Bool("no-live-reload", false, "Don't watch the project or register /ws")
	serveCmd.Flags().Duration("interval", defaults.Watch.Interval, "Time between scans of the project tree")
	serveCmd.Flags().Bool("notify", false, "Also scan as soon as the file system reports a change")
	serveCmd.Flags().Var(newChecksumValue(fingerprint.Algorithm(defaults.Watch.Checksum)), "checksum",
		"Checksum used to fingerprint files ("+checksumNames()+")")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("assets.dir", serveCmd.Flags().Lookup("assets-dir"))
	viper.BindPFlag("watch.interval", serveCmd.Flags().Lookup("interval"))
	viper.BindPFlag("watch.notify", serveCmd.Flags().Lookup("notify"))
	viper.BindPFlag("watch.checksum", serveCmd.Flags().Lookup("checksum"))
}

func runServe(cmd *cobra.Command, args []string) error {
	if noLiveReload, _ := cmd.Flags().GetBool("no-live-reload"); noLiveReload {
		viper.Set("development.live_reload", false)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	projectDir, err := projectDirectory(cmd, cfg, args)
	if err != nil {
		return err
	}
	cfg.ProjectDir = projectDir

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	fatal := func(err error) {
		logger.Error(ctx, err, "Stopping after build failure")
		cancel(err)
	}

	srv, err := assembleServer(ctx, cfg, logger, newRunner(), fatal)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", projectDir, cfg.Address())

	if err := srv.Start(ctx); err != nil {
		return err
	}

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	return nil
}

// projectDirectory resolves the positional argument or, without one, asks
// for the project on the command's input.
func projectDirectory(cmd *cobra.Command, cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return config.ResolveProjectDir(args[0])
	}

	prompt := config.NewProjectPrompt(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Prompt.Attempts)

	return prompt.AskProjectDir()
}

// assembleServer wires the store, scanner, poller, build coordinator and
// server for cfg.ProjectDir. The coordinator runs until ctx is done.
func assembleServer(
	ctx context.Context,
	cfg *config.Config,
	logger logging.Logger,
	runner build.Runner,
	fatal server.FatalHandler,
) (*server.Server, error) {
	bundle, err := loadBundle(cfg)
	if err != nil {
		return nil, err
	}
	for _, warning := range bundle.Warnings {
		logger.Warn(ctx, nil, "Asset bundle warning", "warning", warning)
	}

	hasher, err := fingerprint.NewHasher(fingerprint.Algorithm(cfg.Watch.Checksum))
	if err != nil {
		return nil, err
	}
	store := fingerprint.NewStore(hasher)

	treeScanner, err := scanner.New(cfg.ProjectDir, cfg.Watch.Exclude, store)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	flag := dirty.New()

	coordinator := build.NewCoordinator(
		build.NewCompiler(cfg.Build, runner),
		build.WithTimeout(cfg.Build.Timeout),
		build.WithLogger(logger),
		build.WithMetrics(m),
	)
	coordinator.Start(ctx)

	opts := server.Options{
		Config:     cfg,
		ProjectDir: treeScanner.Root(),
		Bundle:     bundle,
		Flag:       flag,
		Builder:    coordinator,
		Stats:      coordinator.Stats(),
		Store:      store,
		Metrics:    m,
		Logger:     logger,
		Fatal:      fatal,
	}

	if cfg.Development.LiveReload {
		pollerOpts := []watcher.PollerOption{
			watcher.WithInterval(cfg.Watch.Interval),
			watcher.WithLogger(logger),
			watcher.WithMetrics(m),
		}

		if cfg.Watch.Notify {
			notifier, err := watcher.NewNotifier(treeScanner.Root(), cfg.Watch.Exclude, logger)
			if err != nil {
				return nil, err
			}
			pollerOpts = append(pollerOpts, watcher.WithWake(notifier.Wake()))
			opts.Notifier = notifier
		}

		opts.Poller = watcher.NewPoller(treeScanner, flag, pollerOpts...)
	}

	return server.New(opts)
}

func loadBundle(cfg *config.Config) (*assets.Bundle, error) {
	if cfg.Assets.Dir != "" {
		return assets.LoadDir(cfg.Assets.Dir)
	}

	return assets.Embedded()
}
