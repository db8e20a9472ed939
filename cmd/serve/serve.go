// Package serve provides the long-running server command.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/unzipd/unzipd/internal/cmdutil"
	"github.com/unzipd/unzipd/internal/config"
	"github.com/unzipd/unzipd/internal/engine"
	"github.com/unzipd/unzipd/internal/extract"
	"github.com/unzipd/unzipd/internal/metrics"
	"github.com/unzipd/unzipd/internal/server"
	"github.com/unzipd/unzipd/internal/version"
	"github.com/unzipd/unzipd/internal/watcher"
)

// ServeCmd runs the extraction server until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction server",
	Long: "Run the extraction server.\n\n" +
		"Exposes an HTTP API for starting extraction and cleanup operations and " +
		"polling their progress. With watch mode enabled, newly arrived archives " +
		"under the configured root are extracted automatically.",
	Example: `  # Run with the configured root directory
  unzipd serve

  # Run against a different root
  unzipd serve --root /srv/archives`,
	PreRunE: validateServe,
	RunE:    runServe,
}

var serveRoot string

func init() {
	ServeCmd.Flags().StringVar(&serveRoot, "root", "", "extraction root directory (default from config)")
}

func validateServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := cmdutil.Config()
	logger := cmdutil.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, registry, err := cmdutil.BuildEngine(cfg, logger, serveRoot)
	if err != nil {
		return err
	}

	policy, err := cmdutil.PolicyFromConfig(cfg)
	if err != nil {
		return err
	}

	registry.StartSweeper(ctx, logger, cmdutil.SweepInterval(cfg), cmdutil.Retention(cfg))

	if err := metrics.RegisterOperationStates(func() []metrics.StateSample {
		snaps := registry.Snapshots()
		samples := make([]metrics.StateSample, 0, len(snaps))
		for _, s := range snaps {
			samples = append(samples, metrics.StateSample{Kind: string(s.Kind), State: string(s.State)})
		}
		return samples
	}); err != nil {
		return fmt.Errorf("failed to register operation metrics; %w", err)
	}

	srv := server.New(server.Config{
		Port:             cfg.Server.HTTPPort,
		Bind:             cfg.Server.HTTPBind,
		AuthEnabled:      cfg.Server.Auth.Enabled,
		AuthUsername:     cfg.Server.Auth.Username,
		AuthPassword:     cfg.Server.Auth.ResolvePassword(),
		RateLimitEnabled: cfg.Server.RateLimit.Enabled,
		RequestsPerMin:   cfg.Server.RateLimit.RequestsPerMinute,
		Burst:            cfg.Server.RateLimit.Burst,
	}, logger)
	srv.SetMetricsHandler(metrics.Handler())
	srv.SetExtractFunc(func(ctx context.Context, req server.ExtractRequest) (string, error) {
		p := policy
		if req.Policy != "" {
			parsed, err := extract.ParsePolicy(req.Policy)
			if err != nil {
				return "", err
			}
			p = parsed
		}
		parallel := true
		if req.Parallel != nil {
			parallel = *req.Parallel
		}
		return eng.StartExtraction(ctx, req.Root, p, parallel)
	})
	srv.SetCleanupFunc(eng.StartCleanup)
	srv.SetSnapshotFunc(eng.Snapshot)
	srv.SetListFunc(registry.Snapshots)

	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w, err = startWatcher(ctx, cfg, eng, policy, logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
	}

	metrics.ServerStartTime.SetToCurrentTime()
	metrics.ServerInfo.WithLabelValues(version.Get().Version, runtime.Version()).Set(1)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"bind", cfg.Server.HTTPBind,
			"port", cfg.Server.HTTPPort,
			"watch", cfg.Watch.Enabled)
		errCh <- srv.Start(ctx)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed; %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// startWatcher wires watch mode: settled archives under the root are
// extracted with the configured default policy.
func startWatcher(ctx context.Context, cfg *config.Config, eng *engine.Engine, policy extract.ConflictPolicy, logger *slog.Logger) (*watcher.Watcher, error) {
	root := config.ExpandPath(cfg.Extract.RootDir)

	w, err := watcher.New(
		func(ctx context.Context, archivePath string) {
			eng.ExtractArchive(ctx, archivePath, policy)
		},
		watcher.WithDebounceWindow(time.Duration(cfg.Watch.DebounceSeconds)*time.Second),
		watcher.WithLogger(logger.With("component", "watcher")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher; %w", err)
	}
	if err := w.Watch(root); err != nil {
		return nil, fmt.Errorf("failed to watch %s; %w", root, err)
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	logger.Info("watch mode enabled", "root", root, "debounce_seconds", cfg.Watch.DebounceSeconds)
	return w, nil
}
