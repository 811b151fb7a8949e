// Command twice runs the edge caching reverse proxy: the client-facing
// proxy plane, the background soft-stale refresher, and the operator
// admin plane, wired from a single resolved configuration.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twicecache/twice/internal/cachebackend"
	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/datastore"
	"github.com/twicecache/twice/internal/dbupstream"
	"github.com/twicecache/twice/internal/elements"
	"github.com/twicecache/twice/internal/evaluator"
	"github.com/twicecache/twice/internal/events"
	"github.com/twicecache/twice/internal/freshness"
	"github.com/twicecache/twice/internal/kvupstream"
	"github.com/twicecache/twice/internal/logging"
	"github.com/twicecache/twice/internal/metrics"
	"github.com/twicecache/twice/internal/originclient"
	"github.com/twicecache/twice/internal/pipeline"
	"github.com/twicecache/twice/internal/server"
	"github.com/twicecache/twice/internal/variantindex"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagPort      string
	flagInterface string
	flagVerbose   bool
	flagDaemon    bool
)

func main() {
	root := &cobra.Command{
		Use:   "twice",
		Short: "Edge caching reverse proxy with ESI-like fragment assembly",
		RunE:  run,
	}
	root.Flags().StringVar(&flagConfig, "config", "", "path to the config file")
	root.Flags().StringVar(&flagLogLevel, "log", "", "log level override (debug/info/warn/error)")
	root.Flags().StringVar(&flagPort, "port", "", "client-facing listen port override")
	root.Flags().StringVar(&flagInterface, "interface", "", "client-facing listen interface override")
	root.Flags().BoolVar(&flagVerbose, "verbose", false, "shorthand for --log=debug")
	root.Flags().BoolVar(&flagDaemon, "daemon", false, "run without attaching to a controlling terminal's signals beyond SIGTERM/SIGINT")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg)

	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting twice", "profile", cfg.Profile, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbupstream.Migrate(cfg, "migrations"); err != nil {
		logger.Warn("database migration failed, continuing with existing schema", "error", err)
	}

	metricsRegistry := metrics.NewRegistry()

	backend, err := cachebackend.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build cache backend: %w", err)
	}
	defer backend.Close()

	store, err := dbupstream.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build db upstream: %w", err)
	}
	defer store.Close()

	kvClient := kvupstream.New(kvupstream.Config{Addr: cfg.BackendMemcache}, logger)
	defer kvClient.Close()

	origin := originclient.New(cfg)
	variants := variantindex.New()

	registry := elements.NewRegistry()
	registry.Register(elements.NewPageKind(cfg, origin, variants, logger))
	registry.Register(elements.NewSessionKind(cfg, store, logger))
	registry.Register(elements.NewKVFragmentKind("kv", kvClient, logger))
	registry.Register(elements.NewDBFragmentKind("favorite", store, logger))
	registry.Register(elements.NewDBFragmentKind("subscription", store, logger))

	// The admin event stream is built before the components that report
	// into it, so its interfaces can be threaded through their
	// constructors. hub stays nil when the admin plane is disabled; the
	// notifier variables are only assigned when it is non-nil, so a
	// disabled hub never leaks in as a non-nil interface wrapping a nil
	// pointer.
	var hub *events.Hub
	var adminSrv *adminServer
	var freshnessNotifier datastore.FreshnessNotifier
	var purgeNotifier variantindex.PurgeNotifier
	if cfg.Admin.Enabled {
		hub = events.NewHub(logger)
		go hub.Start(ctx)
		adminSrv = newAdminServer(cfg.Admin.Addr, metricsRegistry.Prometheus(), hub, logger)
		freshnessNotifier = hub
		purgeNotifier = hub
	}

	var ds *datastore.DataStore
	refresher := freshness.NewRefresher(cfg.Refresh.MaxRatePerSecond, cfg.Refresh.Burst, func(rctx context.Context, key string) {
		ds.Refresh(rctx, key)
		metricsRegistry.Pipeline().SoftStaleRefreshes.Inc()
	}, logger)
	ds = datastore.New(backend, registry, refresher, metricsRegistry.Cache(), freshnessNotifier, logger)

	eval, err := evaluator.New(cfg.TemplateRegex, 512, pipeline.NewSideEffects(registry), logger)
	if err != nil {
		return fmt.Errorf("build evaluator: %w", err)
	}

	purgeHandler := variantindex.NewHandler(backend, variants, metricsRegistry.Purge(), purgeNotifier, logger)

	pipe, err := pipeline.New(cfg, ds, registry, eval, purgeHandler, metricsRegistry.Pipeline(), logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	proxy := server.New(cfg.Interface+":"+cfg.Port, pipe, logger)

	errCh := make(chan error, 2)
	go func() {
		if err := proxy.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("proxy plane: %w", err)
		}
	}()
	if adminSrv != nil {
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("admin plane: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		cancel()
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := proxy.Shutdown(shutdownCtx); err != nil {
		logger.Error("proxy plane shutdown error", "error", err)
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin plane shutdown error", "error", err)
		}
	}
	logger.Info("twice stopped")
	return nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagInterface != "" {
		cfg.Interface = flagInterface
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	} else if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
}
