package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/truckfixgo/offline-agent/internal/api"
	"github.com/truckfixgo/offline-agent/internal/build"
	"github.com/truckfixgo/offline-agent/internal/config"
	"github.com/truckfixgo/offline-agent/internal/connectivity"
	"github.com/truckfixgo/offline-agent/internal/eventbus"
	"github.com/truckfixgo/offline-agent/internal/lifecycle"
	"github.com/truckfixgo/offline-agent/internal/logger"
	"github.com/truckfixgo/offline-agent/internal/notification"
	"github.com/truckfixgo/offline-agent/internal/observability"
	"github.com/truckfixgo/offline-agent/internal/retryqueue"
	"github.com/truckfixgo/offline-agent/internal/server"
	"github.com/truckfixgo/offline-agent/internal/storage"
	"github.com/truckfixgo/offline-agent/internal/strategy"
)

// NewServeCmd returns the "serve" subcommand that starts the agent.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int
	var hold bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the offline agent",
		Long: `Start the local agent that sits between the TruckFixGo page and the
upstream API: it intercepts application traffic, serves cached responses
while offline, replays queued mutations, and delivers push notifications.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			printBanner(build.Version, cfg)

			if err := runServe(cfg, hold); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred. Please check the logs at: %s\n", cfg.LogDir())
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().BoolVar(&hold, "hold", false, "Stay in waiting after install; activate only on a SKIP_WAITING command")

	return cmd
}

func runServe(cfg *config.AppConfig, hold bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	agentLogger, err := logger.NewAgentLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	agentLogger.Info("tfg-agent starting",
		slog.Int("port", cfg.Port),
		slog.String("upstream", cfg.UpstreamURL),
		slog.String("data_dir", cfg.DataDir),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	manifest, err := config.LoadManifest(cfg.ManifestFile())
	if err != nil {
		return fmt.Errorf("loading agent manifest: %w", err)
	}
	agentLogger.Info("manifest loaded", "areas", manifest.PublishedAreas())

	db, created, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if created {
		agentLogger.Info("database created", "path", cfg.DBPath())
	}

	cache := storage.NewSQLiteCacheStore(db)
	queueStore := storage.NewSQLiteQueueStore(db)
	notifStore := storage.NewSQLiteNotificationStore(db)

	metrics, err := observability.New()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() { _ = metrics.Shutdown(context.Background()) }()

	bus := eventbus.New(3, agentLogger)
	defer bus.Close()

	upstream := strings.TrimRight(cfg.UpstreamURL, "/")
	fetch := strategy.NewFetcher(cfg.UpstreamTimeout)

	jobQueue := retryqueue.NewQueue(retryqueue.QueueJobUpdates, retryqueue.TriggerJobUpdates, queueStore, agentLogger, metrics)
	chatQueue := retryqueue.NewQueue(retryqueue.QueueChatMessages, retryqueue.TriggerChatMessages, queueStore, agentLogger, metrics)
	telemetryQueue := retryqueue.NewQueue(retryqueue.QueueTelemetry, retryqueue.TriggerTelemetry, queueStore, agentLogger, metrics)
	queues := []*retryqueue.Queue{jobQueue, chatQueue, telemetryQueue}

	router := strategy.NewRouter(strategy.Config{
		APIPatterns:      manifest.APIPatterns,
		StaticExtensions: manifest.StaticExtensions,
		StaticArea:       manifest.StaticArea(),
		DynamicArea:      manifest.DynamicArea(),
		OfflineURL:       upstream + manifest.OfflinePath,
		// Failed writes land in a queue instead of being lost: chat
		// traffic in its own queue, every other API mutation with the
		// job updates.
		WriteQueues: []strategy.QueueBinding{
			{PathPrefix: "/api/messages", Queue: chatQueue},
			{PathPrefix: "/api/", Queue: jobQueue},
		},
	}, cache, fetch, agentLogger, metrics)

	lc := lifecycle.New(lifecycle.Config{
		UpstreamBase:  upstream,
		PrecachePaths: manifest.Precache,
		StaticArea:    manifest.StaticArea(),
		DynamicArea:   manifest.DynamicArea(),
	}, cache, fetch, bus, agentLogger)

	replayer := retryqueue.NewReplayer(queues, queueStore, fetch, agentLogger, metrics)
	replayer.Subscribe(bus)
	if err := replayer.StartSweep(cfg.SweepInterval); err != nil {
		return fmt.Errorf("starting replay sweep: %w", err)
	}
	defer func() { _ = replayer.StopSweep() }()

	hub := notification.NewHub(agentLogger)
	telemetry := notification.NewTelemetry(upstream, fetch, telemetryQueue, agentLogger, metrics)
	notifs := notification.NewController(
		notification.NewHubNotifier(hub),
		notifStore,
		telemetry,
		notification.Routes(manifest.ActionRoutes),
		hub,
		agentLogger,
		metrics,
	)

	// Connected pages re-attach to a newly activated instance without a
	// reload; the bus event becomes a page claim.
	bus.Subscribe(func(e eventbus.Event) {
		if e.Type == lifecycle.EventActivated {
			hub.Broadcast(notification.PageEventClaim, e.Payload)
		}
	})

	watcher := connectivity.New(connectivity.Config{
		ProbeURL: upstream + cfg.ProbePath,
		Interval: cfg.ProbeInterval,
		Triggers: []string{
			retryqueue.TriggerJobUpdates,
			retryqueue.TriggerChatMessages,
			retryqueue.TriggerTelemetry,
		},
	}, nil, bus, agentLogger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting connectivity watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	// Install the critical static set. A failed install leaves the
	// instance in waiting; it keeps serving from whatever is cached but
	// never activates.
	if err := lc.Install(ctx); err != nil {
		agentLogger.Error("install failed, staying in waiting", "error", err)
	} else if !hold {
		if err := lc.Activate(ctx); err != nil {
			agentLogger.Error("activation failed", "error", err)
		}
	}

	apiSrv := api.New(lc, notifs, hub, replayer, queues, watcher, manifest.CriticalPages, agentLogger)
	srv, err := server.New(apiSrv, router, upstream, cfg.Port, cfg.Origins(), metrics, agentLogger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	agentLogger.Info("agent ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return srv.Run(ctx)
}

// printBanner writes the startup banner to stdout. It is the only output
// visible in the terminal during normal operation; all structured logs go
// to the log file instead.
func printBanner(version string, cfg *config.AppConfig) {
	fmt.Print(`
 _____ _____ ____
|_   _|  ___/ ___|   __ _  __ _  ___ _ __ | |_
  | | | |_ | |  _   / _` + "`" + ` |/ _` + "`" + ` |/ _ \ '_ \| __|
  | | |  _|| |_| | | (_| | (_| |  __/ | | | |_
  |_| |_|   \____|  \__,_|\__, |\___|_| |_|\__|
                          |___/

`)
	fmt.Printf("tfg-agent %s running on http://localhost:%d\n", version, cfg.Port)
	fmt.Printf("Proxying %s\n", cfg.UpstreamURL)
	fmt.Printf("Logs: %s\n\n", cfg.LogDir())
}
