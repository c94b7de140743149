package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/chitfund-crm/internal/audit"
	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/core/events/redisrelay"
	"github.com/frahmantamala/chitfund-crm/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers such as the scheduled access audit and the permission event listener.`,
}

var auditWorkerCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the access audit on a schedule",
	Long:  `Periodically resolve every user's permissions and export role assignments and anomalies as metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		startAuditWorker()
	},
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Log permission change events from the redis channel",
	Long:  `Subscribe to the shared redis channel and log every permissions changed event published by the servers.`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var (
	auditSchedule string
	auditOnce     bool
	metricsAddr   string
)

func startAuditWorker() {
	ctx := context.Background()
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initCore(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	logger := deps.Logger
	auditor := audit.NewAuditor(deps.Users, deps.Roles, deps.Resolver, audit.NewMetrics(deps.Registry), logger)

	if auditOnce {
		runCtx, cancel := context.WithTimeout(ctx, config.Audit.Timeout)
		defer cancel()
		report, err := auditor.Run(runCtx)
		if err != nil {
			logger.Error("access audit failed", "error", err)
			return
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	schedule := getStringFlag(auditSchedule, config.Audit.Schedule)
	scheduler, err := audit.NewScheduler(auditor, schedule, config.Audit.Timeout, logger)
	if err != nil {
		logger.Error("failed to create audit scheduler", "error", err)
		return
	}

	mux := http.NewServeMux()
	mux.Handle(config.Observability.Metrics.Path, promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("starting access audit worker", "schedule", schedule, "timeout", config.Audit.Timeout, "metrics_addr", metricsAddr)
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received signal, shutting down audit worker", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
	logger.Info("audit worker shutdown complete")
}

func startEventWorker() {
	ctx := context.Background()
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !config.Events.Redis.Enabled {
		fmt.Fprintln(os.Stderr, "events.redis.enabled is false, nothing to listen to")
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()
	eventBus := events.NewEventBus(logger)
	eventBus.Subscribe(events.EventTypePermissionsChanged, func(ctx context.Context, event events.Event) error {
		changed, ok := event.(*events.PermissionsChangedEvent)
		if !ok {
			return nil
		}
		logger.Info("permissions changed",
			"event_id", changed.EventID(),
			"reason", changed.Reason,
			"role_id", changed.RoleID,
			"user_ids", changed.UserIDs,
			"origin", changed.Origin)
		return nil
	})

	client := newRedisClient(config.Events.Redis)
	defer client.Close()

	relay := redisrelay.New(client, eventBus, config.Events.Redis.Channel, logger)
	if err := relay.Start(ctx); err != nil {
		logger.Error("failed to start redis relay", "error", err)
		return
	}
	defer relay.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("event worker is running. Press Ctrl+C to stop.", "channel", config.Events.Redis.Channel)

	sig := <-sigChan
	logger.Info("received signal, shutting down event worker", "signal", sig)
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	auditWorkerCmd.Flags().StringVar(&auditSchedule, "schedule", "", "Cron schedule (overrides config)")
	auditWorkerCmd.Flags().BoolVar(&auditOnce, "once", false, "Run a single audit and print the report")
	auditWorkerCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "Address of the metrics endpoint")

	workerCmd.AddCommand(auditWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
