package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/frahmantamala/chitfund-crm/internal/core/events/redisrelay"
	"github.com/frahmantamala/chitfund-crm/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish permission change notifications to running servers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish",
	Short: "Tell open sessions to re-evaluate their access",
	Long: `Publish a manual permissions changed event on the redis channel. Without --user
every connected session reloads; with it only the listed users do.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		publishPermissionsChanged()
	},
}

var (
	eventUserIDs []int64
	eventRoleID  int64
)

func publishPermissionsChanged() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !config.Events.Redis.Enabled {
		fmt.Fprintln(os.Stderr, "events.redis.enabled is false, servers cannot be reached")
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := newRedisClient(config.Events.Redis)
	defer client.Close()

	eventBus := events.NewEventBus(logger)
	relay := redisrelay.New(client, eventBus, config.Events.Redis.Channel, logger)
	if err := relay.Start(ctx); err != nil {
		logger.Error("failed to start redis relay", "error", err)
		os.Exit(1)
	}
	defer relay.Close()

	var roleID *int64
	if eventRoleID > 0 {
		roleID = &eventRoleID
	}
	event := events.NewPermissionsChangedEvent(events.ReasonManualNotification, roleID, eventUserIDs)

	logger.Info("publishing permissions changed event", "event_id", event.EventID(), "user_ids", eventUserIDs, "role_id", roleID)

	// synchronous so the relay has published before the process exits
	if err := eventBus.PublishSync(ctx, event); err != nil {
		logger.Error("failed to publish event", "error", err)
		os.Exit(1)
	}

	logger.Info("event published successfully")
}

func init() {
	publishEventCmd.Flags().Int64SliceVar(&eventUserIDs, "user", nil, "Affected user id (repeatable)")
	publishEventCmd.Flags().Int64Var(&eventRoleID, "role", 0, "Affected role id")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
