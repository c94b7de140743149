// Package redisrelay bridges permission-change events between server
// instances over a Redis pub/sub channel.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/chitfund-crm/internal/core/events"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 5 * time.Second

type message struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	RoleID    *int64    `json:"role_id,omitempty"`
	UserIDs   []int64   `json:"user_ids"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

type Relay struct {
	client  redis.UniversalClient
	bus     *events.EventBus
	channel string
	origin  string
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func New(client redis.UniversalClient, bus *events.EventBus, channel string, logger *slog.Logger) *Relay {
	return &Relay{
		client:  client,
		bus:     bus,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin identifies this instance on the shared channel.
func (r *Relay) Origin() string {
	return r.origin
}

// Start subscribes to the Redis channel and begins forwarding local events.
// It returns once the subscription is confirmed.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub != nil {
		return nil
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.pubsub = pubsub
	r.done = make(chan struct{})

	r.bus.Subscribe(events.EventTypePermissionsChanged, r.forward)

	go r.listen(pubsub.Channel(), r.done)

	r.logger.Info("redis relay started", "channel", r.channel, "origin", r.origin)
	return nil
}

func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	<-r.done
	r.pubsub = nil
	return err
}

func (r *Relay) forward(ctx context.Context, e events.Event) error {
	changed, ok := e.(*events.PermissionsChangedEvent)
	if !ok {
		return nil
	}
	if changed.Origin != "" && changed.Origin != r.origin {
		// arrived from another instance
		return nil
	}

	payload, err := json.Marshal(message{
		ID:        changed.EventID(),
		Reason:    changed.Reason,
		RoleID:    changed.RoleID,
		UserIDs:   changed.UserIDs,
		Origin:    r.origin,
		Timestamp: changed.OccurredAt(),
	})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}

	// handlers run after the publishing request has returned
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Error("redis relay publish failed", "event_id", changed.EventID(), "error", err)
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

func (r *Relay) listen(ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)

	for msg := range ch {
		var m message
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			r.logger.Warn("redis relay: dropping malformed message", "error", err)
			continue
		}
		if m.Origin == r.origin {
			continue
		}

		ev := events.NewPermissionsChangedEvent(m.Reason, m.RoleID, m.UserIDs)
		ev.ID = m.ID
		ev.Origin = m.Origin
		if !m.Timestamp.IsZero() {
			ev.Timestamp = m.Timestamp
		}

		if err := r.bus.PublishSync(context.Background(), ev); err != nil {
			r.logger.Error("redis relay: local delivery failed", "event_id", m.ID, "error", err)
		}
	}
}
