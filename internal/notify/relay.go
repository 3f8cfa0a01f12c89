package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel notifications travel on
const DefaultChannel = "greenquest:notifications"

// RedisRelay publishes notifications to Redis and replays everything on the
// channel into the local hub, so every server instance reaches its own sockets.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   progression.Broadcaster
	logger  *zap.Logger
}

var _ progression.Broadcaster = (*RedisRelay)(nil)

func NewRedisRelay(redisURL, channel string, local progression.Broadcaster, logger *zap.Logger) (*RedisRelay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = DefaultChannel
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(options)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis notification relay initialized",
		zap.String("addr", options.Addr),
		zap.String("channel", channel))
	return &RedisRelay{client: client, channel: channel, local: local, logger: logger}, nil
}

// Broadcast publishes the notification; delivery to sockets happens in Run
func (r *RedisRelay) Broadcast(ctx context.Context, n models.Notification) error {
	payload, err := encodeNotification(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Run forwards channel messages to the local hub until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n, err := decodeNotification(msg.Payload)
			if err != nil {
				r.logger.Warn("Discarding malformed notification message", zap.Error(err))
				continue
			}
			if err := r.local.Broadcast(ctx, n); err != nil {
				r.logger.Warn("Failed to deliver relayed notification",
					zap.String("notification_id", n.ID.String()),
					zap.Error(err))
			}
		}
	}
}

// Health pings Redis
func (r *RedisRelay) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func encodeNotification(n models.Notification) (string, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	return string(b), nil
}

func decodeNotification(payload string) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return models.Notification{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	if !n.Type.Valid() {
		return models.Notification{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	return n, nil
}
