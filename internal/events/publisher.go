package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher 定义告警事件的输送接口。
type Publisher interface {
	Publish(ctx context.Context, event AlertEvent) error
}

// envelope mirrors the wire format the downstream strategy consumers expect.
type envelope struct {
	EventType string          `json:"event_type"`
	Channel   string          `json:"channel"`
	Publisher string          `json:"publisher"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// RedisPublisher 通过 Redis pub/sub 推送事件，fire-and-forget。
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisPublisher constructs a publisher on the given channel.
func NewRedisPublisher(addr, password string, db int, channel string, logger zerolog.Logger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "event_bus").Logger(),
	}
}

// Publish serialises the event and hands it to the bus. No delivery guarantee
// is consumed; zero subscribers is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, event AlertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	msg, err := json.Marshal(envelope{
		EventType: event.EventType,
		Channel:   p.channel,
		Publisher: "marketwatcher",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, msg).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}

	if receivers == 0 {
		p.logger.Warn().Str("event_type", event.EventType).Str("channel", p.channel).
			Msg("事件已发布但当前没有订阅者")
	} else {
		p.logger.Debug().Str("event_type", event.EventType).Str("symbol", event.Symbol).
			Int64("receivers", receivers).Msg("event published")
	}
	return nil
}

// Close releases the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

var _ Publisher = (*RedisPublisher)(nil)
