package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Pub/sub channel names.
const (
	ChannelApplicationDecided   = "EVENT_APPLICATION_DECIDED"
	ChannelApplicationSubmitted = "EVENT_APPLICATION_SUBMITTED"
)

type event[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// RedisPublisher publishes notices on Redis pub/sub for a Relay (or any
// other subscriber) to deliver.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) NotifyApplicationDecision(ctx context.Context, n DecisionNotice) error {
	return p.publish(ctx, ChannelApplicationDecided, n)
}

func (p *RedisPublisher) NotifyNewApplication(ctx context.Context, n NewApplicationNotice) error {
	return p.publish(ctx, ChannelApplicationSubmitted, n)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(event[any]{Type: channel, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Relay subscribes to the notification channels and forwards every event to
// a sink.
type Relay struct {
	rdb  *redis.Client
	sink Notifier
	log  *slog.Logger
}

func NewRelay(rdb *redis.Client, sink Notifier, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{rdb: rdb, sink: sink, log: log}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, ChannelApplicationDecided, ChannelApplicationSubmitted)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	r.log.Info("notification relay subscribed",
		"channels", []string{ChannelApplicationDecided, ChannelApplicationSubmitted})

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.Handle(ctx, msg.Channel, []byte(msg.Payload)); err != nil {
				r.log.Warn("relay delivery failed", "channel", msg.Channel, "err", err)
			}
		}
	}
}

// Handle decodes one pub/sub message and delivers it to the sink.
func (r *Relay) Handle(ctx context.Context, channel string, payload []byte) error {
	switch channel {
	case ChannelApplicationDecided:
		var ev event[DecisionNotice]
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", channel, err)
		}
		return r.sink.NotifyApplicationDecision(ctx, ev.Payload)
	case ChannelApplicationSubmitted:
		var ev event[NewApplicationNotice]
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", channel, err)
		}
		return r.sink.NotifyNewApplication(ctx, ev.Payload)
	}
	return fmt.Errorf("unexpected channel %q", channel)
}
