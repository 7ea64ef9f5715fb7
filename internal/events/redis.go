package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "mindful:sessions"

const (
	typeSessionStarted = "session_started"
	typeSessionEnded   = "session_ended"
)

type envelope struct {
	Instance string `json:"instance"`
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
}

// RedisRelay mirrors session events between service instances over a pub/sub channel.
type RedisRelay struct {
	client     *redis.Client
	bus        *Bus
	channel    string
	instanceID string
}

func NewRedisRelay(redisURL, channel string, bus *Bus) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}

	return &RedisRelay{
		client:     redis.NewClient(opts),
		bus:        bus,
		channel:    channel,
		instanceID: uuid.NewString(),
	}, nil
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

// Run forwards local session events to Redis and remote ones to the bus until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	r.bus.Subscribe(func(ctx context.Context, e Event) {
		payload, ok := r.encode(e)
		if !ok {
			return
		}
		if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
			zap.S().Warnw("publish session event", zap.Error(err), zap.String("user_id", e.User()))
		}
	})

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe (channel: %s): %w", r.channel, err)
	}

	zap.S().Infow("session relay subscribed", zap.String("channel", r.channel), zap.String("instance", r.instanceID))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if e, ok := r.decode(msg.Payload); ok {
				r.bus.Publish(ctx, e)
			}
		}
	}
}

// encode returns false for events that must not leave this instance.
func (r *RedisRelay) encode(e Event) (string, bool) {
	env := envelope{Instance: r.instanceID, UserID: e.User()}
	switch ev := e.(type) {
	case SessionStarted:
		if ev.Remote {
			return "", false
		}
		env.Type = typeSessionStarted
	case SessionEnded:
		if ev.Remote {
			return "", false
		}
		env.Type = typeSessionEnded
	default:
		return "", false
	}

	data, err := json.Marshal(env)
	if err != nil {
		zap.S().Errorw("encode session event", zap.Error(err))
		return "", false
	}
	return string(data), true
}

// decode drops messages published by this instance.
func (r *RedisRelay) decode(payload string) (Event, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		zap.S().Warnw("decode session event", zap.Error(err))
		return nil, false
	}
	if env.Instance == r.instanceID || env.UserID == "" {
		return nil, false
	}

	switch env.Type {
	case typeSessionStarted:
		return SessionStarted{UserID: env.UserID, Remote: true}, true
	case typeSessionEnded:
		return SessionEnded{UserID: env.UserID, Remote: true}, true
	default:
		return nil, false
	}
}
