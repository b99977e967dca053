package eventsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/somo/core"
)

// RedisPublisher publishes events as JSON on a redis channel, so every API instance can deliver them.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  core.Logger
}

var _ core.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to conf.Events.RedisAddr and checks that it is reachable.
func NewRedisPublisher(ctx context.Context, conf *core.Config, logger core.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Events.RedisAddr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}

	return &RedisPublisher{rdb: rdb, channel: conf.Events.RedisChannel, logger: logger}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, evt core.Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if err = p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return errors.Wrap(err, "publishing event")
	}
	return nil
}

// StartForwarder delivers the channel's events to hub until ctx is done.
// It returns once the subscription is confirmed.
func (p *RedisPublisher) StartForwarder(ctx context.Context, hub *LocalHub) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "subscribing to redis")
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var evt core.Event
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					p.logger.Warn(fmt.Sprintf("bad event payload: %v", err), err)
					continue
				}
				_ = hub.Publish(ctx, evt)
			}
		}
	}()
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
