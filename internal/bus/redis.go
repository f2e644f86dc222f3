package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const redisChannelPrefix = "signage:invalidate:"

// RedisChannel is the pub/sub channel events for t travel on.
func RedisChannel(t model.Target) string {
	return redisChannelPrefix + string(t.Type) + ":" + t.Key()
}

// RedisBus fans events out across server instances over Redis pub/sub. One
// PubSub connection is shared by every local subscriber; a channel is
// subscribed while at least one handler wants it.
type RedisBus struct {
	client *redis.Client
	d      *dispatcher

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisBus(ctx context.Context, client *redis.Client) *RedisBus {
	b := &RedisBus{
		client: client,
		d:      newDispatcher(),
		pubsub: client.Subscribe(ctx),
	}
	go b.listen(b.pubsub.Channel())
	return b
}

func (b *RedisBus) listen(ch <-chan *redis.Message) {
	for msg := range ch {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn().Err(err).Str("channel", msg.Channel).Msg("undecodable invalidation message")
			continue
		}
		b.d.dispatch(ev)
	}
	log.Debug().Msg("redis bus listener stopped")
}

// Publish sends the batch in a single pipeline round trip.
func (b *RedisBus) Publish(ctx context.Context, events ...Event) error {
	events = Dedupe(events)
	if len(events) == 0 {
		return nil
	}
	pipe := b.client.Pipeline()
	for _, ev := range events {
		target, err := ev.Target()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, RedisChannel(target), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %d invalidations: %w", len(events), err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, target model.Target, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, first := b.d.add(target, h)
	if first {
		if err := b.pubsub.Subscribe(ctx, RedisChannel(target)); err != nil {
			b.d.remove(target, id)
			return nil, fmt.Errorf("subscribe %s: %w", target, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(target, id) })
	}, nil
}

func (b *RedisBus) unsubscribe(target model.Target, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.d.remove(target, id) {
		return
	}
	if err := b.pubsub.Unsubscribe(context.Background(), RedisChannel(target)); err != nil {
		log.Warn().Err(err).Str("target", target.String()).Msg("redis unsubscribe failed")
	}
}

func (b *RedisBus) Close() error {
	return b.pubsub.Close()
}
