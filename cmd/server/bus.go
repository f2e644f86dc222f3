package main

import (
	"context"
	"fmt"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/bus"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	redisclient "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/redis"
)

// OpenBus connects the invalidation transport named by cfg.BusBackend.
func OpenBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	switch cfg.BusBackend {
	case config.BusLocal:
		return bus.NewLocalBus(), nil
	case config.BusRedis:
		client, err := redisclient.Connect(ctx, cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return bus.NewRedisBus(ctx, client), nil
	case config.BusMQTT:
		client, err := bus.DialMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			return nil, err
		}
		return bus.NewMQTTBus(client), nil
	}
	return nil, fmt.Errorf("unknown bus backend %q", cfg.BusBackend)
}
