package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

const mqttQoS = 1

// MQTTTopic is where events for t are published, e.g. tv/screen/5/events.
// Devices that speak MQTT can subscribe to their own topic directly.
func MQTTTopic(t model.Target) string {
	return fmt.Sprintf("tv/%s/%s/events", t.Type, t.Key())
}

// DialMQTT connects a paho client to brokerURL with auto-reconnect.
func DialMQTT(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		log.Debug().Str("topic", msg.Topic()).Msg("unrouted mqtt message")
	})
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// MQTTBus publishes at QoS 1 and keeps one broker subscription per topic,
// fanning messages out to local handlers.
type MQTTBus struct {
	client mqtt.Client
	d      *dispatcher
	mu     sync.Mutex
}

func NewMQTTBus(client mqtt.Client) *MQTTBus {
	return &MQTTBus{client: client, d: newDispatcher()}
}

func (b *MQTTBus) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, ev := range Dedupe(events) {
		target, err := ev.Target()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := wait(ctx, b.client.Publish(MQTTTopic(target), mqttQoS, false, payload)); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

func (b *MQTTBus) Subscribe(ctx context.Context, target model.Target, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, first := b.d.add(target, h)
	if first {
		token := b.client.Subscribe(MQTTTopic(target), mqttQoS, b.onMessage)
		if err := wait(ctx, token); err != nil {
			b.d.remove(target, id)
			return nil, fmt.Errorf("subscribe %s: %w", target, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(target, id) })
	}, nil
}

func (b *MQTTBus) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("undecodable invalidation message")
		return
	}
	b.d.dispatch(ev)
}

func (b *MQTTBus) unsubscribe(target model.Target, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.d.remove(target, id) {
		return
	}
	token := b.client.Unsubscribe(MQTTTopic(target))
	if err := wait(context.Background(), token); err != nil {
		log.Warn().Err(err).Str("target", target.String()).Msg("mqtt unsubscribe failed")
	}
}

// Close drops every broker subscription and disconnects.
func (b *MQTTBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var topics []string
	for _, t := range b.d.targets() {
		topics = append(topics, MQTTTopic(t))
	}
	var err error
	if len(topics) > 0 {
		err = wait(context.Background(), b.client.Unsubscribe(topics...))
	}
	b.client.Disconnect(250)
	return err
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
