package relay

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Ghoster04/AntCrime/internal/config"
)

const (
	mqttQoS           = 1
	mqttIngestTimeout = 5 * time.Second
)

// Ingester consumes raw device frames.
type Ingester interface {
	Ingest(ctx context.Context, frame []byte) error
}

// MQTTIngest subscribes to device event topics and feeds every payload to
// the relay, the same way socket frames are.
type MQTTIngest struct {
	client mqtt.Client
	topic  string
	target Ingester
	log    *zap.Logger
}

// NewMQTTIngest connects to the broker. Reconnects are left to paho.
func NewMQTTIngest(cfg config.MQTTConfig, target Ingester, log *zap.Logger) (*MQTTIngest, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	m := &MQTTIngest{topic: cfg.Topic, target: target, log: log}
	// Resubscribe on every (re)connect; a clean session drops subscriptions.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(m.topic, mqttQoS, m.handle); token.Wait() && token.Error() != nil {
			log.Error("mqtt subscribe failed", zap.String("topic", m.topic), zap.Error(token.Error()))
			return
		}
		log.Info("mqtt subscribed", zap.String("topic", m.topic))
	})

	m.client = mqtt.NewClient(opts)
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return m, nil
}

func (m *MQTTIngest) handle(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), mqttIngestTimeout)
	defer cancel()
	if err := m.target.Ingest(ctx, msg.Payload()); err != nil {
		m.log.Debug("mqtt frame rejected", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (m *MQTTIngest) Close() {
	m.client.Disconnect(250)
}
