package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// publishTimeout bounds how long a tick waits on the broker
const publishTimeout = 5 * time.Second

type subscription struct {
	qos     byte
	handler pahomqtt.MessageHandler
}

// mqttClient implements the Client interface using the Paho MQTT client.
// Subscriptions are remembered and replayed on every (re)connect, since the
// session is clean and the broker forgets them.
type mqttClient struct {
	client pahomqtt.Client
	cfg    *config.Config
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient creates a new MQTT client with the given configuration
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	m := &mqttClient{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTAddress())

	if cfg.MQTTClientID != "" {
		opts.SetClientID(cfg.MQTTClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("%s-%d", cfg.ServiceName, time.Now().Unix()))
	}
	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// Retained presence: brokers flip it to offline if the agent dies
	statusTopic := StatusTopic(cfg.ServiceName)
	opts.SetWill(statusTopic, StatusOffline, 1, true)

	opts.OnConnect = func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", "broker", cfg.MQTTAddress())
		c.Publish(statusTopic, 1, true, StatusOnline)
		m.resubscribe(c)
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}
	opts.OnReconnecting = func(c pahomqtt.Client, opts *pahomqtt.ClientOptions) {
		logger.Info("MQTT reconnecting...")
	}

	m.client = pahomqtt.NewClient(opts)
	return m
}

// Connect establishes a connection to the MQTT broker
func (m *mqttClient) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MQTT broker", "broker", m.cfg.MQTTAddress())

	token := m.client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect marks the agent offline and closes the connection to the MQTT broker
func (m *mqttClient) Disconnect() {
	m.logger.Info("Disconnecting from MQTT broker")
	if m.client.IsConnected() {
		m.client.Publish(StatusTopic(m.cfg.ServiceName), 1, true, StatusOffline).WaitTimeout(time.Second)
	}
	m.client.Disconnect(250) // 250ms grace period
}

// Subscribe registers the handler and subscribes right away when connected.
// While disconnected the subscription is deferred to the next connect.
func (m *mqttClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	sub := subscription{
		qos: qos,
		handler: func(client pahomqtt.Client, msg pahomqtt.Message) {
			handler(&mqttMessage{msg: msg})
		},
	}

	m.mu.Lock()
	m.subs[topic] = sub
	m.mu.Unlock()

	if !m.client.IsConnected() {
		m.logger.Info("MQTT not connected, subscription deferred", "topic", topic)
		return nil
	}

	token := m.client.Subscribe(topic, qos, sub.handler)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out subscribing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	m.logger.Info("Subscribed to MQTT topic", "topic", topic, "qos", qos)
	return nil
}

// resubscribe replays every registered subscription; runs on the paho callback goroutine
func (m *mqttClient) resubscribe(c pahomqtt.Client) {
	m.mu.Lock()
	subs := make(map[string]subscription, len(m.subs))
	for topic, sub := range m.subs {
		subs[topic] = sub
	}
	m.mu.Unlock()

	for topic, sub := range subs {
		token := c.Subscribe(topic, sub.qos, sub.handler)
		go func(topic string) {
			if token.WaitTimeout(publishTimeout) && token.Error() == nil {
				m.logger.Info("Resubscribed to MQTT topic", "topic", topic)
				return
			}
			m.logger.Warn("Failed to resubscribe to MQTT topic", "topic", topic, "error", token.Error())
		}(topic)
	}
}

// Publish publishes a message to a topic
func (m *mqttClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	m.logger.Debug("Published message", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected returns whether the client is currently connected
func (m *mqttClient) IsConnected() bool {
	return m.client.IsConnected()
}

// mqttMessage adapts a Paho message to Message
type mqttMessage struct {
	msg pahomqtt.Message
}

func (m *mqttMessage) Topic() string   { return m.msg.Topic() }
func (m *mqttMessage) Payload() []byte { return m.msg.Payload() }
