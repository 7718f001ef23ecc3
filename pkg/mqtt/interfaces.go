package mqtt

import "context"

// Client is the broker connection shared by the notification sink, the
// analysis context publisher, the raw sensor feed and the test clock
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()

	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MessageHandler is called on the client's delivery goroutine
type MessageHandler func(Message)

// Message is a received MQTT message
type Message interface {
	Topic() string
	Payload() []byte
}
