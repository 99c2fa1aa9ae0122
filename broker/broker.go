// Package broker abstracts the durable message bus. Producers publish
// UTF-8 JSON payloads to named queues; consumers subscribe handlers. The
// AMQP implementation is the production transport; the in-memory broker
// backs tests and single-process setups.
package broker

import "context"

// MessageHandler processes one message. A returned error marks the message
// as failed for logging; delivery is still acknowledged (on_failure = ack),
// so a poison message cannot loop-redeliver.
type MessageHandler interface {
	HandleMessage(message []byte) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(message []byte) error

// HandleMessage implements MessageHandler.
func (f MessageHandlerFunc) HandleMessage(message []byte) error { return f(message) }

// MessageProducer publishes messages to named queues.
type MessageProducer interface {
	SendMessage(queue string, message []byte) error
}

// MessageConsumer subscribes handlers to named queues.
type MessageConsumer interface {
	Subscribe(queue string, handler MessageHandler) error
	Unsubscribe(queue string) error
}

// MessageBroker is a transport backend: a producer plus a consumer with a
// managed lifecycle. Subscriptions made before Start become active when the
// broker starts.
type MessageBroker interface {
	Producer() MessageProducer
	Consumer() MessageConsumer
	Subscribe(queue string, handler MessageHandler) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
