package broker

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryBroker is an in-process MessageBroker. Messages are delivered
// synchronously to every subscribed handler on the publisher's goroutine.
type MemoryBroker struct {
	mu            sync.RWMutex
	subscriptions map[string][]MessageHandler
	logger        *slog.Logger
	producer      *memoryProducer
	consumer      *memoryConsumer
}

// NewMemoryBroker creates an in-memory broker.
func NewMemoryBroker(logger *slog.Logger) *MemoryBroker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &MemoryBroker{
		subscriptions: make(map[string][]MessageHandler),
		logger:        logger,
	}
	b.producer = &memoryProducer{broker: b}
	b.consumer = &memoryConsumer{broker: b}
	return b
}

// Producer returns the producer side of the broker.
func (b *MemoryBroker) Producer() MessageProducer { return b.producer }

// Consumer returns the consumer side of the broker.
func (b *MemoryBroker) Consumer() MessageConsumer { return b.consumer }

// Subscribe registers a handler for a queue.
func (b *MemoryBroker) Subscribe(queue string, handler MessageHandler) error {
	return b.consumer.Subscribe(queue, handler)
}

// SendMessage publishes a message to a queue.
func (b *MemoryBroker) SendMessage(queue string, message []byte) error {
	return b.producer.SendMessage(queue, message)
}

// Start is a no-op; the memory broker is always ready.
func (b *MemoryBroker) Start(_ context.Context) error {
	b.logger.Info("In-memory broker started")
	return nil
}

// Stop drops all subscriptions.
func (b *MemoryBroker) Stop(_ context.Context) error {
	b.mu.Lock()
	b.subscriptions = make(map[string][]MessageHandler)
	b.mu.Unlock()
	b.logger.Info("In-memory broker stopped")
	return nil
}

type memoryProducer struct {
	broker *MemoryBroker
}

func (p *memoryProducer) SendMessage(queue string, message []byte) error {
	p.broker.mu.RLock()
	handlers := p.broker.subscriptions[queue]
	p.broker.mu.RUnlock()

	if len(handlers) == 0 {
		p.broker.logger.Warn("No subscribers for queue", "queue", queue)
		return nil
	}
	for _, handler := range handlers {
		if err := handler.HandleMessage(message); err != nil {
			// Mirrors the broker's ack-on-failure semantics: log and move on.
			p.broker.logger.Error("Message handler failed", "queue", queue, "error", err)
		}
	}
	return nil
}

type memoryConsumer struct {
	broker *MemoryBroker
}

func (c *memoryConsumer) Subscribe(queue string, handler MessageHandler) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.subscriptions[queue] = append(c.broker.subscriptions[queue], handler)
	return nil
}

func (c *memoryConsumer) Unsubscribe(queue string) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	delete(c.broker.subscriptions, queue)
	return nil
}
