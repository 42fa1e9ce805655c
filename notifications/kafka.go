package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wagerbook/events"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Notifier forwards wager events from the in-process bus to a Kafka topic so
// downstream consumers (notification senders, analytics) can react without
// touching the wager database.
type Notifier struct {
	writer *kafka.Writer
}

// NewWriter creates a Kafka writer for the wager event topic
func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// NewNotifier creates a notifier over an existing writer
func NewNotifier(writer *kafka.Writer) *Notifier {
	return &Notifier{writer: writer}
}

// envelope is the wire format published to Kafka
type envelope struct {
	Type     events.EventType `json:"type"`
	TsUnixMs int64            `json:"ts_unix_ms"`
	Payload  any              `json:"payload"`
}

// Register subscribes the notifier to every wager event type on the bus
func (n *Notifier) Register(bus *events.Bus) {
	handler := func(ctx context.Context, event events.Event) {
		if err := n.publish(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
			}).WithError(err).Error("Failed to publish event to Kafka")
		}
	}

	for _, t := range []events.EventType{
		events.EventTypeWagerCreated,
		events.EventTypeWagerMatched,
		events.EventTypeWagerSettled,
		events.EventTypeWagerCancelled,
		events.EventTypeWagerStatusChange,
		events.EventTypeEscrowUpdated,
	} {
		bus.Subscribe(t, handler)
	}
}

func (n *Notifier) publish(ctx context.Context, event events.Event) error {
	b, err := json.Marshal(envelope{
		Type:     event.Type(),
		TsUnixMs: time.Now().UnixMilli(),
		Payload:  event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type()),
		Value: b,
		Time:  time.Now(),
	})
}

// Close flushes and closes the underlying writer
func (n *Notifier) Close() error {
	return n.writer.Close()
}
