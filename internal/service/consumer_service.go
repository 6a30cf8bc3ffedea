package service

import (
	"context"

	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventForwarder ships events to systems outside this process (NATS).
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forwarder  EventForwarder
	logger     logger.ILogger
}

// NewConsumerService builds the bus consumer. forwarder may be nil, in which
// case events are only logged.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder EventForwarder,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forwarder:  forwarder,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage acks every message, including ones that fail to forward.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	event, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error("ConsumerService", "Failed to decode event", map[string]interface{}{"message_uuid": msg.UUID, "error": err})
		return
	}

	cs.logger.Debug("ConsumerService", "Event received", map[string]interface{}{"type": event.EventType(), "message_uuid": msg.UUID})

	if cs.forwarder == nil {
		return
	}
	if err := cs.forwarder.Publish(ctx, event); err != nil {
		cs.logger.Warn("ConsumerService", "Failed to forward event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}
