package service

import (
	"context"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/pkg/events"
)

// EventPublisher hands domain events to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

func messageSentEvent(conv *entity.Conversation, msg *entity.Message) events.BaseEvent {
	recipient, _ := conv.Counterpart(msg.Sender())
	return events.BaseEvent{
		Type: events.TypeMessageSent,
		Data: map[string]interface{}{
			"message_id":      msg.Id.String(),
			"conversation_id": msg.ConversationId.String(),
			"job_id":          conv.JobId.String(),
			"sender_id":       msg.SenderId.String(),
			"sender_type":     string(msg.SenderKind),
			"recipient_id":    recipient.UserId.String(),
			"recipient_type":  string(recipient.Kind),
			"seq":             msg.Seq,
		},
		OccurredAt: msg.CreatedAt,
	}
}

func statusChangedEvent(msg *entity.Message) events.BaseEvent {
	return events.BaseEvent{
		Type: events.TypeMessageStatusChanged,
		Data: map[string]interface{}{
			"message_id":      msg.Id.String(),
			"conversation_id": msg.ConversationId.String(),
			"sender_id":       msg.SenderId.String(),
			"sender_type":     string(msg.SenderKind),
			"status":          string(msg.Status),
		},
		OccurredAt: time.Now().UTC(),
	}
}

func conversationCreatedEvent(conv *entity.Conversation) events.BaseEvent {
	return events.BaseEvent{
		Type: events.TypeConversationCreated,
		Data: map[string]interface{}{
			"conversation_id": conv.Id.String(),
			"company_id":      conv.CompanyId.String(),
			"candidate_id":    conv.CandidateId.String(),
			"job_id":          conv.JobId.String(),
		},
		OccurredAt: conv.CreatedAt,
	}
}
