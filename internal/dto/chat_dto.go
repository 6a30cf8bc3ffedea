package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound event names.
const (
	EventSend          = "send"
	EventMarkDelivered = "markDelivered"
	EventMarkRead      = "markRead"
	EventTyping        = "typing"
)

// Outbound event names. EventTyping is used in both directions.
const (
	EventMessage      = "message"
	EventStatusUpdate = "statusUpdate"
	EventAck          = "ack"
	EventRejected     = "rejected"
)

// InboundEvent is the envelope of every frame a client sends.
type InboundEvent struct {
	Event string          `json:"event" validate:"required,oneof=send markDelivered markRead typing"`
	Ref   string          `json:"ref,omitempty" validate:"max=64"`
	Data  json.RawMessage `json:"data"`
}

// SendMessageRequest targets a conversation either by id or by its
// (company, candidate, job) triple.
type SendMessageRequest struct {
	ConversationId *uuid.UUID `json:"conversation_id"`
	CompanyId      *uuid.UUID `json:"company_id" validate:"required_without=ConversationId"`
	CandidateId    *uuid.UUID `json:"candidate_id" validate:"required_without=ConversationId"`
	JobId          *uuid.UUID `json:"job_id" validate:"required_without=ConversationId"`
	Content        string     `json:"content"`
}

type MessageReceiptRequest struct {
	MessageId uuid.UUID `json:"message_id" validate:"required"`
}

type TypingRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
}

// OutboundEvent is the envelope of every frame pushed to a client.
type OutboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type MessagePayload struct {
	Id             uuid.UUID `json:"id"`
	ConversationId uuid.UUID `json:"conversationId"`
	SenderType     string    `json:"senderType"`
	SenderId       uuid.UUID `json:"senderId"`
	Content        string    `json:"content"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type StatusUpdatePayload struct {
	MessageId      uuid.UUID `json:"messageId"`
	ConversationId uuid.UUID `json:"conversationId"`
	Status         string    `json:"status"`
}

type TypingPayload struct {
	ConversationId uuid.UUID `json:"conversationId"`
	SenderType     string    `json:"senderType"`
	SenderId       uuid.UUID `json:"senderId"`
}

type AckPayload struct {
	Ref            string     `json:"ref,omitempty"`
	Event          string     `json:"event"`
	MessageId      *uuid.UUID `json:"messageId,omitempty"`
	ConversationId *uuid.UUID `json:"conversationId,omitempty"`
	Status         string     `json:"status,omitempty"`
}

type RejectedPayload struct {
	Ref     string `json:"ref,omitempty"`
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTP

type CreateConversationRequest struct {
	CompanyId   uuid.UUID `json:"company_id" validate:"required"`
	CandidateId uuid.UUID `json:"candidate_id" validate:"required"`
	JobId       uuid.UUID `json:"job_id" validate:"required"`
}

type ConversationResponse struct {
	Id            uuid.UUID  `json:"id"`
	CompanyId     uuid.UUID  `json:"company_id"`
	CandidateId   uuid.UUID  `json:"candidate_id"`
	JobId         uuid.UUID  `json:"job_id"`
	LastMessageId *uuid.UUID `json:"last_message_id"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type MessageResponse struct {
	Id             uuid.UUID  `json:"id"`
	ConversationId uuid.UUID  `json:"conversation_id"`
	SenderType     string     `json:"sender_type"`
	SenderId       uuid.UUID  `json:"sender_id"`
	Content        string     `json:"content"`
	Status         string     `json:"status"`
	Seq            int64      `json:"seq"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	ReadAt         *time.Time `json:"read_at"`
}

type ListMessagesResponse struct {
	Messages     []*MessageResponse `json:"messages"`
	NextAfterSeq int64              `json:"next_after_seq"`
	HasMore      bool               `json:"has_more"`
}
