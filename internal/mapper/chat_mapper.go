package mapper

import (
	"time"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Conversation Mappers

func (m *ChatMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:            c.Id,
		CompanyId:     c.CompanyId,
		CandidateId:   c.CandidateId,
		JobId:         c.JobId,
		LastMessageId: c.LastMessageId,
		LastMessageAt: c.LastMessageAt,
		LastSeq:       c.LastSeq,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *ChatMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:            c.Id,
		CompanyId:     c.CompanyId,
		CandidateId:   c.CandidateId,
		JobId:         c.JobId,
		LastMessageId: c.LastMessageId,
		LastMessageAt: c.LastMessageAt,
		LastSeq:       c.LastSeq,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}
	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		SenderKind:     entity.ParticipantKind(msg.SenderKind),
		Content:        msg.Content,
		Status:         entity.MessageStatus(msg.Status),
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}
	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		SenderKind:     string(msg.SenderKind),
		Content:        msg.Content,
		Status:         string(msg.Status),
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
}

// Wire payloads

func (m *ChatMapper) MessageToPayload(msg *entity.Message) dto.MessagePayload {
	return dto.MessagePayload{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderType:     string(msg.SenderKind),
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToStatusPayload(msg *entity.Message) dto.StatusUpdatePayload {
	return dto.StatusUpdatePayload{
		MessageId:      msg.Id,
		ConversationId: msg.ConversationId,
		Status:         string(msg.Status),
	}
}

// HTTP responses

func (m *ChatMapper) ConversationToResponse(c *entity.Conversation) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:            c.Id,
		CompanyId:     c.CompanyId,
		CandidateId:   c.CandidateId,
		JobId:         c.JobId,
		LastMessageId: c.LastMessageId,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ChatMapper) MessageToResponse(msg *entity.Message) *dto.MessageResponse {
	return &dto.MessageResponse{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderType:     string(msg.SenderKind),
		SenderId:       msg.SenderId,
		Content:        msg.Content,
		Status:         string(msg.Status),
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
		DeliveredAt:    msg.DeliveredAt,
		ReadAt:         msg.ReadAt,
	}
}
