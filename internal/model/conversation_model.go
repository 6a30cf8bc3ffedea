package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is unique per (company, candidate, job). LastSeq is incremented in
// a single UPDATE ... RETURNING on every append and orders the conversation's messages.
type Conversation struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyId     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_triple,priority:1;index:idx_conversations_company"`
	CandidateId   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_triple,priority:2;index:idx_conversations_candidate"`
	JobId         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_triple,priority:3"`
	LastMessageId *uuid.UUID     `gorm:"type:uuid"`
	LastMessageAt *time.Time     `gorm:"index:idx_conversations_last_message_at"`
	LastSeq       int64          `gorm:"not null;default:0"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
	Messages      []Message      `gorm:"foreignKey:ConversationId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
}

func (Conversation) TableName() string {
	return "conversations"
}
