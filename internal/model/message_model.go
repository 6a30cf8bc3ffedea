package model

import (
	"time"

	"github.com/google/uuid"
)

// Message rows are append-only. Status only moves forward (sent, delivered, read).
type Message struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_conversation_seq,priority:1"`
	SenderId       uuid.UUID `gorm:"type:uuid;not null"`
	SenderKind     string    `gorm:"type:varchar(20);not null"`
	Content        string    `gorm:"type:text;not null"`
	Status         string    `gorm:"type:varchar(20);not null;default:'sent';index:idx_chat_messages_status"`
	Seq            int64     `gorm:"not null;uniqueIndex:idx_chat_messages_conversation_seq,priority:2"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	DeliveredAt    *time.Time
	ReadAt         *time.Time
}

func (Message) TableName() string {
	return "chat_messages"
}
