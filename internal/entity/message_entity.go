package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the delivery stage of a message. Statuses are ordered
// sent < delivered < read and a message never moves backwards.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Rank returns the position of s in the delivery order, 0 for unknown values.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	default:
		return 0
	}
}

func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

// Before reports whether s strictly precedes other.
func (s MessageStatus) Before(other MessageStatus) bool {
	return s.Rank() < other.Rank()
}

// Next returns the immediate successor of s. Read has none.
func (s MessageStatus) Next() (MessageStatus, bool) {
	switch s {
	case MessageStatusSent:
		return MessageStatusDelivered, true
	case MessageStatusDelivered:
		return MessageStatusRead, true
	default:
		return "", false
	}
}

func ParseMessageStatus(s string) (MessageStatus, error) {
	status := MessageStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown message status %q", s)
	}
	return status, nil
}

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	SenderId       uuid.UUID
	SenderKind     ParticipantKind
	Content        string
	Status         MessageStatus
	Seq            int64
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	ReadAt         *time.Time
}

func (m *Message) Sender() Identity {
	return Identity{UserId: m.SenderId, Kind: m.SenderKind}
}

// Pagination selects a window of a conversation's history by sequence number.
type Pagination struct {
	AfterSeq int64
	PageSize int // rows fetched per round trip
	Limit    int // total rows, 0 means no limit
}
