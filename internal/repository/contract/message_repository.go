package contract

import (
	"context"
	"time"

	"hiring-chat-be/internal/entity"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	// CompareAndSetStatus moves a message from `from` to `to` only if its stored
	// status is still `from`. It reports whether the row was updated.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to entity.MessageStatus, at time.Time) (bool, error)
	FindByConversation(ctx context.Context, conversationId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error)
	// FindPendingFor returns messages still "sent" that are addressed to recipient.
	FindPendingFor(ctx context.Context, recipient entity.Identity, limit int) ([]*entity.Message, error)
}
