package contract

import (
	"context"
	"time"

	"hiring-chat-be/internal/entity"

	"github.com/google/uuid"
)

// ConversationRepository finders return (nil, nil) when nothing matches.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error)
	FindByTriple(ctx context.Context, companyId, candidateId, jobId uuid.UUID) (*entity.Conversation, error)
	FindByParticipant(ctx context.Context, participant entity.Identity, limit, offset int) ([]*entity.Conversation, error)
	// NextSeq increments and returns the conversation's append counter.
	NextSeq(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateLastMessage(ctx context.Context, id uuid.UUID, messageId uuid.UUID, at time.Time) error
}
