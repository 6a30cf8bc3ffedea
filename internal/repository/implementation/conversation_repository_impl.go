package implementation

import (
	"context"
	"errors"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/mapper"
	"hiring-chat-be/internal/model"
	"hiring-chat-be/internal/repository/contract"
	"hiring-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewConversationRepository(db *gorm.DB) contract.ConversationRepository {
	return &ConversationRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

// Create inserts the conversation. A concurrent insert of the same triple loses
// on idx_conversations_triple and gets contract.ErrDuplicate.
func (r *ConversationRepositoryImpl) Create(ctx context.Context, conversation *entity.Conversation) error {
	m := r.mapper.ConversationToModel(conversation)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "candidate_id"}, {Name: "job_id"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return contract.ErrDuplicate
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrDuplicate
	}
	*conversation = *r.mapper.ConversationToEntity(m)
	return nil
}

func (r *ConversationRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	var m model.Conversation
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ConversationToEntity(&m), nil
}

func (r *ConversationRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *ConversationRepositoryImpl) FindByTriple(ctx context.Context, companyId, candidateId, jobId uuid.UUID) (*entity.Conversation, error) {
	return r.findOne(ctx, specification.ByConversationTriple{
		CompanyID:   companyId,
		CandidateID: candidateId,
		JobID:       jobId,
	})
}

func (r *ConversationRepositoryImpl) FindByParticipant(ctx context.Context, participant entity.Identity, limit, offset int) ([]*entity.Conversation, error) {
	var models []*model.Conversation
	query := specification.ApplyAll(r.db.WithContext(ctx),
		specification.ByParticipant{Participant: participant},
		specification.OrderBy{Field: "last_message_at IS NULL"},
		specification.OrderBy{Field: "last_message_at", Desc: true},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Conversation, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ConversationToEntity(m)
	}
	return entities, nil
}

// NextSeq takes the conversation row lock for the rest of the enclosing
// transaction, which serializes appends within one conversation.
func (r *ConversationRepositoryImpl) NextSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	var m model.Conversation
	result := r.db.WithContext(ctx).
		Model(&m).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "last_seq"}}}).
		Where("id = ?", id).
		UpdateColumn("last_seq", gorm.Expr("last_seq + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, contract.ErrNotFound
	}
	return m.LastSeq, nil
}

func (r *ConversationRepositoryImpl) UpdateLastMessage(ctx context.Context, id uuid.UUID, messageId uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_id": messageId,
			"last_message_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}
