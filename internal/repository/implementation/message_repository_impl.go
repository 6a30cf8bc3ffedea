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
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.MessageToModel(message)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return contract.ErrDuplicate
		}
		return err
	}
	*message = *r.mapper.MessageToEntity(m)
	return nil
}

func (r *MessageRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *MessageRepositoryImpl) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to entity.MessageStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       string(to),
		"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
	}
	if to == entity.MessageStatusRead {
		updates["read_at"] = gorm.Expr("COALESCE(read_at, ?)", at)
	}

	result := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *MessageRepositoryImpl) FindByConversation(ctx context.Context, conversationId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error) {
	var models []*model.Message
	query := specification.ApplyAll(r.db.WithContext(ctx),
		specification.ByConversationID{ConversationID: conversationId},
		specification.AfterSeq{Seq: afterSeq},
		specification.OrderBy{Field: "seq"},
		specification.Pagination{Limit: limit},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *MessageRepositoryImpl) FindPendingFor(ctx context.Context, recipient entity.Identity, limit int) ([]*entity.Message, error) {
	var models []*model.Message
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.Message{}),
		specification.PendingForRecipient{Recipient: recipient},
		specification.ByStatus{Status: entity.MessageStatusSent},
		specification.OrderBy{Field: "chat_messages.created_at"},
		specification.Pagination{Limit: limit},
	)
	if err := query.Select("chat_messages.*").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *MessageRepositoryImpl) toEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, m := range models {
		entities[i] = r.mapper.MessageToEntity(m)
	}
	return entities
}
