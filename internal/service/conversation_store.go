package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/repository/contract"
	"hiring-chat-be/internal/repository/memory"
	"hiring-chat-be/internal/repository/unitofwork"
	"hiring-chat-be/pkg/apperr"

	"github.com/google/uuid"
)

const (
	defaultMaxContentLength = 4000
	defaultHistoryPageSize  = 50
	// Status CAS attempts before giving up. Statuses only move forward, so two
	// lost races already leave the message at read.
	maxStatusAttempts = 3
)

type ConversationStoreConfig struct {
	MaxContentLength int
	HistoryPageSize  int
}

// ConversationStore owns conversations and their append-only message logs.
type ConversationStore struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.ConversationCache
	cfg        ConversationStoreConfig
	logger     logger.ILogger
	now        func() time.Time
}

func NewConversationStore(uowFactory unitofwork.RepositoryFactory, cache *memory.ConversationCache, cfg ConversationStoreConfig, log logger.ILogger) *ConversationStore {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContentLength
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = defaultHistoryPageSize
	}
	return &ConversationStore{
		uowFactory: uowFactory,
		cache:      cache,
		cfg:        cfg,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperr.ErrStorageUnavailable, op, err)
}

// GetOrCreateConversation returns the conversation for the triple, creating it
// when absent. created reports whether this call inserted it.
func (s *ConversationStore) GetOrCreateConversation(ctx context.Context, companyID, candidateID, jobID uuid.UUID) (*entity.Conversation, bool, error) {
	if companyID == uuid.Nil || candidateID == uuid.Nil || jobID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: company, candidate and job ids are required", apperr.ErrInvalidArgument)
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository()

	existing, err := repo.FindByTriple(ctx, companyID, candidateID, jobID)
	if err != nil {
		return nil, false, storageErr("find conversation", err)
	}
	if existing != nil {
		s.cache.Save(existing)
		return existing, false, nil
	}

	conv := &entity.Conversation{
		Id:          uuid.New(),
		CompanyId:   companyID,
		CandidateId: candidateID,
		JobId:       jobID,
		CreatedAt:   s.now(),
	}
	if err := repo.Create(ctx, conv); err != nil {
		// Lost the insert race, or a transient failure: re-fetch once.
		existing, findErr := repo.FindByTriple(ctx, companyID, candidateID, jobID)
		if findErr == nil && existing != nil {
			s.cache.Save(existing)
			return existing, false, nil
		}
		if !errors.Is(err, contract.ErrDuplicate) {
			s.logger.Error("ConversationStore", "Failed to create conversation", map[string]interface{}{
				"company_id":   companyID,
				"candidate_id": candidateID,
				"job_id":       jobID,
				"error":        err,
			})
		}
		return nil, false, storageErr("create conversation", err)
	}

	s.cache.Save(conv)
	s.logger.Info("ConversationStore", "Conversation created", map[string]interface{}{"conversation_id": conv.Id, "job_id": jobID})
	return conv, true, nil
}

// GetConversation serves participants from cache; LastSeq and the last
// message pointer may be stale on a cache hit.
func (s *ConversationStore) GetConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	if conv, ok := s.cache.Get(id); ok {
		return conv, nil
	}
	return s.loadConversation(ctx, id)
}

func (s *ConversationStore) loadConversation(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	conv, err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find conversation", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrConversationNotFound, id)
	}
	s.cache.Save(conv)
	return conv, nil
}

func (s *ConversationStore) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxContentLength {
		return fmt.Errorf("%w: limit is %d characters", apperr.ErrContentTooLong, s.cfg.MaxContentLength)
	}
	return nil
}

// AppendMessage stores a new message with status sent. The sequence bump, the
// insert and the last-message update commit together or not at all.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, sender entity.Identity, content string) (*entity.Message, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(sender) {
		return nil, fmt.Errorf("%w: %s in %s", apperr.ErrNotAParticipant, sender, conversationID)
	}
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, storageErr("begin append", err)
	}
	defer uow.Rollback()

	seq, err := uow.ConversationRepository().NextSeq(ctx, conv.Id)
	if err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrConversationNotFound, conv.Id)
		}
		return nil, storageErr("next seq", err)
	}

	msg := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		SenderId:       sender.UserId,
		SenderKind:     sender.Kind,
		Content:        content,
		Status:         entity.MessageStatusSent,
		Seq:            seq,
		CreatedAt:      s.now(),
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		return nil, storageErr("insert message", err)
	}
	if err := uow.ConversationRepository().UpdateLastMessage(ctx, conv.Id, msg.Id, msg.CreatedAt); err != nil {
		return nil, storageErr("update last message", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, storageErr("commit append", err)
	}
	return msg, nil
}

func (s *ConversationStore) GetMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	msg, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find message", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrMessageNotFound, id)
	}
	return msg, nil
}

// UpdateStatus moves a message forward to status. An equal status returns the
// current record with changed=false; a lower one fails with ErrInvalidTransition.
func (s *ConversationStore) UpdateStatus(ctx context.Context, messageID uuid.UUID, status entity.MessageStatus) (*entity.Message, bool, error) {
	if !status.Valid() {
		return nil, false, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, status)
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).MessageRepository()
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		msg, err := repo.FindByID(ctx, messageID)
		if err != nil {
			return nil, false, storageErr("find message", err)
		}
		if msg == nil {
			return nil, false, fmt.Errorf("%w: %s", apperr.ErrMessageNotFound, messageID)
		}
		if msg.Status == status {
			return msg, false, nil
		}
		if status.Before(msg.Status) {
			return msg, false, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, msg.Status, status)
		}

		at := s.now()
		ok, err := repo.CompareAndSetStatus(ctx, messageID, msg.Status, status, at)
		if err != nil {
			return nil, false, storageErr("update status", err)
		}
		if !ok {
			continue
		}

		msg.Status = status
		if msg.DeliveredAt == nil {
			msg.DeliveredAt = &at
		}
		if status == entity.MessageStatusRead && msg.ReadAt == nil {
			msg.ReadAt = &at
		}
		return msg, true, nil
	}
	return nil, false, storageErr("update status", fmt.Errorf("message %s kept changing", messageID))
}

// ListMessages yields the conversation's messages in seq order, fetching a page
// at a time as the caller ranges. Breaking out of the loop stops fetching.
// A missing conversation is yielded as the first and only error.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID uuid.UUID, page entity.Pagination) iter.Seq2[*entity.Message, error] {
	return func(yield func(*entity.Message, error) bool) {
		if _, err := s.GetConversation(ctx, conversationID); err != nil {
			yield(nil, err)
			return
		}

		pageSize := page.PageSize
		if pageSize <= 0 {
			pageSize = s.cfg.HistoryPageSize
		}

		repo := s.uowFactory.NewUnitOfWork(ctx).MessageRepository()
		after, emitted := page.AfterSeq, 0
		for {
			limit := pageSize
			if page.Limit > 0 {
				limit = min(limit, page.Limit-emitted)
			}
			if limit <= 0 {
				return
			}

			batch, err := repo.FindByConversation(ctx, conversationID, after, limit)
			if err != nil {
				yield(nil, storageErr("list messages", err))
				return
			}
			for _, msg := range batch {
				if !yield(msg, nil) {
					return
				}
				after = msg.Seq
				emitted++
			}
			if len(batch) < limit {
				return
			}
		}
	}
}

// ListMessagesPage returns up to limit messages after afterSeq and whether more follow.
func (s *ConversationStore) ListMessagesPage(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, bool, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryPageSize
	}
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, false, err
	}

	messages, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().FindByConversation(ctx, conversationID, afterSeq, limit+1)
	if err != nil {
		return nil, false, storageErr("list messages", err)
	}
	if len(messages) > limit {
		return messages[:limit], true, nil
	}
	return messages, false, nil
}

// ListConversations returns identity's conversations, most recently active first.
func (s *ConversationStore) ListConversations(ctx context.Context, identity entity.Identity, limit, offset int) ([]*entity.Conversation, error) {
	conversations, err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindByParticipant(ctx, identity, limit, offset)
	if err != nil {
		return nil, storageErr("list conversations", err)
	}
	return conversations, nil
}

// PendingFor returns messages addressed to identity that are still sent,
// oldest first.
func (s *ConversationStore) PendingFor(ctx context.Context, identity entity.Identity, limit int) ([]*entity.Message, error) {
	messages, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().FindPendingFor(ctx, identity, limit)
	if err != nil {
		return nil, storageErr("pending messages", err)
	}
	return messages, nil
}
