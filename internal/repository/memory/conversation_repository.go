package memory

import (
	"context"
	"sort"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/repository/contract"

	"github.com/google/uuid"
)

type ConversationRepository struct {
	store   *ChatStore
	journal *journal
}

func NewConversationRepository(store *ChatStore) contract.ConversationRepository {
	return &ConversationRepository{store: store}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := triple{conversation.CompanyId, conversation.CandidateId, conversation.JobId}
	if _, exists := r.store.triples[key]; exists {
		return contract.ErrDuplicate
	}
	if conversation.Id == uuid.Nil {
		conversation.Id = uuid.New()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = r.store.now()
	}

	id := conversation.Id
	r.store.conversations[id] = cloneConversation(conversation)
	r.store.triples[key] = id
	r.journal.record(func() {
		delete(r.store.conversations, id)
		delete(r.store.triples, key)
	})
	return nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneConversation(r.store.conversations[id]), nil
}

func (r *ConversationRepository) FindByTriple(ctx context.Context, companyId, candidateId, jobId uuid.UUID) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.triples[triple{companyId, candidateId, jobId}]
	if !ok {
		return nil, nil
	}
	return cloneConversation(r.store.conversations[id]), nil
}

func (r *ConversationRepository) FindByParticipant(ctx context.Context, participant entity.Identity, limit, offset int) ([]*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	var result []*entity.Conversation
	for _, c := range r.store.conversations {
		if c.HasParticipant(participant) {
			result = append(result, cloneConversation(c))
		}
	}
	r.store.mu.RUnlock()

	// Most recently active first, conversations without messages last.
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return window(result, limit, offset), nil
}

func (r *ConversationRepository) NextSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.conversations[id]
	if !ok {
		return 0, contract.ErrNotFound
	}
	prev := c.LastSeq
	c.LastSeq++
	r.journal.record(func() { c.LastSeq = prev })
	return c.LastSeq, nil
}

func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id uuid.UUID, messageId uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.conversations[id]
	if !ok {
		return contract.ErrNotFound
	}
	prev := *c
	mid, ts, updated := messageId, at, r.store.now()
	c.LastMessageId = &mid
	c.LastMessageAt = &ts
	c.UpdatedAt = &updated
	r.journal.record(func() { *c = prev })
	return nil
}

func window[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
