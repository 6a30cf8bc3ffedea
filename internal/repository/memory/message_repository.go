package memory

import (
	"context"
	"sort"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/repository/contract"

	"github.com/google/uuid"
)

type MessageRepository struct {
	store   *ChatStore
	journal *journal
}

func NewMessageRepository(store *ChatStore) contract.MessageRepository {
	return &MessageRepository{store: store}
}

func (r *MessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.conversations[message.ConversationId]; !ok {
		return contract.ErrNotFound
	}
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if _, exists := r.store.messages[message.Id]; exists {
		return contract.ErrDuplicate
	}
	ids := r.store.history[message.ConversationId]
	if n := len(ids); n > 0 && r.store.messages[ids[n-1]].Seq >= message.Seq {
		return contract.ErrDuplicate
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = r.store.now()
	}

	id, convId := message.Id, message.ConversationId
	r.store.messages[id] = cloneMessage(message)
	r.store.history[convId] = append(ids, id)
	r.journal.record(func() {
		delete(r.store.messages, id)
		h := r.store.history[convId]
		r.store.history[convId] = h[:len(h)-1]
	})
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return cloneMessage(r.store.messages[id]), nil
}

func (r *MessageRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to entity.MessageStatus, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, ok := r.store.messages[id]
	if !ok || m.Status != from {
		return false, nil
	}
	prev := *m
	m.Status = to
	ts := at
	if m.DeliveredAt == nil {
		m.DeliveredAt = &ts
	}
	if to == entity.MessageStatusRead && m.ReadAt == nil {
		m.ReadAt = &ts
	}
	r.journal.record(func() { *m = prev })
	return true, nil
}

func (r *MessageRepository) FindByConversation(ctx context.Context, conversationId uuid.UUID, afterSeq int64, limit int) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.history[conversationId]
	start := sort.Search(len(ids), func(i int) bool {
		return r.store.messages[ids[i]].Seq > afterSeq
	})
	ids = window(ids[start:], limit, 0)

	result := make([]*entity.Message, len(ids))
	for i, id := range ids {
		result[i] = cloneMessage(r.store.messages[id])
	}
	return result, nil
}

func (r *MessageRepository) FindPendingFor(ctx context.Context, recipient entity.Identity, limit int) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	var result []*entity.Message
	for _, m := range r.store.messages {
		if m.Status != entity.MessageStatusSent || m.SenderKind == recipient.Kind {
			continue
		}
		c := r.store.conversations[m.ConversationId]
		if c == nil || !c.HasParticipant(recipient) {
			continue
		}
		result = append(result, cloneMessage(m))
	}
	r.store.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Seq < result[j].Seq
	})
	return window(result, limit, 0), nil
}
