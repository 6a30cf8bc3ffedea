package memory

import (
	"sync"
	"time"

	"hiring-chat-be/internal/entity"

	"github.com/google/uuid"
)

type triple struct {
	companyId, candidateId, jobId uuid.UUID
}

// ChatStore is the process-local backing for the memory repositories. It is
// used by tests and by STORAGE_DRIVER=memory.
//
// mu guards the maps. txMu serializes units of work so a transaction sees no
// interleaved writes from another transaction.
type ChatStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	conversations map[uuid.UUID]*entity.Conversation
	triples       map[triple]uuid.UUID
	messages      map[uuid.UUID]*entity.Message
	history       map[uuid.UUID][]uuid.UUID // conversation id -> message ids by seq

	now func() time.Time
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[uuid.UUID]*entity.Conversation),
		triples:       make(map[triple]uuid.UUID),
		messages:      make(map[uuid.UUID]*entity.Message),
		history:       make(map[uuid.UUID][]uuid.UUID),
		now:           time.Now,
	}
}

// journal collects undo steps for an open unit of work. A nil journal means
// writes are applied without rollback support.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	if j != nil {
		j.undo = append(j.undo, fn)
	}
}

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func cloneMessage(m *entity.Message) *entity.Message {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
