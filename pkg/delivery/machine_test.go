package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_Plan(t *testing.T) {
	sent, delivered, read := entity.MessageStatusSent, entity.MessageStatusDelivered, entity.MessageStatusRead

	tests := []struct {
		name      string
		implicit  bool
		current   entity.MessageStatus
		requested entity.MessageStatus
		want      []entity.MessageStatus
		wantErr   bool
	}{
		{"same status is a no-op", true, delivered, delivered, nil, false},
		{"immediate successor", true, sent, delivered, []entity.MessageStatus{delivered}, false},
		{"delivered to read", true, delivered, read, []entity.MessageStatus{read}, false},
		{"read on sent with implicit delivery", true, sent, read, []entity.MessageStatus{delivered, read}, false},
		{"read on sent without implicit delivery", false, sent, read, nil, true},
		{"backwards", true, read, delivered, nil, true},
		{"backwards to sent", true, delivered, sent, nil, true},
		{"unknown status", true, sent, entity.MessageStatus("seen"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(WithImplicitDelivery(tt.implicit))
			got, err := m.Plan(tt.current, tt.requested)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeStore is a single-message store with CAS semantics.
type fakeStore struct {
	mu       sync.Mutex
	msg      entity.Message
	onUpdate func(status entity.MessageStatus)
}

func (s *fakeStore) GetMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.msg.Id {
		return nil, apperr.ErrMessageNotFound
	}
	cp := s.msg
	return &cp, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.MessageStatus) (*entity.Message, bool, error) {
	if s.onUpdate != nil {
		s.onUpdate(status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.Before(s.msg.Status) {
		return nil, false, apperr.ErrInvalidTransition
	}
	if status == s.msg.Status {
		cp := s.msg
		return &cp, false, nil
	}
	s.msg.Status = status
	now := time.Now()
	if status == entity.MessageStatusRead {
		s.msg.ReadAt = &now
	} else {
		s.msg.DeliveredAt = &now
	}
	cp := s.msg
	return &cp, true, nil
}

type recorder struct {
	statuses []entity.MessageStatus
}

func (r *recorder) StatusChanged(ctx context.Context, msg *entity.Message) {
	r.statuses = append(r.statuses, msg.Status)
}

func TestMachine_ApplyReadOnSentNotifiesBothSteps(t *testing.T) {
	req := require.New(t)

	// Given a message that is still sent
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusSent}}
	rec := &recorder{}

	// When read is applied
	msg, err := NewMachine().Apply(context.Background(), store.msg.Id, entity.MessageStatusRead, store, rec)

	// Then it passes through delivered and both steps are notified in order
	req.NoError(err)
	req.Equal(entity.MessageStatusRead, msg.Status)
	req.Equal([]entity.MessageStatus{entity.MessageStatusDelivered, entity.MessageStatusRead}, rec.statuses)
}

func TestMachine_ApplyIsIdempotent(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusDelivered}}
	rec := &recorder{}

	msg, err := NewMachine().Apply(context.Background(), store.msg.Id, entity.MessageStatusDelivered, store, rec)
	req.NoError(err)
	req.Equal(entity.MessageStatusDelivered, msg.Status)
	req.Empty(rec.statuses)
}

func TestMachine_ApplyRejectsRegression(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusRead}}

	msg, err := NewMachine().Apply(context.Background(), store.msg.Id, entity.MessageStatusDelivered, store, nil)
	req.ErrorIs(err, apperr.ErrInvalidTransition)
	req.Equal(entity.MessageStatusRead, msg.Status)
}

func TestMachine_ApplyUnknownMessage(t *testing.T) {
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusSent}}

	_, err := NewMachine().Apply(context.Background(), uuid.New(), entity.MessageStatusRead, store, nil)
	assert.ErrorIs(t, err, apperr.ErrMessageNotFound)
}

func TestMachine_ApplySkipsStepsTakenByAnotherWriter(t *testing.T) {
	req := require.New(t)

	// Given another writer that marks the message read just before our first step lands
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusSent}}
	raced := false
	store.onUpdate = func(status entity.MessageStatus) {
		if raced {
			return
		}
		raced = true
		store.mu.Lock()
		store.msg.Status = entity.MessageStatusRead
		store.mu.Unlock()
	}
	rec := &recorder{}

	// When we ask for read
	msg, err := NewMachine().Apply(context.Background(), store.msg.Id, entity.MessageStatusRead, store, rec)

	// Then the result is read and nothing is notified twice
	req.NoError(err)
	req.Equal(entity.MessageStatusRead, msg.Status)
	req.Empty(rec.statuses)
}

func TestMachine_NotificationsForOneMessageArriveInStatusOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := &fakeStore{msg: entity.Message{Id: uuid.New(), Status: entity.MessageStatusSent}}
	machine := NewMachine()

	var mu sync.Mutex
	var observed []entity.MessageStatus
	record := func(status entity.MessageStatus) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, status)
	}

	// Given a delivered transition whose notification stalls right after the write
	held, release := make(chan struct{}), make(chan struct{})
	stalled := NotifierFunc(func(ctx context.Context, msg *entity.Message) {
		close(held)
		<-release
		record(msg.Status)
	})
	deliveredErr := make(chan error, 1)
	go func() {
		_, err := machine.Apply(ctx, store.msg.Id, entity.MessageStatusDelivered, store, stalled)
		deliveredErr <- err
	}()
	<-held

	// When a read is applied meanwhile
	var readFinished atomic.Bool
	readErr := make(chan error, 1)
	go func() {
		_, err := machine.Apply(ctx, store.msg.Id, entity.MessageStatusRead, store, NotifierFunc(func(ctx context.Context, msg *entity.Message) {
			record(msg.Status)
		}))
		readFinished.Store(true)
		readErr <- err
	}()

	// Then it waits for the pending notification
	req.Never(readFinished.Load, 50*time.Millisecond, 5*time.Millisecond)
	close(release)
	req.NoError(<-deliveredErr)
	req.NoError(<-readErr)

	mu.Lock()
	defer mu.Unlock()
	req.Equal([]entity.MessageStatus{entity.MessageStatusDelivered, entity.MessageStatusRead}, observed)
}

func TestMachine_DistinctMessagesDoNotShareALock(t *testing.T) {
	m := NewMachine()
	a, b := uuid.New(), uuid.New()
	a[15], b[15] = 1, 2
	assert.NotSame(t, m.lockFor(a), m.lockFor(b))
	assert.Same(t, m.lockFor(a), m.lockFor(a))
}
