// Package delivery drives a message through sent, delivered and read.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/pkg/apperr"

	"github.com/google/uuid"
)

// Store is the persistence the machine needs. UpdateStatus must be a
// compare-and-set that reports changed=false for an equal status.
type Store interface {
	GetMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.MessageStatus) (*entity.Message, bool, error)
}

// Notifier is told about every persisted transition, in order.
type Notifier interface {
	StatusChanged(ctx context.Context, msg *entity.Message)
}

type NotifierFunc func(ctx context.Context, msg *entity.Message)

func (f NotifierFunc) StatusChanged(ctx context.Context, msg *entity.Message) {
	f(ctx, msg)
}

type Option func(*Machine)

// WithImplicitDelivery controls whether read may be requested for a message
// that is still sent, in which case delivered is applied first.
func WithImplicitDelivery(enabled bool) Option {
	return func(m *Machine) {
		m.implicitDelivery = enabled
	}
}

const lockStripes = 64

// Machine serializes transitions per message id, notification included, so a
// notifier never sees a status lower than one it was already given.
type Machine struct {
	implicitDelivery bool
	locks            [lockStripes]sync.Mutex
}

func NewMachine(opts ...Option) *Machine {
	m := &Machine{implicitDelivery: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan returns the steps that take a message from current to requested.
// An empty plan means there is nothing to do.
func (m *Machine) Plan(current, requested entity.MessageStatus) ([]entity.MessageStatus, error) {
	if !requested.Valid() || !current.Valid() {
		return nil, fmt.Errorf("%w: %q -> %q", apperr.ErrInvalidTransition, current, requested)
	}
	if requested == current {
		return nil, nil
	}
	if requested.Before(current) {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, current, requested)
	}

	var steps []entity.MessageStatus
	for status := current; status != requested; {
		next, _ := status.Next()
		steps = append(steps, next)
		status = next
	}
	if len(steps) > 1 && !m.implicitDelivery {
		return nil, fmt.Errorf("%w: %s -> %s skips a step", apperr.ErrInvalidTransition, current, requested)
	}
	return steps, nil
}

// Apply moves the message to requested, persisting and notifying each step.
// Steps another writer already applied are skipped without notification.
func (m *Machine) Apply(ctx context.Context, messageID uuid.UUID, requested entity.MessageStatus, store Store, notifier Notifier) (*entity.Message, error) {
	lock := m.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	steps, err := m.Plan(msg.Status, requested)
	if err != nil {
		return msg, err
	}

	for _, step := range steps {
		updated, changed, err := store.UpdateStatus(ctx, messageID, step)
		if err != nil {
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				return msg, err
			}
			// A concurrent writer moved past this step.
			current, getErr := store.GetMessage(ctx, messageID)
			if getErr != nil {
				return msg, getErr
			}
			if current.Status.Before(step) {
				return current, err
			}
			msg = current
			continue
		}

		msg = updated
		if changed && notifier != nil {
			notifier.StatusChanged(ctx, updated)
		}
	}
	return msg, nil
}

func (m *Machine) lockFor(id uuid.UUID) *sync.Mutex {
	return &m.locks[int(id[len(id)-1])%lockStripes]
}
