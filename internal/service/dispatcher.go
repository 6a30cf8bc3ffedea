package service

import (
	"context"
	"encoding/json"
	"sync"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/mapper"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/websocket"
	"hiring-chat-be/pkg/apperr"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the part of the websocket hub the dispatcher depends on.
type Registry interface {
	Resolve(identity entity.Identity) []websocket.Sink
	Unbind(sink websocket.Sink) bool
	Relay(ctx context.Context, identity entity.Identity, frame []byte) error
}

// Dispatcher pushes frames to every live connection of a target identity.
// A failing connection is dropped without affecting the others, and counts
// returned are local connections that accepted the frame. Relayed copies for
// other instances are never counted.
type Dispatcher struct {
	registry Registry
	mapper   *mapper.ChatMapper
	logger   logger.ILogger

	// sink ID -> *syncWindow, present while a connection is being synced
	windows sync.Map
}

// syncWindow records the messages a connection has received while its
// reconnect sync runs, so the live path and the sync never both push one.
type syncWindow struct {
	mu     sync.Mutex
	pushed map[uuid.UUID]struct{}
}

func (w *syncWindow) claim(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pushed[id]; ok {
		return false
	}
	w.pushed[id] = struct{}{}
	return true
}

func NewDispatcher(registry Registry, log logger.ILogger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		mapper:   mapper.NewChatMapper(),
		logger:   log,
	}
}

// EncodeFrame builds an outbound websocket frame.
func EncodeFrame(event string, data any) []byte {
	frame, err := json.Marshal(dto.OutboundEvent{Event: event, Data: data})
	if err != nil {
		// Outbound payloads are plain structs; this only fires on programmer error.
		frame, _ = json.Marshal(dto.OutboundEvent{Event: dto.EventRejected, Data: dto.RejectedPayload{Code: apperr.CodeInternal, Message: err.Error()}})
	}
	return frame
}

// PushMessage sends msg to the counterpart of its sender.
func (d *Dispatcher) PushMessage(ctx context.Context, conv *entity.Conversation, msg *entity.Message) int {
	recipient, ok := conv.Counterpart(msg.Sender())
	if !ok {
		return 0
	}
	frame := EncodeFrame(dto.EventMessage, d.mapper.MessageToPayload(msg))
	return d.fanoutWith(ctx, recipient, frame, "", func(s websocket.Sink) bool {
		return d.claim(s, msg.Id) && d.push(s, frame)
	})
}

// EchoMessage sends msg to the sender's other devices, skipping origin.
func (d *Dispatcher) EchoMessage(ctx context.Context, msg *entity.Message, origin websocket.Sink) int {
	exclude := ""
	if origin != nil {
		exclude = origin.ID()
	}
	return d.fanout(ctx, msg.Sender(), EncodeFrame(dto.EventMessage, d.mapper.MessageToPayload(msg)), exclude)
}

// OpenSyncWindow starts deduplicating message pushes to sink until the
// returned func is called. It must be opened before sink is bound.
func (d *Dispatcher) OpenSyncWindow(sink websocket.Sink) func() {
	d.windows.Store(sink.ID(), &syncWindow{pushed: make(map[uuid.UUID]struct{})})
	return func() {
		d.windows.Delete(sink.ID())
	}
}

// PushMessageTo sends msg to a single connection, used for reconnect sync.
// It reports false only when the connection failed; a message the live path
// already pushed during the sync window is skipped.
func (d *Dispatcher) PushMessageTo(sink websocket.Sink, msg *entity.Message) bool {
	if !d.claim(sink, msg.Id) {
		return true
	}
	return d.push(sink, EncodeFrame(dto.EventMessage, d.mapper.MessageToPayload(msg)))
}

func (d *Dispatcher) claim(sink websocket.Sink, id uuid.UUID) bool {
	w, ok := d.windows.Load(sink.ID())
	if !ok {
		return true
	}
	return w.(*syncWindow).claim(id)
}

// PushStatusUpdate tells the sender of msg about its new status.
func (d *Dispatcher) PushStatusUpdate(ctx context.Context, msg *entity.Message) int {
	return d.fanout(ctx, msg.Sender(), EncodeFrame(dto.EventStatusUpdate, d.mapper.MessageToStatusPayload(msg)), "")
}

// PushTyping is ephemeral and silently dropped when the counterpart is offline.
func (d *Dispatcher) PushTyping(ctx context.Context, conv *entity.Conversation, from entity.Identity) int {
	recipient, ok := conv.Counterpart(from)
	if !ok {
		return 0
	}
	payload := dto.TypingPayload{
		ConversationId: conv.Id,
		SenderType:     string(from.Kind),
		SenderId:       from.UserId,
	}
	return d.fanout(ctx, recipient, EncodeFrame(dto.EventTyping, payload), "")
}

func (d *Dispatcher) fanout(ctx context.Context, target entity.Identity, frame []byte, excludeID string) int {
	return d.fanoutWith(ctx, target, frame, excludeID, func(s websocket.Sink) bool {
		return d.push(s, frame)
	})
}

func (d *Dispatcher) fanoutWith(ctx context.Context, target entity.Identity, frame []byte, excludeID string, send func(websocket.Sink) bool) int {
	sinks := lo.Filter(d.registry.Resolve(target), func(s websocket.Sink, _ int) bool {
		return s.ID() != excludeID
	})

	delivered := lo.CountBy(sinks, send)

	if err := d.registry.Relay(ctx, target, frame); err != nil {
		d.logger.Warn("Dispatcher", "Relay failed", map[string]interface{}{"identity": target.Key(), "error": err.Error()})
	}
	return delivered
}

func (d *Dispatcher) push(sink websocket.Sink, frame []byte) bool {
	if err := sink.Push(frame); err != nil {
		d.logger.Warn("Dispatcher", "Push failed, dropping connection", map[string]interface{}{
			"conn_id":  sink.ID(),
			"identity": sink.Identity().Key(),
			"error":    err.Error(),
		})
		d.registry.Unbind(sink)
		sink.Close()
		return false
	}
	return true
}
