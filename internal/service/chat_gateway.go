package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/pkg/serverutils"
	"hiring-chat-be/internal/websocket"
	"hiring-chat-be/pkg/apperr"
	"hiring-chat-be/pkg/delivery"
	"hiring-chat-be/pkg/events"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultSyncLimit = 200

// SessionRegistry binds connections to identities.
type SessionRegistry interface {
	Bind(identity entity.Identity, sink websocket.Sink) error
	Unbind(sink websocket.Sink) bool
}

type ChatGatewayConfig struct {
	// SyncLimit caps how many pending messages are replayed on connect.
	SyncLimit int
}

// ChatGateway is the single real-time entry point. It implements
// websocket.EventHandler; each connection's events arrive one at a time.
type ChatGateway struct {
	store      *ConversationStore
	machine    *delivery.Machine
	dispatcher *Dispatcher
	sessions   SessionRegistry
	publisher  EventPublisher
	validate   *validator.Validate
	cfg        ChatGatewayConfig
	logger     logger.ILogger
	tracer     trace.Tracer
}

func NewChatGateway(
	store *ConversationStore,
	machine *delivery.Machine,
	dispatcher *Dispatcher,
	sessions SessionRegistry,
	publisher EventPublisher,
	cfg ChatGatewayConfig,
	log logger.ILogger,
) *ChatGateway {
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = defaultSyncLimit
	}
	return &ChatGateway{
		store:      store,
		machine:    machine,
		dispatcher: dispatcher,
		sessions:   sessions,
		publisher:  publisher,
		validate:   serverutils.Validator(),
		cfg:        cfg,
		logger:     log,
		tracer:     otel.Tracer("hiring-chat-be/gateway"),
	}
}

func sessionIdentity(session websocket.Sink) (entity.Identity, error) {
	if session == nil || session.Identity().IsZero() {
		return entity.Identity{}, apperr.ErrUnauthorized
	}
	return session.Identity(), nil
}

// Connect binds the session and replays messages that reached the identity
// while it was offline, marking each one delivered. A message sent live while
// the replay runs reaches the session once.
func (g *ChatGateway) Connect(ctx context.Context, session websocket.Sink) error {
	identity, err := sessionIdentity(session)
	if err != nil {
		return err
	}
	closeWindow := g.dispatcher.OpenSyncWindow(session)
	defer closeWindow()

	if err := g.sessions.Bind(identity, session); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	pending, err := g.store.PendingFor(ctx, identity, g.cfg.SyncLimit)
	if err != nil {
		// The connection stays usable; history is still available over HTTP.
		g.logger.Warn("ChatGateway", "Reconnect sync failed", map[string]interface{}{"identity": identity.Key(), "error": err.Error()})
		return nil
	}

	for _, msg := range pending {
		if !g.dispatcher.PushMessageTo(session, msg) {
			break
		}
		if _, err := g.machine.Apply(ctx, msg.Id, entity.MessageStatusDelivered, g.store, g.statusNotifier()); err != nil && !errors.Is(err, apperr.ErrInvalidTransition) {
			g.logger.Warn("ChatGateway", "Sync delivery mark failed", map[string]interface{}{"message_id": msg.Id, "error": err.Error()})
		}
	}

	if len(pending) > 0 {
		g.logger.Info("ChatGateway", "Reconnect sync", map[string]interface{}{"identity": identity.Key(), "messages": len(pending)})
	}
	return nil
}

func (g *ChatGateway) Disconnect(session websocket.Sink) {
	g.sessions.Unbind(session)
}

// Send stores a message and pushes it to the counterpart. The conversation is
// created on first contact when addressed by its triple.
func (g *ChatGateway) Send(ctx context.Context, session websocket.Sink, req dto.SendMessageRequest) (*entity.Message, error) {
	identity, err := sessionIdentity(session)
	if err != nil {
		return nil, err
	}

	conv, err := g.resolveConversation(ctx, identity, req)
	if err != nil {
		return nil, err
	}

	msg, err := g.store.AppendMessage(ctx, conv.Id, identity, req.Content)
	if err != nil {
		return nil, err
	}

	g.dispatcher.EchoMessage(ctx, msg, session)
	pushed := g.dispatcher.PushMessage(ctx, conv, msg)
	g.publish(ctx, messageSentEvent(conv, msg))

	if pushed > 0 {
		delivered, err := g.machine.Apply(ctx, msg.Id, entity.MessageStatusDelivered, g.store, g.statusNotifier())
		if err != nil {
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				g.logger.Warn("ChatGateway", "Delivery mark failed", map[string]interface{}{"message_id": msg.Id, "error": err.Error()})
			}
		} else {
			msg = delivered
		}
	}
	return msg, nil
}

func (g *ChatGateway) resolveConversation(ctx context.Context, identity entity.Identity, req dto.SendMessageRequest) (*entity.Conversation, error) {
	if req.ConversationId != nil {
		return g.store.GetConversation(ctx, *req.ConversationId)
	}
	if req.CompanyId == nil || req.CandidateId == nil || req.JobId == nil {
		return nil, fmt.Errorf("%w: conversation_id or company_id, candidate_id and job_id are required", apperr.ErrInvalidArgument)
	}

	conv, _, err := g.OpenConversation(ctx, identity, *req.CompanyId, *req.CandidateId, *req.JobId)
	return conv, err
}

// OpenConversation returns the conversation for the triple, creating it on
// first contact. A caller may only open a conversation on their own side.
func (g *ChatGateway) OpenConversation(ctx context.Context, identity entity.Identity, companyID, candidateID, jobID uuid.UUID) (*entity.Conversation, bool, error) {
	if identity.IsZero() {
		return nil, false, apperr.ErrUnauthorized
	}
	own := candidateID
	if identity.Kind == entity.ParticipantCompany {
		own = companyID
	}
	if own != identity.UserId {
		return nil, false, fmt.Errorf("%w: %s is not a participant of the requested conversation", apperr.ErrUnauthorized, identity)
	}

	conv, created, err := g.store.GetOrCreateConversation(ctx, companyID, candidateID, jobID)
	if err != nil {
		return nil, false, err
	}
	if created {
		g.publish(ctx, conversationCreatedEvent(conv))
	}
	return conv, created, nil
}

func (g *ChatGateway) MarkDelivered(ctx context.Context, session websocket.Sink, messageID uuid.UUID) (*entity.Message, error) {
	return g.mark(ctx, session, messageID, entity.MessageStatusDelivered)
}

func (g *ChatGateway) MarkRead(ctx context.Context, session websocket.Sink, messageID uuid.UUID) (*entity.Message, error) {
	return g.mark(ctx, session, messageID, entity.MessageStatusRead)
}

// mark applies a receipt. Only the recipient of a message may acknowledge it.
func (g *ChatGateway) mark(ctx context.Context, session websocket.Sink, messageID uuid.UUID, status entity.MessageStatus) (*entity.Message, error) {
	identity, err := sessionIdentity(session)
	if err != nil {
		return nil, err
	}

	msg, err := g.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := g.store.GetConversation(ctx, msg.ConversationId)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(identity) || msg.Sender() == identity {
		return nil, fmt.Errorf("%w: %s is not the recipient of %s", apperr.ErrUnauthorized, identity, messageID)
	}

	return g.machine.Apply(ctx, messageID, status, g.store, g.statusNotifier())
}

// Typing forwards an ephemeral typing indicator. Nothing is stored.
func (g *ChatGateway) Typing(ctx context.Context, session websocket.Sink, conversationID uuid.UUID) error {
	identity, err := sessionIdentity(session)
	if err != nil {
		return err
	}
	conv, err := g.store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(identity) {
		return fmt.Errorf("%w: %s is not a participant of %s", apperr.ErrUnauthorized, identity, conversationID)
	}
	g.dispatcher.PushTyping(ctx, conv, identity)
	return nil
}

func (g *ChatGateway) statusNotifier() delivery.Notifier {
	return delivery.NotifierFunc(func(ctx context.Context, msg *entity.Message) {
		g.dispatcher.PushStatusUpdate(ctx, msg)
		g.publish(ctx, statusChangedEvent(msg))
	})
}

func (g *ChatGateway) publish(ctx context.Context, event events.Event) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Warn("ChatGateway", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

// Handle decodes and routes one inbound frame, answering with ack or rejected.
// It never panics and never closes the connection.
func (g *ChatGateway) Handle(ctx context.Context, session websocket.Sink, frame []byte) {
	var in dto.InboundEvent

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("ChatGateway", "Recovered from panic while handling event", map[string]interface{}{"event": in.Event, "panic": fmt.Sprint(r)})
			g.reject(session, in, fmt.Errorf("%w: %v", apperr.ErrMalformedEvent, r))
		}
	}()

	ctx, span := g.tracer.Start(ctx, "chat.handle")
	defer span.End()

	if err := json.Unmarshal(frame, &in); err != nil {
		g.fail(span, session, in, fmt.Errorf("%w: %v", apperr.ErrMalformedEvent, err))
		return
	}
	span.SetAttributes(attribute.String("chat.event", in.Event))
	if session != nil {
		span.SetAttributes(attribute.String("chat.identity", session.Identity().Key()))
	}
	if err := g.validate.Struct(in); err != nil {
		g.fail(span, session, in, fmt.Errorf("%w: %v", apperr.ErrMalformedEvent, err))
		return
	}

	ack, err := g.route(ctx, session, in)
	if err != nil {
		g.fail(span, session, in, err)
		return
	}
	ack.Ref, ack.Event = in.Ref, in.Event
	g.reply(session, EncodeFrame(dto.EventAck, ack))
}

func (g *ChatGateway) route(ctx context.Context, session websocket.Sink, in dto.InboundEvent) (dto.AckPayload, error) {
	switch in.Event {
	case dto.EventSend:
		var req dto.SendMessageRequest
		if err := g.decode(in.Data, &req); err != nil {
			return dto.AckPayload{}, err
		}
		msg, err := g.Send(ctx, session, req)
		if err != nil {
			return dto.AckPayload{}, err
		}
		return dto.AckPayload{MessageId: &msg.Id, ConversationId: &msg.ConversationId, Status: string(msg.Status)}, nil

	case dto.EventMarkDelivered, dto.EventMarkRead:
		var req dto.MessageReceiptRequest
		if err := g.decode(in.Data, &req); err != nil {
			return dto.AckPayload{}, err
		}
		mark := g.MarkDelivered
		if in.Event == dto.EventMarkRead {
			mark = g.MarkRead
		}
		msg, err := mark(ctx, session, req.MessageId)
		if err != nil {
			return dto.AckPayload{}, err
		}
		return dto.AckPayload{MessageId: &msg.Id, ConversationId: &msg.ConversationId, Status: string(msg.Status)}, nil

	case dto.EventTyping:
		var req dto.TypingRequest
		if err := g.decode(in.Data, &req); err != nil {
			return dto.AckPayload{}, err
		}
		if err := g.Typing(ctx, session, req.ConversationId); err != nil {
			return dto.AckPayload{}, err
		}
		return dto.AckPayload{ConversationId: &req.ConversationId}, nil
	}
	return dto.AckPayload{}, fmt.Errorf("%w: unknown event %q", apperr.ErrMalformedEvent, in.Event)
}

func (g *ChatGateway) decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", apperr.ErrMalformedEvent)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedEvent, err)
	}
	if err := g.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrMalformedEvent, err)
	}
	return nil
}

func (g *ChatGateway) fail(span trace.Span, session websocket.Sink, in dto.InboundEvent, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.Code(err))
	g.reject(session, in, err)
}

func (g *ChatGateway) reject(session websocket.Sink, in dto.InboundEvent, err error) {
	code := apperr.Code(err)
	message := err.Error()
	if code == apperr.CodeInternal {
		g.logger.Error("ChatGateway", "Event failed", map[string]interface{}{"event": in.Event, "error": err})
		message = "internal error"
	} else {
		g.logger.Debug("ChatGateway", "Event rejected", map[string]interface{}{"event": in.Event, "code": code, "error": err.Error()})
	}
	g.reply(session, EncodeFrame(dto.EventRejected, dto.RejectedPayload{
		Ref:     in.Ref,
		Event:   in.Event,
		Code:    code,
		Message: message,
	}))
}

// reply writes to the originating connection only. A full buffer just drops
// the reply; the dispatcher's failure handling covers dead connections.
func (g *ChatGateway) reply(session websocket.Sink, frame []byte) {
	if session == nil {
		return
	}
	if err := session.Push(frame); err != nil {
		g.logger.Debug("ChatGateway", "Reply dropped", map[string]interface{}{"conn_id": session.ID(), "error": err.Error()})
	}
}
