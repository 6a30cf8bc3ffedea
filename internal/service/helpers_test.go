package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/repository/memory"
	"hiring-chat-be/internal/websocket"
	"hiring-chat-be/pkg/delivery"
	"hiring-chat-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testSink struct {
	id       string
	identity entity.Identity

	mu     sync.Mutex
	frames [][]byte
	fail   error
	closed bool
}

func newTestSink(identity entity.Identity) *testSink {
	return &testSink{id: uuid.NewString(), identity: identity}
}

func (s *testSink) ID() string                { return s.id }
func (s *testSink) Identity() entity.Identity { return s.identity }

func (s *testSink) Push(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if s.closed {
		return websocket.ErrSinkClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *testSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *testSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type decodedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// received returns the frames pushed so far with the given event name.
func (s *testSink) received(t *testing.T, event string) []decodedFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []decodedFrame
	for _, raw := range s.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (s *testSink) statusUpdates(t *testing.T) []dto.StatusUpdatePayload {
	t.Helper()
	var out []dto.StatusUpdatePayload
	for _, f := range s.received(t, dto.EventStatusUpdate) {
		var p dto.StatusUpdatePayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		out = append(out, p)
	}
	return out
}

func (s *testSink) messages(t *testing.T) []dto.MessagePayload {
	t.Helper()
	var out []dto.MessagePayload
	for _, f := range s.received(t, dto.EventMessage) {
		var p dto.MessagePayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		out = append(out, p)
	}
	return out
}

func (s *testSink) rejections(t *testing.T) []dto.RejectedPayload {
	t.Helper()
	var out []dto.RejectedPayload
	for _, f := range s.received(t, dto.EventRejected) {
		var p dto.RejectedPayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		out = append(out, p)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type testEnv struct {
	store      *ConversationStore
	hub        *websocket.Hub
	dispatcher *Dispatcher
	gateway    *ChatGateway
	published  *recordingPublisher
}

func newTestEnv(t *testing.T, opts ...delivery.Option) *testEnv {
	t.Helper()
	log := logger.NewNopLogger()

	store := NewConversationStore(
		memory.NewRepositoryFactory(memory.NewChatStore()),
		memory.NewConversationCache(time.Minute),
		ConversationStoreConfig{MaxContentLength: 100, HistoryPageSize: 2},
		log,
	)
	hub := websocket.NewHub(nil, "", log)
	dispatcher := NewDispatcher(hub, log)
	published := &recordingPublisher{}
	gateway := NewChatGateway(store, delivery.NewMachine(opts...), dispatcher, hub, published, ChatGatewayConfig{}, log)

	return &testEnv{
		store:      store,
		hub:        hub,
		dispatcher: dispatcher,
		gateway:    gateway,
		published:  published,
	}
}

// connect binds a new session for identity through the gateway.
func (e *testEnv) connect(t *testing.T, identity entity.Identity) *testSink {
	t.Helper()
	sink := newTestSink(identity)
	require.NoError(t, e.gateway.Connect(context.Background(), sink))
	return sink
}

func newCompany() entity.Identity {
	return entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCompany}
}

func newCandidate() entity.Identity {
	return entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCandidate}
}

func sendByTriple(company, candidate entity.Identity, job uuid.UUID, content string) dto.SendMessageRequest {
	return dto.SendMessageRequest{
		CompanyId:   &company.UserId,
		CandidateId: &candidate.UserId,
		JobId:       &job,
		Content:     content,
	}
}

func frame(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(dto.InboundEvent{Event: event, Ref: "r-" + event, Data: raw})
	require.NoError(t, err)
	return out
}
