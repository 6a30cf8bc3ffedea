package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRelayHub is a local hub whose cluster relay always errors.
type failingRelayHub struct {
	*websocket.Hub
	relayed int
}

func (h *failingRelayHub) Relay(ctx context.Context, identity entity.Identity, frame []byte) error {
	h.relayed++
	return errors.New("redis: connection refused")
}

func dispatcherFixture(t *testing.T) (*Dispatcher, *failingRelayHub, *entity.Conversation, *entity.Message) {
	t.Helper()
	hub := &failingRelayHub{Hub: websocket.NewHub(nil, "", logger.NewNopLogger())}
	company, candidate := newCompany(), newCandidate()
	conv := &entity.Conversation{Id: uuid.New(), CompanyId: company.UserId, CandidateId: candidate.UserId, JobId: uuid.New()}
	msg := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		SenderId:       company.UserId,
		SenderKind:     company.Kind,
		Content:        "Hello",
		Status:         entity.MessageStatusSent,
		Seq:            1,
		CreatedAt:      time.Now().UTC(),
	}
	return NewDispatcher(hub, logger.NewNopLogger()), hub, conv, msg
}

func TestDispatcher_PushMessageReachesEveryDevice(t *testing.T) {
	req := require.New(t)
	dispatcher, hub, conv, msg := dispatcherFixture(t)

	phone, laptop := newTestSink(conv.Candidate()), newTestSink(conv.Candidate())
	req.NoError(hub.Bind(conv.Candidate(), phone))
	req.NoError(hub.Bind(conv.Candidate(), laptop))

	n := dispatcher.PushMessage(context.Background(), conv, msg)

	req.Equal(2, n)
	for _, sink := range []*testSink{phone, laptop} {
		got := sink.messages(t)
		req.Len(got, 1)
		req.Equal(msg.Id, got[0].Id)
		req.Equal("company", got[0].SenderType)
		req.Equal("sent", got[0].Status)
	}
	req.Equal(1, hub.relayed, "relay errors are swallowed")
}

func TestDispatcher_FailingSinkIsDroppedWithoutAffectingOthers(t *testing.T) {
	req := require.New(t)
	dispatcher, hub, conv, msg := dispatcherFixture(t)

	healthy, broken := newTestSink(conv.Candidate()), newTestSink(conv.Candidate())
	broken.fail = websocket.ErrSendBufferFull
	req.NoError(hub.Bind(conv.Candidate(), healthy))
	req.NoError(hub.Bind(conv.Candidate(), broken))

	n := dispatcher.PushMessage(context.Background(), conv, msg)

	req.Equal(1, n)
	req.Len(healthy.messages(t), 1)
	req.True(broken.isClosed())
	req.Len(hub.Resolve(conv.Candidate()), 1)
	req.False(healthy.isClosed())
}

func TestDispatcher_OfflineRecipient(t *testing.T) {
	dispatcher, _, conv, msg := dispatcherFixture(t)
	assert.Zero(t, dispatcher.PushMessage(context.Background(), conv, msg))
}

func TestDispatcher_EchoSkipsOrigin(t *testing.T) {
	req := require.New(t)
	dispatcher, hub, conv, msg := dispatcherFixture(t)

	origin, other := newTestSink(conv.Company()), newTestSink(conv.Company())
	req.NoError(hub.Bind(conv.Company(), origin))
	req.NoError(hub.Bind(conv.Company(), other))

	n := dispatcher.EchoMessage(context.Background(), msg, origin)

	req.Equal(1, n)
	req.Empty(origin.messages(t))
	req.Len(other.messages(t), 1)
}

func TestDispatcher_StatusUpdateGoesToSender(t *testing.T) {
	req := require.New(t)
	dispatcher, hub, conv, msg := dispatcherFixture(t)

	sender, recipient := newTestSink(conv.Company()), newTestSink(conv.Candidate())
	req.NoError(hub.Bind(conv.Company(), sender))
	req.NoError(hub.Bind(conv.Candidate(), recipient))

	msg.Status = entity.MessageStatusDelivered
	req.Equal(1, dispatcher.PushStatusUpdate(context.Background(), msg))

	updates := sender.statusUpdates(t)
	req.Len(updates, 1)
	req.Equal(dto.StatusUpdatePayload{MessageId: msg.Id, ConversationId: conv.Id, Status: "delivered"}, updates[0])
	req.Empty(recipient.statusUpdates(t))
}

func TestDispatcher_PushTyping(t *testing.T) {
	req := require.New(t)
	dispatcher, hub, conv, _ := dispatcherFixture(t)

	company := newTestSink(conv.Company())
	req.NoError(hub.Bind(conv.Company(), company))

	req.Equal(1, dispatcher.PushTyping(context.Background(), conv, conv.Candidate()))
	req.Len(company.received(t, dto.EventTyping), 1)

	outsider := newCandidate()
	req.Zero(dispatcher.PushTyping(context.Background(), conv, outsider))
}

func TestDispatcher_SyncWindowPushesEachMessageOnce(t *testing.T) {
	tests := []struct {
		name     string
		liveLast bool
	}{
		{"live push before sync", false},
		{"sync before live push", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			dispatcher, hub, conv, msg := dispatcherFixture(t)
			ctx := context.Background()

			// Given a candidate connection that is still being synced
			sink := newTestSink(conv.Candidate())
			closeWindow := dispatcher.OpenSyncWindow(sink)
			req.NoError(hub.Bind(conv.Candidate(), sink))

			// When the same message arrives live and from the sync
			if tt.liveLast {
				req.True(dispatcher.PushMessageTo(sink, msg))
				req.Zero(dispatcher.PushMessage(ctx, conv, msg))
			} else {
				req.Equal(1, dispatcher.PushMessage(ctx, conv, msg))
				req.True(dispatcher.PushMessageTo(sink, msg))
			}

			// Then the connection gets one frame
			req.Len(sink.messages(t), 1)

			// And once the window closes pushes are no longer deduplicated
			closeWindow()
			req.Equal(1, dispatcher.PushMessage(ctx, conv, msg))
			req.Len(sink.messages(t), 2)
		})
	}
}
