package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/pkg/serverutils"
	"hiring-chat-be/internal/repository/memory"
	"hiring-chat-be/internal/service"
	"hiring-chat-be/internal/websocket"
	"hiring-chat-be/pkg/delivery"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-secret"

type chatFixture struct {
	app       *fiber.App
	store     *service.ConversationStore
	company   entity.Identity
	candidate entity.Identity
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	log := logger.NewNopLogger()
	store := service.NewConversationStore(
		memory.NewRepositoryFactory(memory.NewChatStore()),
		memory.NewConversationCache(time.Minute),
		service.ConversationStoreConfig{},
		log,
	)
	hub := websocket.NewHub(nil, "", log)
	gateway := service.NewChatGateway(store, delivery.NewMachine(), service.NewDispatcher(hub, log), hub, nil, service.ChatGatewayConfig{}, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatController(store, gateway, testSecret).RegisterRoutes(app.Group("/api"))

	return &chatFixture{
		app:       app,
		store:     store,
		company:   entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCompany},
		candidate: entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCandidate},
	}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (f *chatFixture) do(t *testing.T, as entity.Identity, method, target string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if !as.IsZero() {
		token, err := serverutils.SignIdentityToken(as, testSecret, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestChatController_CreateConversation(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	body := dto.CreateConversationRequest{CompanyId: f.company.UserId, CandidateId: f.candidate.UserId, JobId: uuid.New()}

	status, raw := f.do(t, f.company, fiber.MethodPost, "/api/chat/v1/conversations", body)
	req.Equal(fiber.StatusCreated, status)
	var created envelope[dto.ConversationResponse]
	req.NoError(json.Unmarshal(raw, &created))
	req.True(created.Success)
	req.Equal(body.JobId, created.Data.JobId)

	status, raw = f.do(t, f.candidate, fiber.MethodPost, "/api/chat/v1/conversations", body)
	req.Equal(fiber.StatusOK, status)
	var again envelope[dto.ConversationResponse]
	req.NoError(json.Unmarshal(raw, &again))
	req.Equal(created.Data.Id, again.Data.Id)

	outsider := entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCompany}
	status, _ = f.do(t, outsider, fiber.MethodPost, "/api/chat/v1/conversations", body)
	req.Equal(fiber.StatusUnauthorized, status)

	status, _ = f.do(t, f.company, fiber.MethodPost, "/api/chat/v1/conversations", map[string]string{"company_id": f.company.UserId.String()})
	req.Equal(fiber.StatusUnprocessableEntity, status)

	status, _ = f.do(t, entity.Identity{}, fiber.MethodPost, "/api/chat/v1/conversations", body)
	req.Equal(fiber.StatusUnauthorized, status)
}

func TestChatController_ListMessagesPages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newChatFixture(t)

	conv, _, err := f.store.GetOrCreateConversation(ctx, f.company.UserId, f.candidate.UserId, uuid.New())
	req.NoError(err)
	for i := 1; i <= 5; i++ {
		_, err := f.store.AppendMessage(ctx, conv.Id, f.company, fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	target := fmt.Sprintf("/api/chat/v1/conversations/%s/messages?limit=2", conv.Id)
	status, raw := f.do(t, f.candidate, fiber.MethodGet, target, nil)
	req.Equal(fiber.StatusOK, status)
	var page envelope[dto.ListMessagesResponse]
	req.NoError(json.Unmarshal(raw, &page))
	req.Len(page.Data.Messages, 2)
	req.True(page.Data.HasMore)
	req.Equal(int64(2), page.Data.NextAfterSeq)
	req.Equal("message 1", page.Data.Messages[0].Content)

	target = fmt.Sprintf("/api/chat/v1/conversations/%s/messages?after_seq=4&limit=2", conv.Id)
	status, raw = f.do(t, f.company, fiber.MethodGet, target, nil)
	req.Equal(fiber.StatusOK, status)
	var last envelope[dto.ListMessagesResponse]
	req.NoError(json.Unmarshal(raw, &last))
	req.Len(last.Data.Messages, 1)
	req.False(last.Data.HasMore)
	req.Equal(int64(5), last.Data.Messages[0].Seq)
	req.Equal("sent", last.Data.Messages[0].Status)
}

func TestChatController_ConversationAccess(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	conv, _, err := f.store.GetOrCreateConversation(ctx, f.company.UserId, f.candidate.UserId, uuid.New())
	require.NoError(t, err)

	outsider := entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCandidate}
	tests := []struct {
		name   string
		as     entity.Identity
		target string
		status int
	}{
		{name: "participant", as: f.candidate, target: "/api/chat/v1/conversations/" + conv.Id.String(), status: fiber.StatusOK},
		{name: "outsider", as: outsider, target: "/api/chat/v1/conversations/" + conv.Id.String() + "/messages", status: fiber.StatusForbidden},
		{name: "unknown", as: f.candidate, target: "/api/chat/v1/conversations/" + uuid.NewString(), status: fiber.StatusNotFound},
		{name: "bad id", as: f.candidate, target: "/api/chat/v1/conversations/not-a-uuid/messages", status: fiber.StatusUnprocessableEntity},
		{name: "bad after_seq", as: f.company, target: "/api/chat/v1/conversations/" + conv.Id.String() + "/messages?after_seq=-1", status: fiber.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := f.do(t, tt.as, fiber.MethodGet, tt.target, nil)
			require.Equal(t, tt.status, status)
		})
	}
}

func TestChatController_ListConversations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newChatFixture(t)

	quiet, _, err := f.store.GetOrCreateConversation(ctx, f.company.UserId, f.candidate.UserId, uuid.New())
	req.NoError(err)
	active, _, err := f.store.GetOrCreateConversation(ctx, f.company.UserId, f.candidate.UserId, uuid.New())
	req.NoError(err)
	_, err = f.store.AppendMessage(ctx, active.Id, f.candidate, "hi")
	req.NoError(err)

	status, raw := f.do(t, f.company, fiber.MethodGet, "/api/chat/v1/conversations", nil)
	req.Equal(fiber.StatusOK, status)
	var list envelope[[]dto.ConversationResponse]
	req.NoError(json.Unmarshal(raw, &list))
	req.Len(list.Data, 2)
	req.Equal(active.Id, list.Data[0].Id)
	req.Equal(quiet.Id, list.Data[1].Id)

	status, raw = f.do(t, entity.Identity{UserId: uuid.New(), Kind: entity.ParticipantCandidate}, fiber.MethodGet, "/api/chat/v1/conversations", nil)
	req.Equal(fiber.StatusOK, status)
	var empty envelope[[]dto.ConversationResponse]
	req.NoError(json.Unmarshal(raw, &empty))
	req.Empty(empty.Data)
}
