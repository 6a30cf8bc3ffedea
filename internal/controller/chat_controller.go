package controller

import (
	"fmt"
	"strconv"

	"hiring-chat-be/internal/dto"
	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/mapper"
	"hiring-chat-be/internal/pkg/serverutils"
	"hiring-chat-be/internal/service"
	"hiring-chat-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const maxPageLimit = 200

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	ListConversations(ctx *fiber.Ctx) error
	CreateConversation(ctx *fiber.Ctx) error
	ShowConversation(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
}

type chatController struct {
	store     *service.ConversationStore
	gateway   *service.ChatGateway
	mapper    *mapper.ChatMapper
	jwtSecret string
}

func NewChatController(store *service.ConversationStore, gateway *service.ChatGateway, jwtSecret string) IChatController {
	return &chatController{
		store:     store,
		gateway:   gateway,
		mapper:    mapper.NewChatMapper(),
		jwtSecret: jwtSecret,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Get("/conversations", c.ListConversations)
	h.Post("/conversations", c.CreateConversation)
	h.Get("/conversations/:id", c.ShowConversation)
	h.Get("/conversations/:id/messages", c.ListMessages)
}

func pageLimit(ctx *fiber.Ctx, fallback int) int {
	limit := ctx.QueryInt("limit", fallback)
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxPageLimit)
}

func (c *chatController) ListConversations(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFromLocals(ctx)
	if err != nil {
		return err
	}

	offset := max(ctx.QueryInt("offset", 0), 0)
	conversations, err := c.store.ListConversations(ctx.UserContext(), identity, pageLimit(ctx, 20), offset)
	if err != nil {
		return err
	}

	res := lo.Map(conversations, func(conv *entity.Conversation, _ int) *dto.ConversationResponse {
		return c.mapper.ConversationToResponse(conv)
	})
	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *chatController) CreateConversation(ctx *fiber.Ctx) error {
	identity, err := serverutils.IdentityFromLocals(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	conv, created, err := c.gateway.OpenConversation(ctx.UserContext(), identity, req.CompanyId, req.CandidateId, req.JobId)
	if err != nil {
		return err
	}

	if created {
		ctx.Status(fiber.StatusCreated)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success open conversation", c.mapper.ConversationToResponse(conv)))
}

// participantConversation loads :id and checks the caller is part of it.
func (c *chatController) participantConversation(ctx *fiber.Ctx) (*entity.Conversation, error) {
	identity, err := serverutils.IdentityFromLocals(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid conversation id", apperr.ErrInvalidArgument)
	}

	conv, err := c.store.GetConversation(ctx.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(identity) {
		return nil, fmt.Errorf("%w: %s in %s", apperr.ErrNotAParticipant, identity, id)
	}
	return conv, nil
}

func (c *chatController) ShowConversation(ctx *fiber.Ctx) error {
	conv, err := c.participantConversation(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", c.mapper.ConversationToResponse(conv)))
}

func (c *chatController) ListMessages(ctx *fiber.Ctx) error {
	conv, err := c.participantConversation(ctx)
	if err != nil {
		return err
	}

	var afterSeq int64
	if raw := ctx.Query("after_seq"); raw != "" {
		afterSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || afterSeq < 0 {
			return fmt.Errorf("%w: after_seq must be a non-negative integer", apperr.ErrInvalidArgument)
		}
	}

	messages, hasMore, err := c.store.ListMessagesPage(ctx.UserContext(), conv.Id, afterSeq, pageLimit(ctx, 0))
	if err != nil {
		return err
	}

	res := dto.ListMessagesResponse{
		Messages: lo.Map(messages, func(msg *entity.Message, _ int) *dto.MessageResponse {
			return c.mapper.MessageToResponse(msg)
		}),
		NextAfterSeq: afterSeq,
		HasMore:      hasMore,
	}
	if len(messages) > 0 {
		res.NextAfterSeq = messages[len(messages)-1].Seq
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}
