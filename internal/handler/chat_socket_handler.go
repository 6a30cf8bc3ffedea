package handler

import (
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/pkg/serverutils"
	internalWS "hiring-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ChatSocketHandler struct {
	gateway    internalWS.EventHandler
	jwtSecret  string
	sendBuffer int
	logger     logger.ILogger
	wsLogger   logger.ILogger
}

// NewChatSocketHandler builds the upgrade endpoint. wsLogger receives the
// per-connection read/write logs, which are noisy enough to keep in their own file.
func NewChatSocketHandler(gateway internalWS.EventHandler, jwtSecret string, sendBuffer int, log logger.ILogger, wsLogger logger.ILogger) *ChatSocketHandler {
	return &ChatSocketHandler{
		gateway:    gateway,
		jwtSecret:  jwtSecret,
		sendBuffer: sendBuffer,
		logger:     log,
		wsLogger:   wsLogger,
	}
}

// ServeWs authenticates the handshake and hands the upgraded connection to the gateway.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := serverutils.TokenFromRequest(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	identity, err := serverutils.ParseIdentityToken(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("ChatSocketHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatSocketHandler", "Starting WebSocket session", map[string]interface{}{"identity": identity.Key()})
		internalWS.ServeWs(h.gateway, conn, identity, h.sendBuffer, h.wsLogger)
		h.logger.Info("ChatSocketHandler", "WebSocket session ended", map[string]interface{}{"identity": identity.Key()})
	})(c)
}

func (h *ChatSocketHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
