package websocket

import (
	"context"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one connection until the peer goes away. The identity must
// already be authenticated.
func ServeWs(handler EventHandler, conn *websocket.Conn, identity entity.Identity, sendBuffer int, log logger.ILogger) {
	client := newClient(conn, identity, sendBuffer, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The writer runs before Connect so reconnect sync frames drain immediately.
	go client.writePump()

	if err := handler.Connect(ctx, client); err != nil {
		log.Warn("ServeWs", "Connect rejected", map[string]interface{}{"identity": identity.Key(), "error": err.Error()})
		client.Close()
		return
	}
	client.readPump(ctx)
}
