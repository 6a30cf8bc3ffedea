package bootstrap

import (
	"context"
	"log"

	"hiring-chat-be/internal/config"
	"hiring-chat-be/internal/controller"
	"hiring-chat-be/internal/handler"
	"hiring-chat-be/internal/pkg/logger"
	"hiring-chat-be/internal/repository/memory"
	"hiring-chat-be/internal/repository/unitofwork"
	"hiring-chat-be/internal/service"
	"hiring-chat-be/internal/websocket"
	"hiring-chat-be/pkg/delivery"
	pktNats "hiring-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	ChatSocketHandler *handler.ChatSocketHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the chat pipeline. A nil db selects the in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	c := &Container{Logger: sysLogger}

	// 1. Storage
	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		log.Println("[WARN] Using in-memory chat storage; data is lost on restart")
		uowFactory = memory.NewRepositoryFactory(memory.NewChatStore())
	}
	conversationCache := memory.NewConversationCache(cfg.Chat.ConversationCacheTTL)

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// NATS is optional; without it events stay in-process.
	var forwarder service.EventForwarder
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	publisherService := service.NewPublisherService(cfg.Chat.EventsTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Chat.EventsTopic, forwarder, sysLogger)

	// 3. Redis relay, optional for single-instance deployments
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 4. Chat pipeline
	c.WebSocketHub = websocket.NewHub(rdb, cfg.Chat.RedisChannel, wsLogger)

	store := service.NewConversationStore(uowFactory, conversationCache, service.ConversationStoreConfig{
		MaxContentLength: cfg.Chat.MaxContentLength,
		HistoryPageSize:  cfg.Chat.HistoryPageSize,
	}, sysLogger)
	machine := delivery.NewMachine(delivery.WithImplicitDelivery(cfg.Chat.ImplicitDelivery))
	dispatcher := service.NewDispatcher(c.WebSocketHub, wsLogger)
	gateway := service.NewChatGateway(store, machine, dispatcher, c.WebSocketHub, publisherService, service.ChatGatewayConfig{
		SyncLimit: cfg.Chat.SyncLimit,
	}, sysLogger)

	// 5. Transport
	c.ChatController = controller.NewChatController(store, gateway, cfg.App.JwtSecret)
	c.ChatSocketHandler = handler.NewChatSocketHandler(gateway, cfg.App.JwtSecret, cfg.Chat.SendBuffer, sysLogger, wsLogger)

	return c
}

// Close releases bus, NATS and redis connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
