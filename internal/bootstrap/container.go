package bootstrap

import (
	"context"
	"log"
	"time"

	"chatsync-be/internal/config"
	"chatsync-be/internal/controller"
	"chatsync-be/internal/handler"
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/internal/repository/memory"
	"chatsync-be/internal/repository/unitofwork"
	"chatsync-be/internal/service"
	"chatsync-be/internal/websocket"
	"chatsync-be/pkg/llm/factory"
	pktNats "chatsync-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	ChatController  controller.IChatController
	RealtimeHandler *handler.RealtimeHandler

	// Background services, started by Start
	ConsumerService service.IConsumerService
	ActivityService *service.ActivityService
	WebSocketHub    *websocket.Hub

	Logger logger.ILogger

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)

	// 2. Reply job queue (in-process)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.Responder.Concurrency)},
		watermill.NewStdLogger(false, false),
	)

	// 3. Responder
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider:     cfg.Ai.LLMProvider,
		Model:        cfg.Ai.LLMModel,
		BaseURL:      cfg.Ai.OllamaBaseURL,
		SystemPrompt: cfg.Ai.SystemPrompt,
		EchoDelay:    cfg.Ai.EchoDelay,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure. NATS and Redis are optional; without them activity
	// events stay local to the sending connection's instance.
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (running single-instance)", err)
		rdb.Close()
		rdb = nil
	}

	wsHub := websocket.NewHub(rdb, wsLogger)

	// 5. Services
	ownership := memory.NewOwnershipCache(30 * time.Minute)
	chatService := service.NewChatService(uowFactory, ownership, eventPublisher, sysLogger)
	publisherService := service.NewPublisherService(cfg.Responder.Topic, pubSub)
	sendService := service.NewSendService(uowFactory, chatService, publisherService, eventPublisher, sysLogger)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Responder.Topic,
		uowFactory,
		llmProvider,
		wsHub, // Hub implements ReplyDelivery
		sysLogger,
		service.ConsumerOptions{
			Timeout:       cfg.Responder.Timeout,
			Concurrency:   cfg.Responder.Concurrency,
			HistoryWindow: cfg.Responder.HistoryWindow,
		},
	)

	var activityService *service.ActivityService
	if natsSub != nil {
		activityService = service.NewActivityService(natsSub, wsHub, wsLogger)
	}

	return &Container{
		ChatController:  controller.NewChatController(chatService),
		RealtimeHandler: handler.NewRealtimeHandler(wsHub, sendService, cfg.Auth.JWTSecret, wsLogger),

		ConsumerService: consumerService,
		ActivityService: activityService,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,

		pubSub:  pubSub,
		natsPub: natsPub,
		natsSub: natsSub,
		rdb:     rdb,
	}
}

// Start launches the hub and the background workers. They stop when ctx ends.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}

	if c.ActivityService != nil {
		if err := c.ActivityService.Start(ctx); err != nil {
			// activity push is best-effort; chats keep working without it
			log.Printf("[WARN] Activity service not started: %v", err)
		}
	}
	return nil
}

// Status summarises which optional backends this instance is running with.
func (c *Container) Status() fiber.Map {
	return fiber.Map{
		"connections":   c.WebSocketHub.Connections(),
		"clustered":     c.WebSocketHub.Clustered(),
		"events":        c.natsPub != nil,
		"activity_push": c.ActivityService != nil,
	}
}

// Close waits for in-flight replies and releases connections.
func (c *Container) Close() {
	c.pubSub.Close()
	c.ConsumerService.Wait()
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	c.Logger.Sync()
}
