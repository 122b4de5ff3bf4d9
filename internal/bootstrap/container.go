package bootstrap

import (
	"fmt"
	"time"

	"local-assistant/internal/config"
	"local-assistant/internal/constant"
	"local-assistant/internal/controller"
	"local-assistant/internal/handler"
	"local-assistant/internal/model"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/repository/memory"
	"local-assistant/internal/repository/unitofwork"
	"local-assistant/internal/service"
	"local-assistant/internal/websocket"
	"local-assistant/pkg/database"
	"local-assistant/pkg/events"
	"local-assistant/pkg/llm/engine"
	"local-assistant/pkg/llm/llamacpp"
	"local-assistant/pkg/modelfs"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const settingCacheTTL = 10 * time.Minute

type Container struct {
	Logger logger.ILogger

	// Controllers
	SessionController  controller.ISessionController
	LLMController      controller.ILLMController
	SettingsController controller.ISettingsController

	// WebSockets
	StreamHandler *handler.StreamHandler
	EventHandler  *handler.EventHandler
	WebSocketHub  *websocket.Hub

	// Services (exposed for the CLI commands)
	SessionService  service.ISessionService
	ChatService     service.IChatService
	LLMService      service.ILLMService
	SettingsService service.ISettingsService

	// Background Services (run by the serve command)
	ConsumerService service.IConsumerService

	db     *gorm.DB
	engine *engine.Engine
	pubSub *gochannel.GoChannel
}

type Options struct {
	// Console mirrors the log to stdout
	Console bool
}

func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	// 1. Logging
	sysLogger := logger.NewZapLogger(logger.Options{
		FilePath:   cfg.Logger.FilePath,
		Level:      cfg.Logger.Level,
		Production: cfg.IsProduction(),
		Console:    opts.Console,
	})
	traceLogger := logger.NewIsolatedLogger(cfg.Logger.TraceFilePath)

	// 2. Store
	db, err := database.NewGormDB(database.GormConfig{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.Connection,
		LogLevel: cfg.Database.LogLevel,
		Zap:      sysLogger.Zap(),
	}, model.All()...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// 3. Event Bus
	pubSub := events.NewBus(sysLogger.Zap())

	// 4. Model runtime
	models, err := modelfs.New(cfg.LLM.ModelsDir)
	if err != nil {
		return nil, err
	}

	backendName := "llama.cpp"
	if !llamacpp.Available {
		backendName = "unavailable"
		sysLogger.Warn("BOOT", "Native backend not compiled in; model loads will fail", nil)
	}
	llmEngine := engine.New(
		llamacpp.New(),
		engineConfig(cfg.LLM.Generation),
		engine.WithLogger(sysLogger),
		engine.WithTraceLogger(traceLogger),
	)

	// 5. Services
	publisherService := service.NewPublisherService(pubSub, constant.TopicSessionEvents, sysLogger)
	conversationService := service.NewConversationService(uowFactory, sysLogger)
	settingsService := service.NewSettingsService(uowFactory, memory.NewSettingCache(settingCacheTTL), sysLogger)

	sessionService, err := service.NewSessionService(
		conversationService,
		publisherService,
		cfg.Cache.SessionCapacity,
		sysLogger,
	)
	if err != nil {
		return nil, err
	}

	chatService := service.NewChatService(sessionService, llmEngine, sysLogger)
	llmService := service.NewLLMService(llmEngine, models, sessionService, settingsService, backendName, sysLogger)

	wsHub := websocket.NewHub(sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		constant.TopicSessionEvents,
		settingsService,
		wsHub,
		sysLogger,
	)

	// 6. Controllers
	return &Container{
		Logger: sysLogger,

		SessionController:  controller.NewSessionController(sessionService, chatService, conversationService),
		LLMController:      controller.NewLLMController(llmService, chatService),
		SettingsController: controller.NewSettingsController(settingsService),

		StreamHandler: handler.NewStreamHandler(chatService, sysLogger),
		EventHandler:  handler.NewEventHandler(wsHub),
		WebSocketHub:  wsHub,

		SessionService:  sessionService,
		ChatService:     chatService,
		LLMService:      llmService,
		SettingsService: settingsService,
		ConsumerService: consumerService,

		db:     db,
		engine: llmEngine,
		pubSub: pubSub,
	}, nil
}

// Close unloads the model and releases the bus and the store.
func (c *Container) Close() error {
	c.engine.Unload()

	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("BOOT", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}

	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}

	c.Logger.Sync()
	return err
}

func engineConfig(g config.GenerationConfig) engine.Config {
	return engine.Config{
		ModelPath:     g.ModelPath,
		ContextSize:   g.ContextSize,
		Threads:       g.Threads,
		MaxTokens:     g.MaxTokens,
		Temperature:   g.Temperature,
		TopP:          g.TopP,
		TopK:          g.TopK,
		RepeatPenalty: g.RepeatPenalty,
		GPU: engine.GPUConfig{
			Enabled: g.GPU.Enabled,
			Layers:  g.GPU.Layers,
			Device:  g.GPU.Device,
		},
	}
}
