package bootstrap

import (
	"context"
	"log"
	"os"

	"ai-dispatch-be/internal/config"
	"ai-dispatch-be/internal/controller"
	"ai-dispatch-be/internal/pkg/logger"
	"ai-dispatch-be/internal/repository/implementation"
	"ai-dispatch-be/internal/service"
	"ai-dispatch-be/pkg/ai/classifier"
	"ai-dispatch-be/pkg/ai/router"
	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/dispatch"
	"ai-dispatch-be/pkg/events"
	"ai-dispatch-be/pkg/evidence"
	"ai-dispatch-be/pkg/kv"
	"ai-dispatch-be/pkg/kv/gormkv"
	"ai-dispatch-be/pkg/kv/memorykv"
	"ai-dispatch-be/pkg/kv/rediskv"
	"ai-dispatch-be/pkg/llm"
	"ai-dispatch-be/pkg/llm/factory"
	"ai-dispatch-be/pkg/llm/ollama"
	"ai-dispatch-be/pkg/lock"
	"ai-dispatch-be/pkg/pipelines"
	"ai-dispatch-be/pkg/workflow"

	pktNats "ai-dispatch-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// EngineTopic is the in-process bus topic carrying engine lifecycle events.
const EngineTopic = "ENGINE_EVENTS"

type Container struct {
	// Controllers
	OrchestratorController controller.IOrchestratorController
	DiagnosticsController  controller.IDiagnosticsController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Engine internals, exposed for the simulation command.
	Engine      *workflow.Engine
	Checkpoints *workflow.CheckpointStore
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.LogMaxSizeMB, cfg.App.Environment == "production")
	engineLogger := log.New(os.Stdout, "", log.LstdFlags)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	busPublisher := events.NewWatermillPublisher(pubSub, EngineTopic)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis (only dialed when a backend needs it)
	var rdb *redis.Client
	redisClient := func() *redis.Client {
		if rdb != nil {
			return rdb
		}
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		return rdb
	}

	// 3. Durable Storage
	var kvStore kv.Store
	switch cfg.Engine.KVBackend {
	case "redis":
		kvStore = rediskv.New(redisClient(), "engine")
		log.Printf("[INFO] Using KV Backend: REDIS")
	case "postgres":
		kvStore = gormkv.New(db)
		log.Printf("[INFO] Using KV Backend: POSTGRES")
	default:
		kvStore = memorykv.New()
		log.Printf("[INFO] Using KV Backend: MEMORY")
	}

	var locks lock.Locker
	if cfg.Engine.LockBackend == "redis" {
		locks = lock.NewRedisLocker(redisClient(), "engine")
		log.Printf("[INFO] Using Lock Backend: REDIS")
	} else {
		locks = lock.NewMemoryLocker()
		log.Printf("[INFO] Using Lock Backend: MEMORY")
	}

	// 4. LLM Provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Embedding is optional: without a model, case evidence falls back to
	// keyword matching.
	var embedder llm.Embedder
	if cfg.Ai.EmbedModel != "" {
		embedder = ollama.NewEmbedder(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbedModel)
		log.Printf("[INFO] Using Embedding Model: %s", cfg.Ai.EmbedModel)
	}

	// 5. Repositories
	sessionRepo := implementation.NewSessionRepository(db)
	deviceRepo := implementation.NewDeviceRepository(db)
	rescueCaseRepo := implementation.NewRescueCaseRepository(db)
	graphRepo := implementation.NewGraphRepository(db)

	// 6. Engine Assembly
	checkpoints := workflow.NewCheckpointStore(kvStore, engineLogger)
	tasks := workflow.NewTaskExecutor(kvStore, engineLogger)
	clarifier := clarify.NewManager(checkpoints, engineLogger)

	sources := implementation.NewEvidenceSources(deviceRepo, graphRepo, rescueCaseRepo, embedder)
	collector := evidence.NewCollector(sources, sources, sources, engineLogger)

	dispatcher := dispatch.NewEventDispatcher(busPublisher, engineLogger)
	commander := dispatch.NewDeviceEventCommander(deviceRepo, busPublisher, engineLogger)

	registry, err := pipelines.BuildRegistry(pipelines.Deps{
		LLM:        llmProvider,
		Devices:    deviceRepo,
		Evidence:   collector,
		Dispatcher: dispatcher,
		Commander:  commander,
		Logger:     engineLogger,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to build pipeline registry: %v", err)
	}

	engine := workflow.NewEngine(registry, checkpoints, tasks, clarifier, locks, busPublisher, engineLogger)
	engine.SetLockTTL(cfg.Engine.LockTTL)

	intentClassifier := classifier.NewLLMClassifier(llmProvider, engineLogger)
	intentRouter := router.New(pipelines.Routes(), pipelines.GeneralChat, engineLogger)

	// 7. Services
	consumerService := service.NewConsumerService(pubSub, EngineTopic, natsPub)
	orchestratorService := service.NewOrchestratorService(
		sessionRepo,
		intentClassifier,
		intentRouter,
		engine,
		checkpoints,
		cfg.Engine.RunTimeout,
		sysLogger,
	)

	// 8. Controllers
	return &Container{
		OrchestratorController: controller.NewOrchestratorController(orchestratorService),
		DiagnosticsController:  controller.NewDiagnosticsController(sysLogger),
		ConsumerService:        consumerService,
		Engine:                 engine,
		Checkpoints:            checkpoints,
	}
}
