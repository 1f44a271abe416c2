package bootstrap

import (
	"context"
	"log"

	"ai-scribe-be/internal/config"
	"ai-scribe-be/internal/controller"
	"ai-scribe-be/internal/pkg/logger"
	"ai-scribe-be/internal/repository/implementation"
	"ai-scribe-be/internal/repository/memory"
	"ai-scribe-be/internal/service"
	"ai-scribe-be/internal/websocket"
	"ai-scribe-be/pkg/embedding"
	"ai-scribe-be/pkg/llm/factory"
	"ai-scribe-be/pkg/pipeline"
	"ai-scribe-be/pkg/pipeline/differential"
	"ai-scribe-be/pkg/pipeline/handout"
	"ai-scribe-be/pkg/pipeline/insights"
	"ai-scribe-be/pkg/pipeline/record"
	"ai-scribe-be/pkg/retrieval"

	pkgNats "ai-scribe-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController

	// Background pipeline (exposed for main.go to run)
	Orchestrator *pipeline.Orchestrator

	// WebSockets
	CaptureService service.ICaptureService
	WebSocketHub   *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	pipelineLog := log.Default()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
		cfg.Ai.HuggingFaceAPIKey,
		cfg.Ai.HuggingFaceURL,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Repositories
	sessionRepo := implementation.NewSessionRepository(db)
	noteRepo := implementation.NewNoteRepository(db)
	transcriptRepo := implementation.NewTranscriptRepository(db)
	artifactRepo := implementation.NewArtifactRepository(db)
	liveStore := memory.NewLiveStore(cfg.Pipeline.SessionTTL)

	// 5. Infrastructure
	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/capture.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 6. Pipeline
	retriever := retrieval.NewRetriever(db, embeddingProvider, cfg.Pipeline.RetrievalTimeout, cfg.Pipeline.RetrievalLimit, pipelineLog)

	sink := service.NewArtifactSink(artifactRepo)
	notesSource := service.NewNotesSource(noteRepo)
	notifier := service.NewArtifactNotifier(wsHub, natsPub, wsLogger)

	orchestrator := pipeline.NewOrchestrator(
		pipeline.Config{
			Gate: pipeline.Gate{
				MinWords:    cfg.Pipeline.InsightsMinWords,
				MinInterval: cfg.Pipeline.InsightsMinInterval,
			},
			SettleWindow: cfg.Pipeline.DifferentialSettle,
			HandoutWait:  cfg.Pipeline.HandoutInsightsWait,
		},
		liveStore,
		notesSource,
		retriever,
		sink,
		notifier,
		insights.NewStage(llmProvider, pipelineLog),
		differential.NewStage(llmProvider, pipelineLog),
		record.NewStage(llmProvider, pipelineLog),
		handout.NewStage(llmProvider, pipelineLog),
		pubSub,
		pipelineLog,
	)

	// 7. Services
	captureService := service.NewCaptureService(liveStore, transcriptRepo, orchestrator, sysLogger)
	sessionService := service.NewSessionService(
		sessionRepo,
		noteRepo,
		transcriptRepo,
		artifactRepo,
		liveStore,
		orchestrator,
		captureService,
		sink,
		notifier,
		llmProvider,
		cfg.Pipeline.SpeakerBatchSize,
		sysLogger,
		pipelineLog,
	)

	// 8. Controllers
	return &Container{
		SessionController: controller.NewSessionController(sessionService),
		Orchestrator:      orchestrator,
		CaptureService:    captureService,
		WebSocketHub:      wsHub,
	}
}
