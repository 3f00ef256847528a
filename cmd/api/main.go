package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/api/handlers"
	"github.com/docqa/backend/internal/cache/redis"
	"github.com/docqa/backend/internal/catalog"
	"github.com/docqa/backend/internal/chunker"
	"github.com/docqa/backend/internal/conversation"
	"github.com/docqa/backend/internal/ingestion"
	"github.com/docqa/backend/internal/llm"
	"github.com/docqa/backend/internal/metrics"
	"github.com/docqa/backend/internal/middleware/ratelimit"
	"github.com/docqa/backend/internal/middleware/security"
	"github.com/docqa/backend/internal/middleware/validation"
	"github.com/docqa/backend/internal/query"
	"github.com/docqa/backend/internal/vector"
	"github.com/docqa/backend/pkg/config"
	appLogger "github.com/docqa/backend/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Document Q&A API Server", zap.String("version", version))

	metrics.Init()

	embedder, llmClient := buildProviders(cfg)

	vectorIndex, err := vector.NewManager(cfg.Storage.VectorStoreDir(), embedder)
	if err != nil {
		appLogger.Fatal("Failed to open vector index", zap.Error(err))
	}

	docCatalog, err := catalog.Open(cfg.Storage.VectorStoreDir())
	if err != nil {
		appLogger.Fatal("Failed to open document catalog", zap.Error(err))
	}

	splitter, err := chunker.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		appLogger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	pipeline, err := ingestion.NewPipeline(ingestion.Options{
		UploadsDir:        cfg.Storage.UploadsDir(),
		MaxFileSize:       cfg.Upload.MaxFileSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	}, splitter, vectorIndex, docCatalog)
	if err != nil {
		appLogger.Fatal("Failed to create ingestion pipeline", zap.Error(err))
	}

	var generator query.Generator
	if cfg.LLM.Enabled && llmClient != nil {
		generator = llmClient
		appLogger.Info("Answer synthesis enabled", zap.String("model", cfg.LLM.Model))
	} else {
		appLogger.Info("Answer synthesis disabled, serving context-only answers")
	}
	engine := query.NewEngine(vectorIndex, generator, cfg.RAG.RetrievalK, cfg.RAG.MaxK, cfg.RAG.PreviewLength)

	conversations, err := conversation.NewStore(cfg.Storage.ConversationsDir())
	if err != nil {
		appLogger.Fatal("Failed to open conversation store", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{}))

	documentHandler := handlers.NewDocumentHandler(pipeline, docCatalog, engine)
	chatHandler := handlers.NewChatHandler(engine, conversations)
	conversationHandler := handlers.NewConversationHandler(conversations)
	healthHandler := handlers.NewHealthHandler(version, docCatalog, vectorIndex, conversations)
	wsHandler := handlers.NewWebSocketHandler(engine, conversations)

	api := app.Group("/api/v1")

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/search", documentHandler.SearchDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Post("/chat/query", chatHandler.HandleQuery)

	api.Post("/conversations", conversationHandler.CreateConversation)
	api.Get("/conversations", conversationHandler.ListConversations)
	api.Get("/conversations/:id", conversationHandler.GetConversation)
	api.Delete("/conversations/:id", conversationHandler.DeleteConversation)
	api.Get("/conversations/:id/export", conversationHandler.ExportConversation)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// buildProviders selects the embedding provider and, when remote access is
// configured, the LLM client shared by embedding and answer synthesis.
func buildProviders(cfg *config.Config) (llm.Embedder, *llm.Client) {
	var llmClient *llm.Client
	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = cfg.Embedding.APIKey
	}
	if apiKey != "" && (cfg.LLM.Enabled || cfg.Embedding.Provider == "openai") {
		llmClient = llm.NewClient(apiKey, cfg.LLM.Model, cfg.Embedding.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}

	var embedder llm.Embedder
	if cfg.Embedding.Provider == "openai" && llmClient != nil {
		embedder = llmClient
		appLogger.Info("Using remote embeddings", zap.String("model", cfg.Embedding.Model))
	} else {
		embedder = llm.NewLocalEmbedder(cfg.Embedding.Dim)
		appLogger.Info("Using local embeddings", zap.Int("dim", cfg.Embedding.Dim))
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSeconds)*time.Second)
		if err != nil {
			appLogger.Warn("Redis unavailable, embeddings will not be cached", zap.Error(err))
		} else {
			embedder = llm.NewCachedEmbedder(embedder, cache)
		}
	}

	return embedder, llmClient
}
