package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/core"
	db "docchat/internal/core/database"
	"docchat/internal/core/extract"
	"docchat/internal/core/ingest"
	"docchat/internal/core/llm"
	objectclient "docchat/internal/core/object-client"
	"docchat/internal/core/retrieval"
	"docchat/internal/core/websearch"
)

// App owns every long-lived client and the wired HTTP server.
type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Server       *Server
	Logger       *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	logger.Info("database initialized and bootstrapped")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	logger.Info("object storage client ready")

	embedder, err := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	searcher := websearch.NewDuckDuckGo()
	chatLLM, err := llm.NewOpenAIChat(cfg.OpenAIAPIKey, cfg.ChatModel, cfg.TitleModel, searcher)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	moderator, err := llm.NewOpenAIModerator(cfg.OpenAIAPIKey, cfg.ModerationModel)
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	extractor := extract.New(chatLLM)
	pipeline := ingest.NewPipeline(dbClient, objClient, embedder, extractor, chunker, logger)

	engine := retrieval.NewEngine(dbClient, embedder, logger)
	orchestrator := chat.NewOrchestrator(dbClient, chatLLM, moderator, engine, logger)

	server := NewServer(cfg, dbClient, objClient, pipeline, orchestrator)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Server:       server,
		Logger:       logger,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
