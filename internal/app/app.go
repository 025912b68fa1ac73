package app

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/graphlearn/internal/config"
	"github.com/OFFIS-RIT/graphlearn/internal/db"
	"github.com/OFFIS-RIT/graphlearn/internal/pipeline"
	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	gemai "github.com/OFFIS-RIT/graphlearn/pkg/ai/gemini"
	oai "github.com/OFFIS-RIT/graphlearn/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/graphlearn/pkg/ai/openai"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/loader"
	lio "github.com/OFFIS-RIT/graphlearn/pkg/loader/io"
	"github.com/OFFIS-RIT/graphlearn/pkg/loader/pdf"
	ls3 "github.com/OFFIS-RIT/graphlearn/pkg/loader/s3"
	"github.com/OFFIS-RIT/graphlearn/pkg/loader/web"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"
	pgstore "github.com/OFFIS-RIT/graphlearn/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Store    store.DocumentStorage
	AIClient ai.GraphAIClient
	Pipeline *pipeline.DocumentPipeline
}

// New connects to the database, runs migrations when enabled and builds the
// pipeline from cfg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.AutoMigrate {
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	documents := pgstore.NewDocumentDBStorageWithConnection(pool)

	blobs, err := NewBlobLoader(ctx, cfg.Storage)
	if err != nil {
		pool.Close()
		return nil, err
	}

	aiClient, err := NewAIClient(ctx, cfg.AI)
	if err != nil {
		pool.Close()
		return nil, err
	}

	p, err := NewPipeline(cfg, documents, blobs, aiClient)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Application initialised",
		"storage", cfg.Storage.Adapter,
		"ai", cfg.AI.Adapter,
		"model", cfg.AI.ChatModel,
		"merge_strategy", cfg.Pipeline.MergeStrategy,
	)
	return &App{
		Config:   cfg,
		DB:       pool,
		Store:    documents,
		AIClient: aiClient,
		Pipeline: p,
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewPipeline assembles the document pipeline around the given store, blob
// loader and model client.
func NewPipeline(
	cfg config.Config,
	documents store.DocumentStorage,
	blobs loader.BlobLoader,
	aiClient ai.GraphAIClient,
) (*pipeline.DocumentPipeline, error) {
	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:       aiClient,
		Model:          cfg.AI.ChatModel,
		Temperature:    cfg.AI.Temperature,
		MaxTokens:      cfg.AI.MaxTokens,
		Timeout:        cfg.AI.Timeout,
		MaxInputChars:  cfg.Pipeline.MaxPromptChars,
		ExpansionLevel: cfg.Pipeline.ExpansionLevel,
		RepairJSON:     cfg.AI.RepairJSON,
	})
	if err != nil {
		return nil, err
	}

	scraper := web.NewWikipediaScraper(web.WikipediaScraperParams{
		BaseURL:       cfg.Scrape.BaseURL,
		UserAgent:     cfg.Scrape.UserAgent,
		Mode:          web.Mode(cfg.Scrape.Mode),
		MaxChars:      cfg.Scrape.MaxChars,
		RatePerSecond: cfg.Scrape.RatePerSecond,
		Timeout:       cfg.Scrape.Timeout,
	})

	return pipeline.NewDocumentPipeline(pipeline.NewDocumentPipelineParams{
		Store:         documents,
		Blobs:         blobs,
		Text:          pdf.NewPDFTextExtractor(cfg.Pipeline.PdftotextFallback),
		Scraper:       scraper,
		Graphs:        graphClient,
		MinTextChars:  cfg.Pipeline.MinTextChars,
		MergeStrategy: cfg.Pipeline.MergeStrategy,
		CallTimeout:   cfg.Pipeline.CallTimeout,
		TempDir:       cfg.Pipeline.TempDir,
	})
}

// NewAIClient selects the text generation backend.
func NewAIClient(ctx context.Context, cfg config.AIConfig) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel: cfg.ChatModel,
			BaseURL:   cfg.ChatURL,
			ApiKey:    cfg.ChatKey,

			MaxConcurrentRequests: int64(cfg.ParallelRequests),
			JSONMode:              cfg.JSONMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	case "gemini":
		client, err := gemai.NewGraphGeminiClient(ctx, gemai.NewGraphGeminiClientParams{
			ChatModel: cfg.ChatModel,
			APIKey:    cfg.ChatKey,
			BaseURL:   cfg.ChatURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	case "openai", "":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel: cfg.ChatModel,
			ChatURL:   cfg.ChatURL,
			ChatKey:   cfg.ChatKey,
		}), nil
	}
	return nil, fmt.Errorf("unknown ai adapter %q", cfg.Adapter)
}

// NewBlobLoader selects the document blob store.
func NewBlobLoader(ctx context.Context, cfg config.StorageConfig) (loader.BlobLoader, error) {
	switch cfg.Adapter {
	case "local":
		return lio.NewLocalBlobLoader(cfg.LocalRoot, cfg.MaxBytes), nil
	case "s3", "":
		blobs, err := ls3.NewS3BlobLoader(ctx, ls3.NewS3BlobLoaderParams{
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			MaxBytes:  cfg.MaxBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 loader: %w", err)
		}
		return blobs, nil
	}
	return nil, fmt.Errorf("unknown storage adapter %q", cfg.Adapter)
}
