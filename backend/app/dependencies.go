package app

import (
	"context"
	"fmt"

	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/repositories"
	"github.com/upb/butterfly-chat/backend/repositories/postgres"
	"github.com/upb/butterfly-chat/backend/repositories/supabase"
	"github.com/upb/butterfly-chat/backend/services/chat"
	"github.com/upb/butterfly-chat/backend/services/prompt"
	"github.com/upb/butterfly-chat/backend/services/providers"
	"github.com/upb/butterfly-chat/backend/services/providers/openai"
	"github.com/upb/butterfly-chat/backend/services/retrieval"
	"go.uber.org/zap"
)

// ChatPipeline runs one chat request end to end
type ChatPipeline interface {
	Stream(ctx context.Context, req *chat.Request, callback providers.StreamCallback) (*chat.Result, error)
}

// Dependencies holds all application dependencies.
// Every client is constructed once here and shared by all requests; none of
// them hold per-request state.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil unless the postgres retriever is selected
	Logger *zap.Logger

	// Repositories
	Chunks repositories.ChunkRepository

	// Providers
	OpenAI *openai.OpenAIAdapter

	// Services
	Retrieval *retrieval.RetrievalService
	Prompt    *prompt.Builder
	Chat      ChatPipeline
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Initialize providers
	deps.initProviders(cfg)

	// Initialize services
	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("retriever", cfg.Pipeline.Retriever),
		zap.String("embedding_model", cfg.Pipeline.EmbeddingModel),
		zap.String("completion_model", cfg.Pipeline.CompletionModel))
	return deps, nil
}

// initDatabase opens the direct PostgreSQL connection when the postgres retriever is used
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Pipeline.Retriever != config.RetrieverPostgres {
		d.Logger.Info("direct database connection disabled", zap.String("retriever", cfg.Pipeline.Retriever))
		return nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db
	return nil
}

// initRepositories selects the chunk repository for the configured backend
func (d *Dependencies) initRepositories(cfg *config.Config) error {
	var (
		repo repositories.ChunkRepository
		err  error
	)
	switch cfg.Pipeline.Retriever {
	case config.RetrieverPostgres:
		repo, err = postgres.NewChunkRepository(d.DB, cfg.Supabase.RPCFunction, d.Logger)
	case config.RetrieverSupabase:
		repo, err = supabase.NewChunkRepository(cfg.Supabase, d.Logger)
	default:
		err = fmt.Errorf("unknown retriever backend %q", cfg.Pipeline.Retriever)
	}
	if err != nil {
		return err
	}

	d.Chunks = repo
	d.Logger.Info("repositories initialized", zap.String("backend", repo.Backend()))
	return nil
}

// initProviders creates the OpenAI-compatible client used for embeddings and completions
func (d *Dependencies) initProviders(cfg *config.Config) {
	d.OpenAI = openai.NewOpenAIAdapter(providers.ProviderConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	}, d.Logger)
	d.Logger.Info("registered OpenAI provider", zap.String("base_url", cfg.OpenAI.BaseURL))
}

// initServices builds the pipeline stages
func (d *Dependencies) initServices(cfg *config.Config) error {
	retrievalService, err := retrieval.NewRetrievalService(d.Chunks, retrieval.Config{
		MatchThreshold: cfg.Pipeline.MatchThreshold,
		MatchCount:     cfg.Pipeline.MatchCount,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Retrieval = retrievalService

	tmpl := prompt.DefaultTemplate()
	if cfg.Prompt.TemplateFile != "" {
		tmpl, err = prompt.LoadTemplate(cfg.Prompt.TemplateFile)
		if err != nil {
			return err
		}
		d.Logger.Info("loaded prompt template", zap.String("file", cfg.Prompt.TemplateFile))
	}
	builder, err := prompt.NewBuilder(tmpl.WithDomain(cfg.Prompt.Domain))
	if err != nil {
		return err
	}
	d.Prompt = builder

	d.Chat = chat.NewChatService(
		d.OpenAI,
		d.Retrieval,
		d.Prompt,
		d.OpenAI,
		prompt.NewTokenCounter(cfg.Pipeline.CompletionModel, d.Logger),
		chat.Config{
			EmbeddingModel:  cfg.Pipeline.EmbeddingModel,
			CompletionModel: cfg.Pipeline.CompletionModel,
		},
		d.Logger,
	)
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.DB = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
