package retrieval

import (
	"context"
	"fmt"

	"github.com/upb/butterfly-chat/backend/internal/rag"
	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/repositories"
	"go.uber.org/zap"
)

// Config fixes the similarity search parameters for every query
type Config struct {
	MatchThreshold float64
	MatchCount     int
}

// Result holds the chunks found for one query and their rendered context block
type Result struct {
	Chunks  []models.RetrievedChunk
	Context string
}

// RetrievalService looks up the chunks relevant to a query embedding
type RetrievalService struct {
	repo   repositories.ChunkRepository
	config Config
	logger *zap.Logger
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(repo repositories.ChunkRepository, config Config, logger *zap.Logger) (*RetrievalService, error) {
	if repo == nil {
		return nil, fmt.Errorf("chunk repository is required")
	}
	if config.MatchCount <= 0 {
		return nil, fmt.Errorf("match count must be positive, got %d", config.MatchCount)
	}
	if config.MatchThreshold < 0 || config.MatchThreshold > 1 {
		return nil, fmt.Errorf("match threshold must be between 0 and 1, got %v", config.MatchThreshold)
	}
	return &RetrievalService{
		repo:   repo,
		config: config,
		logger: logger,
	}, nil
}

// Retrieve runs the similarity search with the configured threshold and count.
// Repository errors are returned as-is; there is no empty-context fallback.
func (s *RetrievalService) Retrieve(ctx context.Context, vector []float64) (*Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	chunks, err := s.repo.MatchChunks(ctx, vector, s.config.MatchThreshold, s.config.MatchCount)
	if err != nil {
		return nil, err
	}

	// The remote function owns ordering; only the count is enforced here
	if len(chunks) > s.config.MatchCount {
		s.logger.Warn("similarity search returned more chunks than requested",
			zap.String("backend", s.repo.Backend()),
			zap.Int("requested", s.config.MatchCount),
			zap.Int("returned", len(chunks)))
		chunks = chunks[:s.config.MatchCount]
	}

	s.logger.Debug("chunks retrieved",
		zap.String("backend", s.repo.Backend()),
		zap.Int("count", len(chunks)),
		zap.Float64("threshold", s.config.MatchThreshold))

	return &Result{
		Chunks:  chunks,
		Context: rag.FormatContext(chunks),
	}, nil
}

// Backend names the repository serving the search
func (s *RetrievalService) Backend() string {
	return s.repo.Backend()
}
