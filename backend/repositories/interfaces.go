package repositories

import (
	"context"

	"github.com/upb/butterfly-chat/backend/models"
)

// ChunkRepository runs the similarity search over the pre-populated chunk store
type ChunkRepository interface {
	// MatchChunks returns at most count chunks whose similarity to vector
	// exceeds threshold. Ordering is decided by the store.
	MatchChunks(ctx context.Context, vector []float64, threshold float64, count int) ([]models.RetrievedChunk, error)

	// Backend names the implementation for logs and status reporting
	Backend() string
}
