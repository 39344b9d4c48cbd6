package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/repositories"
)

var functionNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ChunkRepository calls the similarity function directly over a PostgreSQL
// connection. The function must accept (vector, float, int) and return rows
// with url, date_updated and content columns.
type ChunkRepository struct {
	db       *DB
	function string
	logger   *zap.Logger
}

// NewChunkRepository creates a chunk repository bound to the given SQL function
func NewChunkRepository(db *DB, function string, logger *zap.Logger) (repositories.ChunkRepository, error) {
	if !functionNamePattern.MatchString(function) {
		return nil, fmt.Errorf("invalid similarity function name %q", function)
	}

	parts := strings.Split(function, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}

	return &ChunkRepository{
		db:       db,
		function: strings.Join(parts, "."),
		logger:   logger,
	}, nil
}

// Backend returns the backend name
func (r *ChunkRepository) Backend() string {
	return "postgres"
}

// MatchChunks executes the similarity function and scans the matching chunks
func (r *ChunkRepository) MatchChunks(ctx context.Context, vector []float64, threshold float64, count int) ([]models.RetrievedChunk, error) {
	query := fmt.Sprintf(`
		SELECT url, date_updated::text, content
		FROM %s($1::vector, $2, $3)
	`, r.function)

	rows, err := r.db.QueryContext(ctx, query, VectorLiteral(vector), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query relevant chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]models.RetrievedChunk, 0, count)
	for rows.Next() {
		var chunk models.RetrievedChunk
		if err := rows.Scan(&chunk.URL, &chunk.DateUpdated, &chunk.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	r.logger.Debug("relevant chunks fetched",
		zap.Int("count", len(chunks)),
		zap.Float64("threshold", threshold))
	return chunks, nil
}

// VectorLiteral encodes a vector in the pgvector text format, e.g. [0.1,-0.2]
func VectorLiteral(vector []float64) string {
	var b strings.Builder
	b.Grow(len(vector)*10 + 2)
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
