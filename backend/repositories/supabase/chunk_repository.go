package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/repositories"
)

const schema = "public"

// RPCError is the error body PostgREST returns for a failed function call
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	msg := "supabase rpc failed"
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// matchRequest is the argument object of the similarity function
type matchRequest struct {
	QueryVector    []float64 `json:"query_vector"`
	MatchThreshold float64   `json:"match_threshold"`
	MatchCount     int       `json:"match_count"`
}

// ChunkRepository calls the similarity function through the Supabase REST API
type ChunkRepository struct {
	restURL  string
	function string
	headers  map[string]string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewChunkRepository creates a repository for POST {url}/rest/v1/rpc/{function}
func NewChunkRepository(cfg config.SupabaseConfig, logger *zap.Logger) (repositories.ChunkRepository, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", cfg.URL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &ChunkRepository{
		restURL:  base.String() + "/rest/v1",
		function: cfg.RPCFunction,
		headers: map[string]string{
			"apikey":        cfg.Key,
			"Authorization": "Bearer " + cfg.Key,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Backend returns the backend name
func (r *ChunkRepository) Backend() string {
	return "supabase"
}

type rpcResult struct {
	body string
	err  error
}

// MatchChunks invokes the remote similarity function.
// postgrest-go takes no context, so the call is abandoned when ctx ends or
// the timeout passes.
func (r *ChunkRepository) MatchChunks(ctx context.Context, vector []float64, threshold float64, count int) ([]models.RetrievedChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := matchRequest{
		QueryVector:    vector,
		MatchThreshold: threshold,
		MatchCount:     count,
	}

	done := make(chan rpcResult, 1)
	go func() {
		// The client records failures on itself, so each call gets its own.
		client := postgrest.NewClient(r.restURL, schema, r.headers)
		body := client.Rpc(r.function, "", args)
		done <- rpcResult{body: body, err: client.ClientError}
	}()

	var res rpcResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("supabase rpc request failed: %w", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("supabase rpc request failed: %w", res.err)
	}

	chunks, err := decodeChunks(res.body)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("relevant chunks fetched",
		zap.Int("count", len(chunks)),
		zap.Float64("threshold", threshold))
	return chunks, nil
}

// decodeChunks reads the function result. The client does not expose the
// response status, so a JSON object with a message is read as a PostgREST
// error and any non JSON body as a gateway failure.
func decodeChunks(body string) ([]models.RetrievedChunk, error) {
	var chunks []models.RetrievedChunk
	if err := json.Unmarshal([]byte(body), &chunks); err == nil {
		if chunks == nil {
			chunks = []models.RetrievedChunk{}
		}
		return chunks, nil
	}

	rpcErr := &RPCError{}
	if err := json.Unmarshal([]byte(body), rpcErr); err != nil {
		return nil, &RPCError{Message: strings.TrimSpace(body)}
	}
	if rpcErr.Message == "" && rpcErr.Code == "" {
		return nil, fmt.Errorf("failed to decode rpc response: unexpected body %.200s", body)
	}
	return nil, rpcErr
}
