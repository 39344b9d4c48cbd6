package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/internal/streaming"
	"github.com/upb/butterfly-chat/backend/middleware"
	"github.com/upb/butterfly-chat/backend/models"
	"github.com/upb/butterfly-chat/backend/services"
	"github.com/upb/butterfly-chat/backend/services/chat"
	"github.com/upb/butterfly-chat/backend/services/providers"
	"github.com/upb/butterfly-chat/backend/utils"
)

// fakePipeline replays deltas and then returns err
type fakePipeline struct {
	deltas []string
	err    error
	got    *chat.Request
	calls  int
}

func (f *fakePipeline) Stream(ctx context.Context, req *chat.Request, callback providers.StreamCallback) (*chat.Result, error) {
	f.calls++
	f.got = req
	result := &chat.Result{RequestID: req.RequestID, MessageID: req.MessageID, State: models.RequestStateStreaming}
	for _, d := range f.deltas {
		if err := callback(&providers.StreamChunk{Delta: d}); err != nil {
			return result, err
		}
	}
	if f.err != nil {
		result.State = models.RequestStateFailed
		return result, f.err
	}
	result.State = models.RequestStateDone
	result.FinishReason = "stop"
	result.Usage = &providers.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}
	return result, nil
}

func newChatDeps(protocol string, pipeline app.ChatPipeline) *app.Dependencies {
	return &app.Dependencies{
		Config: &config.Config{Pipeline: config.PipelineConfig{StreamProtocol: protocol}},
		Logger: zap.NewNop(),
		Chat:   pipeline,
	}
}

func postChat(t *testing.T, deps *app.Dependencies, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req = req.WithContext(middleware.WithRequestID(req.Context(), "req-123"))
	w := httptest.NewRecorder()
	ChatHandler(deps)(w, req)
	return w
}

const monarchBody = `{"messages":[{"role":"user","content":"What is a monarch butterfly?"}]}`

func TestChatHandler_DataStream(t *testing.T) {
	pipeline := &fakePipeline{deltas: []string{"Monarchs ", "migrate."}}
	w := postChat(t, newChatDeps(streaming.ProtocolData, pipeline), monarchBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get(streaming.DataStreamHeader))

	require.NotNil(t, pipeline.got)
	assert.Equal(t, "req-123", pipeline.got.RequestID)
	assert.True(t, strings.HasPrefix(pipeline.got.MessageID, "msg-"))
	assert.Equal(t, []models.Message{{Role: models.RoleUser, Content: "What is a monarch butterfly?"}}, pipeline.got.Messages)

	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `f:{"messageId":"`+pipeline.got.MessageID+`"}`, lines[0])
	assert.Equal(t, `0:"Monarchs "`, lines[1])
	assert.Equal(t, `0:"migrate."`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], `e:{"finishReason":"stop","usage":{"promptTokens":10,"completionTokens":2}`))
	assert.Equal(t, `d:{"finishReason":"stop","usage":{"promptTokens":10,"completionTokens":2}}`, lines[4])
}

func TestChatHandler_TextStream(t *testing.T) {
	pipeline := &fakePipeline{deltas: []string{"Monarchs ", "migrate."}}
	w := postChat(t, newChatDeps(streaming.ProtocolText, pipeline), monarchBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Monarchs migrate.", w.Body.String())
}

func TestChatHandler_InvalidRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
		field   string
	}{
		{"malformed json", `{"messages":`, "invalid JSON body", ""},
		{"empty body", ``, "request body is empty", ""},
		{"missing messages", `{}`, "Validation failed", "messages"},
		{"empty messages", `{"messages":[]}`, "Validation failed", "messages"},
		{"unknown role", `{"messages":[{"role":"tool","content":"x"}]}`, "Validation failed", "messages[0].role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &fakePipeline{}
			w := postChat(t, newChatDeps(streaming.ProtocolData, pipeline), tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, pipeline.calls)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, "bad_request", response.Error)
			assert.Contains(t, response.Message, tt.message)
			if tt.field != "" {
				assert.Contains(t, response.Details, tt.field)
			}
		})
	}
}

func TestChatHandler_ErrorBeforeStreaming(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
		stage     string
	}{
		{
			name:      "last message not from user",
			err:       services.WrapValidation("last message must be from the user", nil),
			status:    http.StatusBadRequest,
			errorType: "bad_request",
			stage:     "input",
		},
		{
			name: "embedding provider failure",
			err: services.WrapExternal(services.StageEmbedding, "embedding request failed",
				providers.NewProviderError("openai", "API_ERROR", "invalid api key", 401, nil)),
			status:    http.StatusBadGateway,
			errorType: "upstream_error",
			stage:     "embedding",
		},
		{
			name:      "retrieval failure",
			err:       services.WrapExternal(services.StageRetrieval, "similarity search failed", assert.AnError),
			status:    http.StatusBadGateway,
			errorType: "upstream_error",
			stage:     "retrieval",
		},
		{
			name:      "prompt failure",
			err:       services.WrapInternal(services.StagePromptBuilding, "failed to build prompt", assert.AnError),
			status:    http.StatusInternalServerError,
			errorType: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(t, newChatDeps(streaming.ProtocolData, &fakePipeline{err: tt.err}), monarchBody)

			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get(streaming.DataStreamHeader))

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.errorType, response.Error)
			if tt.stage != "" {
				assert.Equal(t, tt.stage, response.Details["stage"])
			}
		})
	}
}

func TestChatHandler_ErrorMidStream(t *testing.T) {
	pipeline := &fakePipeline{
		deltas: []string{"Monarchs "},
		err: services.WrapExternal(services.StageStreaming, "completion stream failed",
			providers.NewProviderError("openai", "API_ERROR", "server error", 500, nil)),
	}
	w := postChat(t, newChatDeps(streaming.ProtocolData, pipeline), monarchBody)

	assert.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `0:"Monarchs "`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], `3:"completion stream failed: `))
}
