package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/repositories/postgres"
	"github.com/upb/butterfly-chat/backend/services/prompt"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HealthCheck(&app.Dependencies{})(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestReadinessCheck(t *testing.T) {
	logger := zap.NewNop()

	t.Run("supabase backend does not need a database", func(t *testing.T) {
		deps := &app.Dependencies{
			Config: &config.Config{Pipeline: config.PipelineConfig{Retriever: config.RetrieverSupabase}},
			Logger: logger,
			Chat:   &fakePipeline{},
		}

		w := httptest.NewRecorder()
		ReadinessCheck(deps)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, "not_used", body["checks"].(map[string]interface{})["database"])
	})

	t.Run("healthy when database is available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		deps := &app.Dependencies{
			Config: &config.Config{Pipeline: config.PipelineConfig{Retriever: config.RetrieverPostgres}},
			DB:     postgres.WrapDB(db, logger),
			Logger: logger,
			Chat:   &fakePipeline{},
		}

		w := httptest.NewRecorder()
		ReadinessCheck(deps)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "healthy", body["checks"].(map[string]interface{})["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		deps := &app.Dependencies{
			Config: &config.Config{Pipeline: config.PipelineConfig{Retriever: config.RetrieverPostgres}},
			DB:     postgres.WrapDB(db, logger),
			Logger: logger,
			Chat:   &fakePipeline{},
		}

		w := httptest.NewRecorder()
		ReadinessCheck(deps)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, "unhealthy", body["checks"].(map[string]interface{})["database"])
	})

	t.Run("not ready without pipeline", func(t *testing.T) {
		deps := &app.Dependencies{
			Config: &config.Config{Pipeline: config.PipelineConfig{Retriever: config.RetrieverPostgres}},
			Logger: logger,
		}

		w := httptest.NewRecorder()
		ReadinessCheck(deps)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		checks := decodeBody(t, w)["checks"].(map[string]interface{})
		assert.Equal(t, "not_initialized", checks["pipeline"])
		assert.Equal(t, "not_initialized", checks["database"])
	})
}

func TestStatusHandler(t *testing.T) {
	builder, err := prompt.NewBuilder(prompt.DefaultTemplate())
	require.NoError(t, err)

	tests := []struct {
		name        string
		environment string
		prompt      *prompt.Builder
		wantProd    bool
		wantPrompt  map[string]interface{}
	}{
		{
			name:        "test environment without prompt",
			environment: "test",
		},
		{
			name:        "production with prompt",
			environment: "production",
			prompt:      builder,
			wantProd:    true,
			wantPrompt:  map[string]interface{}{"domain": prompt.DefaultDomain, "language": "zh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &app.Dependencies{
				Config: &config.Config{
					Environment: tt.environment,
					Pipeline: config.PipelineConfig{
						EmbeddingModel:  "text-embedding-3-small",
						CompletionModel: "gpt-4o-mini",
						Retriever:       config.RetrieverSupabase,
						StreamProtocol:  config.StreamProtocolData,
					},
				},
				Prompt: tt.prompt,
			}

			w := httptest.NewRecorder()
			StatusHandler(deps)(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, Version, body["version"])
			assert.Equal(t, tt.environment, body["environment"])
			assert.Equal(t, tt.wantProd, body["production"])
			assert.Equal(t, "supabase", body["retriever"])
			assert.Equal(t, "gpt-4o-mini", body["models"].(map[string]interface{})["completion"])

			if tt.wantPrompt == nil {
				assert.NotContains(t, body, "prompt")
				return
			}
			assert.Equal(t, tt.wantPrompt, body["prompt"])
		})
	}
}
