package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/config"
	"github.com/upb/butterfly-chat/backend/utils"
	"go.uber.org/zap"
)

// Version is reported by the status endpoint
var Version = "0.1.0"

// HealthCheck returns a simple liveness handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessCheck reports whether the pipeline can serve requests.
// The database is only checked when the postgres retriever is in use.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		ready := true
		checks := map[string]string{}

		if deps.Chat == nil {
			ready = false
			checks["pipeline"] = "not_initialized"
		} else {
			checks["pipeline"] = "initialized"
		}

		switch {
		case deps.Config.Pipeline.Retriever != config.RetrieverPostgres:
			checks["database"] = "not_used"
		case deps.DB == nil:
			ready = false
			checks["database"] = "not_initialized"
		default:
			if err := deps.DB.HealthCheck(ctx); err != nil {
				ready = false
				checks["database"] = "unhealthy"
				deps.Logger.Error("database health check failed", zap.Error(err))
			} else {
				checks["database"] = "healthy"
			}
		}

		status, httpStatus := "ready", http.StatusOK
		if !ready {
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		}

		_ = utils.WriteJSON(w, httpStatus, map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	}
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"version":     Version,
			"environment": deps.Config.Environment,
			"production":  deps.Config.IsProduction(),
			"models": map[string]string{
				"embedding":  deps.Config.Pipeline.EmbeddingModel,
				"completion": deps.Config.Pipeline.CompletionModel,
			},
			"retriever":       deps.Config.Pipeline.Retriever,
			"stream_protocol": deps.Config.Pipeline.StreamProtocol,
		}
		if deps.Prompt != nil {
			response["prompt"] = map[string]string{
				"domain":   deps.Prompt.Domain(),
				"language": deps.Prompt.Language(),
			}
		}

		_ = utils.WriteJSON(w, http.StatusOK, response)
	}
}
