package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tutorstack/tutord/internal/engine"
	"github.com/tutorstack/tutord/internal/ingest"
	"github.com/tutorstack/tutord/internal/profile"
	"github.com/tutorstack/tutord/internal/provider"
	"github.com/tutorstack/tutord/internal/storage"
	"github.com/tutorstack/tutord/internal/tooltip"
	"github.com/tutorstack/tutord/internal/usage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Error codes returned in the response envelope.
const (
	codeInputError          = "input_error"
	codeProviderUnavailable = "provider_unavailable"
	codeNotFound            = "not_found"
	codeInternalError       = "internal_error"
)

// QueryService answers tutor queries. Implemented by engine.Engine.
type QueryService interface {
	Ask(ctx context.Context, query, userID string) (engine.Result, error)
	Ready() bool
}

// Deps carries the handler dependencies.
type Deps struct {
	Engine   QueryService
	Profiles *profile.Manager
	Tracker  *usage.Tracker
	Tooltips *tooltip.Manager
	Store    *storage.Store
	Logger   *slog.Logger
}

// NewHandler returns the HTTP API for the tutor service.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))
	r.Post("/query", handleQuery(deps))
	r.Get("/stats", handleStats(deps))
	r.Post("/reset-stats", handleResetStats(deps))
	r.Get("/profile", handleGetProfile(deps))
	r.Put("/profile", handlePutProfile(deps))
	r.Get("/interactions", handleListInteractions(deps))
	r.Get("/interactions/{id}", handleGetInteraction(deps))
	r.Post("/documents", handleSubmitDocument(deps))

	return r
}

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func respondError(w http.ResponseWriter, status int, code, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success:   false,
		Error:     &errorBody{Code: code, Message: fmt.Sprintf(format, args...)},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"engine_ready": deps.Engine.Ready(),
		})
	}
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, codeInputError, "invalid request body: %v", err)
			return
		}

		res, err := deps.Engine.Ask(r.Context(), req.Query, req.UserID)
		switch {
		case errors.Is(err, engine.ErrEmptyQuery):
			respondError(w, http.StatusBadRequest, codeInputError, "query is required and must not be empty")
			return
		case errors.Is(err, provider.ErrUnavailable):
			respondError(w, http.StatusServiceUnavailable, codeProviderUnavailable, "language model provider unavailable: %v", err)
			return
		case err != nil:
			deps.Logger.Error("query failed", "error", err)
			respondError(w, http.StatusInternalServerError, codeInternalError, "query failed: %v", err)
			return
		}

		respond(w, http.StatusOK, res)
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tips := deps.Tooltips.Snapshot()
		respond(w, http.StatusOK, map[string]any{
			"usage": deps.Tracker.Snapshot(),
			"tooltips": map[string]any{
				"prebuilt":   tips.Prebuilt,
				"generated":  tips.Generated,
				"efficiency": tips.Efficiency(),
			},
		})
	}
}

func handleResetStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Tracker.Reset(); err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "resetting stats: %v", err)
			return
		}
		deps.Tooltips.Reset()
		respond(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(r.URL.Query().Get("user_id"))
		if err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "loading profile: %v", err)
			return
		}
		respond(w, http.StatusOK, p)
	}
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var upd profile.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			respondError(w, http.StatusBadRequest, codeInputError, "invalid request body: %v", err)
			return
		}

		p, err := deps.Profiles.Apply(r.URL.Query().Get("user_id"), upd)
		if err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "updating profile: %v", err)
			return
		}
		respond(w, http.StatusOK, p)
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		interactions, err := deps.Store.ListInteractions(limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "listing interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		respond(w, http.StatusOK, interactions)
	}
}

func handleGetInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		interaction, err := deps.Store.GetInteraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, codeNotFound, "interaction not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "loading interaction: %v", err)
			return
		}
		respond(w, http.StatusOK, interaction)
	}
}

// DocumentRequest is the body of POST /documents.
type DocumentRequest struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

func handleSubmitDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // documents can be large
		defer r.Body.Close()

		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, codeInputError, "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			respondError(w, http.StatusBadRequest, codeInputError, "content is required")
			return
		}
		if req.Source == "" {
			req.Source = req.Title
		}
		if req.Source == "" {
			req.Source = "untitled"
		}

		doc := storage.Document{
			ID:        uuid.NewString(),
			Title:     req.Title,
			Source:    req.Source,
			Content:   req.Content,
			Status:    "queued",
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "saving document: %v", err)
			return
		}

		job := storage.Job{
			ID:          uuid.NewString(),
			Type:        ingest.JobTypeIndexDocument,
			PayloadJSON: ingest.IndexPayload(doc.ID),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			respondError(w, http.StatusInternalServerError, codeInternalError, "enqueueing index job: %v", err)
			return
		}

		respond(w, http.StatusAccepted, map[string]string{
			"id":     doc.ID,
			"status": "queued",
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
