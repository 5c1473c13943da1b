package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqgen/internal/chunker"
	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
	"github.com/pavelanni/mcqgen/internal/scoring"
	"github.com/pavelanni/mcqgen/internal/store"
)

// Generator produces questions for a chunk of text. *llm.Client implements it.
type Generator interface {
	GenerateQuestions(ctx context.Context, chunk model.Chunk, n int) ([]model.GeneratedQuestion, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	gen        Generator
	config     model.ServerConfig
	chunker    *chunker.Chunker
	aggregator *scoring.Aggregator
}

// New creates a new Handler. A nil aggregator scores without observers.
func New(s *store.Store, gen Generator, cfg model.ServerConfig, agg *scoring.Aggregator) (*Handler, error) {
	c, err := chunker.FromConfig(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	if cfg.QuestionsPerChunk < 1 {
		cfg.QuestionsPerChunk = 1
	}
	if agg == nil {
		agg = scoring.NewAggregator()
	}
	return &Handler{store: s, gen: gen, config: cfg, chunker: c, aggregator: agg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Get("/files", h.handleListFiles)
	r.Get("/files/{fileID}", h.handleGetFile)
	r.Get("/files/{fileID}/chunks", h.handleListChunks)
	r.Get("/files/{fileID}/questions", h.handleListQuestions)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/files", h.handleUpload)
		r.Post("/files/{fileID}/generate", h.handleGenerate)
	})

	r.Get("/quiz", h.handleListSessions)
	r.Post("/quiz", h.handleStartQuiz)
	r.Get("/quiz/{sessionID}", h.handleGetSession)
	r.Post("/quiz/{sessionID}/answers", h.handleAnswer)
	r.Post("/quiz/{sessionID}/submit", h.handleSubmit)
	r.Get("/quiz/{sessionID}/export", h.handleExport)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError writes a localized JSON error message.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

// writeStoreError maps a store error to 404 or 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	slog.Error("store error", "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func sessionIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	return id, err == nil
}
