package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/llm"
	"github.com/RichardoC/neurosci-ai/internal/metrics"
	"github.com/RichardoC/neurosci-ai/internal/uploads"
	"go.uber.org/zap"
)

// Gateway is the completion side of the ingestion endpoint.
type Gateway interface {
	Configured() bool
	Complete(ctx context.Context, prompt string, files []string) (*llm.Completion, error)
}

type Handler struct {
	llm     Gateway
	uploads uploads.Store
	metrics metrics.Recorder
	logger  *zap.Logger
}

func NewHandler(gateway Gateway, store uploads.Store, recorder metrics.Recorder, logger *zap.Logger) *Handler {
	if store == nil {
		store = uploads.Discard{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Handler{
		llm:     gateway,
		uploads: store,
		metrics: recorder,
		logger:  logger,
	}
}

type FileInfo struct {
	Name string `json:"name"`
}

type ChatResponse struct {
	Response string     `json:"response"`
	Files    []FileInfo `json:"files"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleChat forwards one message, and the names of any attachments, to the
// completion provider.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	kind := payloadKind(r)
	status := h.handleChat(w, r, kind)
	h.metrics.ObserveRequest(kind, status)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request, kind string) int {
	if r.Method != http.MethodPost {
		return h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}

	if !h.llm.Configured() {
		h.logger.Error("No OpenAI API key found")
		return h.writeError(w, http.StatusInternalServerError, "OpenAI API key not configured")
	}

	req, err := h.parseRequest(r, kind)
	if err != nil {
		h.logger.Warn("Rejected chat request",
			zap.Error(err),
			zap.String("kind", kind))
		return h.writeError(w, http.StatusBadRequest, err.Error())
	}

	h.metrics.ObserveAttachments(len(req.Files))

	start := time.Now()
	completion, err := h.llm.Complete(r.Context(), req.Message, req.Files)
	h.metrics.ObserveCompletion(time.Since(start), err)
	if err != nil {
		status := llm.StatusCode(err)
		h.logger.Error("Failed to process message",
			zap.Error(err),
			zap.Int("status", status))
		var upstream *llm.UpstreamError
		if errors.As(err, &upstream) {
			return h.writeError(w, status, "Error from OpenAI: "+upstream.Message)
		}
		return h.writeError(w, status, err.Error())
	}

	files := make([]FileInfo, 0, len(completion.Files))
	for _, name := range completion.Files {
		files = append(files, FileInfo{Name: name})
	}
	return h.writeJSON(w, http.StatusOK, ChatResponse{Response: completion.Text, Files: files})
}

// HandleHealth reports liveness and whether a credential is configured.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": h.llm.Configured(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) int {
	return writeJSON(h.logger, w, status, v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) int {
	return writeJSON(h.logger, w, status, ErrorResponse{Error: msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response",
			zap.Error(err),
			zap.Int("status", status))
	}
	return status
}
