package upvote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"Linkboard/internal/api/handlers"
	"Linkboard/internal/core/upvotes"
)

// maxOperationBody bounds a queued operation payload
const maxOperationBody = 64 << 10

// BatchRunner runs one outbox drain pass
type BatchRunner interface {
	Run(ctx context.Context) (*upvotes.BatchResult, error)
}

// ReconcileRunner runs one counter reconciliation pass
type ReconcileRunner interface {
	Run(ctx context.Context) (*upvotes.ReconcileResult, error)
}

// BatchResponse is the body returned to the trigger after a batch pass
type BatchResponse struct {
	Success    bool  `json:"success"`
	Processed  int   `json:"processed"`
	Failed     int   `json:"failed"`
	Duplicates int   `json:"duplicates"`
	Remaining  int64 `json:"remaining"`
	Rearmed    bool  `json:"rearmed"`
}

// JobHandler serves the signed internal endpoints driven by the trigger
type JobHandler struct {
	service    upvotes.Service
	processor  BatchRunner
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewJobHandler creates the internal job handler
func NewJobHandler(service upvotes.Service, processor BatchRunner, reconciler ReconcileRunner, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		service:    service,
		processor:  processor,
		reconciler: reconciler,
		logger:     logger,
	}
}

// HandleQueue validates and enqueues one operation
// POST /resource/upvote/queue
func (h *JobHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxOperationBody))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	op, err := h.service.Enqueue(r.Context(), raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{
		"success":    true,
		"resourceId": op.ResourceID,
		"action":     op.Action,
	})
}

// HandleBatch runs one processor pass. Per-item failures are reported in the
// body; only an infrastructure failure answers 500 so the trigger retries.
// POST /resource/upvote/job/batch
func (h *JobHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.Run(r.Context())
	if err != nil {
		h.logger.Error("upvote batch pass failed", "error", err)
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, BatchResponse{
		Success:    true,
		Processed:  result.Processed,
		Failed:     result.Failed,
		Duplicates: result.Duplicates,
		Remaining:  result.Remaining,
		Rearmed:    result.Rearmed,
	})
}

// HandleReconcile realigns cached counters with the vote log
// POST /resource/upvote/job/reconcile
func (h *JobHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Run(r.Context())
	if errors.Is(err, upvotes.ErrBacklogPending) {
		handlers.WriteError(w, http.StatusConflict, "BacklogPending", "Outbox must be drained before reconciling")
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, map[string]interface{}{
		"success":   true,
		"scanned":   result.Scanned,
		"corrected": result.Corrected,
		"skipped":   result.Skipped,
	})
}
