package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/bobarin/promptreel/internal/models"
)

// JobQueue is what the handlers need from the queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
	Length(ctx context.Context) (int64, error)
}

type Handler struct {
	queue JobQueue
}

func NewHandler(q JobQueue) *Handler {
	return &Handler{queue: q}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateJob validates, normalizes, and enqueues a render job. The job is
// accepted for processing, not rendered inline.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var job models.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	if err := job.Normalize(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queue.Enqueue(r.Context(), &job); err != nil {
		log.Printf("[API] enqueue failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	log.Printf("[API] queued job for chat %s (%d scenes, %s)", job.ChatID, job.Scenes, job.Ratio)
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "queued",
		"scenes": job.Scenes,
		"ratio":  job.Ratio,
	})
}

func (h *Handler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Length(r.Context())
	if err != nil {
		log.Printf("[API] queue length failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"depth": depth})
}
