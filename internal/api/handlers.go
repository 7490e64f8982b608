package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/db"
	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/worker"
	"github.com/bobarin/vibecast/internal/workspace"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 100
)

// JobQueue accepts validated jobs for background processing.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// JobStore is the job history the /jobs endpoints read and write.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.JobRecord) error
	FailJob(ctx context.Context, id uuid.UUID, label, details string) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.JobRecord, error)
	ListJobs(ctx context.Context, limit int) ([]models.JobRecord, error)
}

// HandlerConfig carries the settings handlers need from the environment.
type HandlerConfig struct {
	// PublicBaseURL prefixes local download links. Derived from the request when empty.
	PublicBaseURL string
	ReclaimPolicy string
}

type Handler struct {
	pipeline *worker.Pipeline
	manager  *workspace.Manager
	queue    JobQueue
	jobs     JobStore
	cfg      HandlerConfig
}

// NewHandler wires the HTTP surface. q and jobs may be nil.
func NewHandler(pipeline *worker.Pipeline, manager *workspace.Manager, q JobQueue, jobs JobStore, cfg HandlerConfig) *Handler {
	return &Handler{
		pipeline: pipeline,
		manager:  manager,
		queue:    q,
		jobs:     jobs,
		cfg:      cfg,
	}
}

// Generate handles POST /generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	// Reclamation runs before the body is even decoded
	admission, err := h.pipeline.Begin(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   services.Label(err),
			Details: err.Error(),
		})
		return
	}
	defer admission.Close()

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   services.Label(services.ErrValidation),
			Details: "Invalid request body",
		})
		return
	}

	result, err := admission.Run(r.Context(), req, h.baseURL(r))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			status = http.StatusBadRequest
		}
		resp := models.ErrorResponse{Error: services.Label(err), Details: err.Error()}
		if result.JobID != uuid.Nil {
			resp.JobID = result.JobID.String()
		}
		respondError(w, status, resp)
		return
	}

	resp := models.GenerateResponse{
		Success:       true,
		Message:       "Video and thumbnail generated successfully",
		VideoURL:      result.Delivery.VideoURL,
		ThumbnailURL:  result.Delivery.ThumbnailURL,
		VideoSize:     FormatSize(result.Video.Size),
		ThumbnailSize: FormatSize(result.Thumbnail.Size),
		JobID:         result.JobID.String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if result.Delivery.Mode == models.DeliveryModeLocal {
		resp.Note = h.localDeliveryNote()
	}
	respondJSON(w, http.StatusOK, resp)
}

// DownloadVideo handles GET /download/video/{jobId}
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	h.serveOutput(w, r, jobID, services.VideoFileName, "video/mp4",
		fmt.Sprintf(`attachment; filename="video-%s.mp4"`, jobID))
}

// DownloadThumbnail handles GET /download/thumbnail/{jobId}
func (h *Handler) DownloadThumbnail(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	h.serveOutput(w, r, jobID, services.ThumbnailFileName, "image/jpeg",
		fmt.Sprintf(`inline; filename="thumbnail-%s.jpg"`, jobID))
}

func (h *Handler) serveOutput(w http.ResponseWriter, r *http.Request, jobID, name, contentType, disposition string) {
	path, err := h.manager.Lookup(jobID, name)
	if err != nil {
		respondError(w, http.StatusNotFound, models.ErrorResponse{
			Error:   "File not found",
			Details: "The file was removed or the job id is unknown",
		})
		return
	}

	file, err := os.Open(path)
	if err != nil {
		respondError(w, http.StatusNotFound, models.ErrorResponse{Error: "File not found"})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to read file"})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, name, info.ModTime(), file)
}

// Storage handles GET /storage
func (h *Handler) Storage(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.Info()
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to read scratch storage",
			Details: err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.StorageResponse{
		WorkspaceInfo: info,
		TotalSize:     FormatSize(info.TotalBytes),
		Policy:        h.cfg.ReclaimPolicy,
	})
}

// EnqueueJob handles POST /jobs
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Job queue not configured",
			Details: "Set REDIS_URL to enable background jobs",
		})
		return
	}

	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   services.Label(services.ErrValidation),
			Details: "Invalid request body",
		})
		return
	}

	clean, err := worker.ValidateRequest(req, h.pipeline.Policy())
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrorResponse{Error: services.Label(err), Details: err.Error()})
		return
	}

	job := &models.Job{
		ID:        uuid.New(),
		AudioURLs: clean.AudioURLs,
		ImageURL:  clean.ImageURL,
		Vibe:      clean.Vibe,
		Subtitle:  clean.Subtitle,
		CreatedAt: time.Now().UTC(),
	}

	if h.jobs != nil {
		if err := h.jobs.CreateJob(r.Context(), &models.JobRecord{
			ID:         job.ID,
			Status:     models.JobStatusQueued,
			AudioCount: len(job.AudioURLs),
			Vibe:       job.Vibe,
			Subtitle:   job.Subtitle,
			CreatedAt:  job.CreatedAt,
		}); err != nil {
			respondError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create job", Details: err.Error()})
			return
		}
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		if h.jobs != nil {
			if ferr := h.jobs.FailJob(r.Context(), job.ID, "Enqueue failed", err.Error()); ferr != nil {
				log.Printf("[Job %s] failed to record enqueue failure: %v", job.ID, ferr)
			}
		}
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to enqueue job",
			Details: err.Error(),
			JobID:   job.ID.String(),
		})
		return
	}

	respondJSON(w, http.StatusAccepted, models.EnqueueResponse{JobID: job.ID, Status: models.JobStatusQueued})
}

// GetJob handles GET /jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobStore(w) {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid job ID"})
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, models.ErrorResponse{Error: "Job not found"})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get job", Details: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if !h.requireJobStore(w) {
		return
	}

	limit := defaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobsLimit {
			respondError(w, http.StatusBadRequest, models.ErrorResponse{
				Error: fmt.Sprintf("Invalid limit. Must be between 1 and %d", maxJobsLimit),
			})
			return
		}
		limit = n
	}

	jobs, err := h.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list jobs", Details: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, models.ListJobsResponse{Jobs: jobs, Limit: limit})
}

func (h *Handler) requireJobStore(w http.ResponseWriter) bool {
	if h.jobs == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Job history not configured",
			Details: "Set DATABASE_URL to enable job history",
		})
		return false
	}
	return true
}

// baseURL prefers the configured public URL, then the request's own origin.
func (h *Handler) baseURL(r *http.Request) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *Handler) localDeliveryNote() string {
	if h.cfg.ReclaimPolicy == "age" {
		return "Files are served from this server's scratch space and expire after the configured retention period"
	}
	return "Files are served from this server's scratch space and are removed when the next job starts"
}

// FormatSize renders a byte count as "<n> MB" or "<n> KB".
func FormatSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb {
		return humanize.FtoaWithDigits(float64(bytes)/mb, 2) + " MB"
	}
	return humanize.FtoaWithDigits(float64(bytes)/1024, 2) + " KB"
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, resp models.ErrorResponse) {
	respondJSON(w, status, resp)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
