package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/delivery"
	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/services"
	"github.com/bobarin/vibecast/internal/workspace"
)

// History persists job records. It is optional.
type History interface {
	CreateJob(ctx context.Context, job *models.JobRecord) error
	MarkRunning(ctx context.Context, id uuid.UUID) error
	CompleteJob(ctx context.Context, id uuid.UUID, result models.DeliveryResult, videoBytes, thumbnailBytes int64) error
	FailJob(ctx context.Context, id uuid.UUID, label, details string) error
}

// Options configure a Pipeline.
type Options struct {
	Policy         services.Policy
	FontPath       string
	ReclaimOnEntry bool
	History        History
}

// Result is the outcome of one job.
type Result struct {
	JobID     uuid.UUID
	Delivery  models.DeliveryResult
	Video     models.MediaAsset
	Thumbnail models.MediaAsset
}

// Pipeline runs render jobs one at a time.
type Pipeline struct {
	manager        *workspace.Manager
	gate           *workspace.Gate
	policy         services.Policy
	reclaimOnEntry bool
	history        History

	fetcher    *services.Fetcher
	repairer   *services.Repairer
	mixer      *services.Mixer
	composer   *services.Composer
	thumbnails *services.ThumbnailRenderer
	deliverer  *delivery.Deliverer
}

func NewPipeline(
	manager *workspace.Manager,
	gate *workspace.Gate,
	ffmpeg *services.FFmpegService,
	fetcher *services.Fetcher,
	deliverer *delivery.Deliverer,
	opts Options,
) *Pipeline {
	return &Pipeline{
		manager:        manager,
		gate:           gate,
		policy:         opts.Policy,
		reclaimOnEntry: opts.ReclaimOnEntry,
		history:        opts.History,
		fetcher:        fetcher,
		repairer:       services.NewRepairer(ffmpeg, opts.Policy),
		mixer:          services.NewMixer(ffmpeg, opts.Policy),
		composer:       services.NewComposer(ffmpeg, opts.Policy),
		thumbnails:     services.NewThumbnailRenderer(ffmpeg, opts.Policy, opts.FontPath),
		deliverer:      deliverer,
	}
}

// Policy returns the thresholds the pipeline runs with.
func (p *Pipeline) Policy() services.Policy {
	return p.policy
}

// Admission holds the job gate for one job.
type Admission struct {
	pipeline *Pipeline
	release  func()
}

// Begin takes the job gate and, under the on-entry policy, reclaims every
// workspace before anything in the request is inspected. The caller must
// Close the admission.
func (p *Pipeline) Begin(ctx context.Context) (*Admission, error) {
	release, err := p.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if p.reclaimOnEntry {
		if _, err := p.manager.ReclaimAll(); err != nil {
			log.Printf("[Workspace] reclamation incomplete: %v", err)
		}
	}
	return &Admission{pipeline: p, release: release}, nil
}

// Run executes a request under this admission with a new job id.
func (a *Admission) Run(ctx context.Context, req models.GenerateRequest, baseURL string) (Result, error) {
	return a.pipeline.run(ctx, uuid.New(), req, baseURL, false)
}

// Close releases the job gate. It is safe to call more than once.
func (a *Admission) Close() {
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

// Run executes a request synchronously. Result.JobID is set once the job's
// workspace has been allocated.
func (p *Pipeline) Run(ctx context.Context, req models.GenerateRequest, baseURL string) (Result, error) {
	admission, err := p.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer admission.Close()
	return admission.Run(ctx, req, baseURL)
}

// Execute runs a job taken from the queue. Its history record already exists.
func (p *Pipeline) Execute(ctx context.Context, job models.Job, baseURL string) (Result, error) {
	admission, err := p.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer admission.Close()

	req := models.GenerateRequest{
		AudioURLs: job.AudioURLs,
		ImageURL:  job.ImageURL,
		Vibe:      job.Vibe,
		Subtitle:  job.Subtitle,
	}
	return p.run(ctx, job.ID, req, baseURL, true)
}

// run expects the caller to hold the job gate.
func (p *Pipeline) run(ctx context.Context, jobID uuid.UUID, req models.GenerateRequest, baseURL string, queued bool) (Result, error) {
	var result Result
	prefix := fmt.Sprintf("[Job %s]", jobID)

	clean, err := ValidateRequest(req, p.policy)
	if err != nil {
		p.recordFailure(ctx, jobID, queued, err)
		return result, err
	}

	p.recordStart(ctx, jobID, clean, queued)
	start := time.Now()
	log.Printf("%s started: %d audio files", prefix, len(clean.AudioURLs))

	result, err = p.render(ctx, jobID, clean, baseURL)
	if err != nil {
		log.Printf("%s failed after %s: %v", prefix, time.Since(start).Round(time.Millisecond), err)
		p.recordFailure(ctx, jobID, true, err)
		return result, err
	}

	log.Printf("%s completed in %s (%s delivery)", prefix, time.Since(start).Round(time.Millisecond), result.Delivery.Mode)
	if p.history != nil {
		if err := p.history.CompleteJob(ctx, jobID, result.Delivery, result.Video.Size, result.Thumbnail.Size); err != nil {
			log.Printf("%s failed to record completion: %v", prefix, err)
		}
	}
	return result, nil
}

// render runs every stage in sequence inside a fresh workspace.
func (p *Pipeline) render(ctx context.Context, jobID uuid.UUID, req models.GenerateRequest, baseURL string) (Result, error) {
	var result Result
	prefix := fmt.Sprintf("[Job %s]", jobID)

	ws, err := p.manager.Allocate(jobID)
	if err != nil {
		return result, err
	}
	result.JobID = jobID

	// Download
	audioLimits := services.Constraints{
		MaxBytes:     p.policy.AudioMaxBytes,
		MinBytes:     p.policy.MinFileBytes,
		Timeout:      p.policy.AudioFetchTimeout,
		ContentTypes: services.AudioContentTypes,
	}
	raw := make([]models.MediaAsset, 0, len(req.AudioURLs))
	for i, audioURL := range req.AudioURLs {
		asset, err := p.fetcher.Fetch(ctx, audioURL, ws.Path(audioFileName(i+1, audioURL)), models.AssetRoleRawAudio, audioLimits)
		if err != nil {
			return result, services.Wrap(services.ErrDownload, "download", fmt.Sprintf("audio %d", i+1), "failed to download audio", err)
		}
		raw = append(raw, asset)
	}

	imageLimits := services.Constraints{
		MaxBytes:     p.policy.ImageMaxBytes,
		MinBytes:     p.policy.MinFileBytes,
		Timeout:      p.policy.ImageFetchTimeout,
		ContentTypes: services.ImageContentTypes,
	}
	image, err := p.fetcher.Fetch(ctx, req.ImageURL, ws.Path(imageFileName(req.ImageURL)), models.AssetRoleBackgroundImage, imageLimits)
	if err != nil {
		return result, services.Wrap(services.ErrDownload, "download", "image", "failed to download image", err)
	}
	log.Printf("%s downloaded %d audio files and background image", prefix, len(raw))

	// Repair
	repaired := make([]models.MediaAsset, 0, len(raw))
	for i, asset := range raw {
		fixed, err := p.repairer.Repair(ctx, asset.Path, ws.Path(fmt.Sprintf("repaired_%02d.wav", i+1)))
		if err != nil {
			return result, services.Wrap(services.ErrRepair, "repair", fmt.Sprintf("audio %d", i+1), "failed to repair audio", err)
		}
		repaired = append(repaired, fixed)
	}

	// Merge + normalize
	audio, err := p.mixer.ConcatenateAndNormalize(ctx, ws.Dir, repaired)
	if err != nil {
		return result, err
	}

	// Video
	result.Video, err = p.composer.Compose(ctx, image.Path, audio.Path, ws.Path(services.VideoFileName))
	if err != nil {
		return result, err
	}

	// Thumbnail
	result.Thumbnail, err = p.thumbnails.Render(ctx, image.Path, req.Vibe, req.Subtitle, ws.Path(services.ThumbnailFileName))
	if err != nil {
		return result, err
	}

	// Delivery
	result.Delivery, err = p.deliverer.Deliver(ctx, jobID, result.Video, result.Thumbnail, baseURL)
	if err != nil {
		return result, err
	}

	return result, nil
}

func (p *Pipeline) recordStart(ctx context.Context, jobID uuid.UUID, req models.GenerateRequest, queued bool) {
	if p.history == nil {
		return
	}
	var err error
	if queued {
		err = p.history.MarkRunning(ctx, jobID)
	} else {
		err = p.history.CreateJob(ctx, &models.JobRecord{
			ID:         jobID,
			Status:     models.JobStatusRunning,
			AudioCount: len(req.AudioURLs),
			Vibe:       req.Vibe,
			Subtitle:   req.Subtitle,
		})
	}
	if err != nil {
		log.Printf("[Job %s] failed to record start: %v", jobID, err)
	}
}

// recordFailure only writes when a record exists; synchronous validation
// failures are never persisted.
func (p *Pipeline) recordFailure(ctx context.Context, jobID uuid.UUID, exists bool, cause error) {
	if p.history == nil || !exists {
		return
	}
	if err := p.history.FailJob(ctx, jobID, services.Label(cause), cause.Error()); err != nil {
		log.Printf("[Job %s] failed to record failure: %v", jobID, err)
	}
}
