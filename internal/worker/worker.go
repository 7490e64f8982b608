package worker

import (
	"context"
	"log"
	"time"

	"github.com/bobarin/vibecast/internal/models"
)

const dequeueTimeout = 5 * time.Second

// JobSource yields queued jobs. Dequeue returns nil, nil when nothing arrived
// within the timeout.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, error)
}

// Worker consumes the render queue and runs each job through the pipeline.
type Worker struct {
	queue    JobSource
	pipeline *Pipeline
	baseURL  string
}

func New(q JobSource, pipeline *Pipeline, baseURL string) *Worker {
	return &Worker{queue: q, pipeline: pipeline, baseURL: baseURL}
}

// Start processes jobs until ctx is cancelled. Jobs run one at a time; the
// pipeline gate serializes them with synchronous requests.
func (w *Worker) Start(ctx context.Context) {
	log.Println("Worker started")
	w.processQueue(ctx)
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, dequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing render job: %v", err)
				sleep(ctx, time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Job %s] panic recovered: %v", job.ID, r)
		}
	}()

	log.Printf("Processing job %s (%d audio files)", job.ID, len(job.AudioURLs))
	result, err := w.pipeline.Execute(ctx, *job, w.baseURL)
	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		return
	}
	log.Printf("Job %s completed successfully: %s", job.ID, result.Delivery.VideoURL)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
