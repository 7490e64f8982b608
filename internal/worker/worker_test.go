package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/models"
)

type sliceSource struct {
	mu   sync.Mutex
	jobs []*models.Job
	done chan struct{}
}

func (s *sliceSource) Dequeue(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func TestWorkerDrainsQueue(t *testing.T) {
	media := newMediaServer(t)
	f := newPipelineFixture(t)

	src := &sliceSource{done: make(chan struct{})}
	for i := 0; i < 2; i++ {
		src.jobs = append(src.jobs, &models.Job{
			ID:        uuid.New(),
			AudioURLs: []string{media.URL + "/a.mp3"},
			ImageURL:  media.URL + "/bg.png",
			Vibe:      "v",
			Subtitle:  "s",
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		New(src, f.pipeline, "http://localhost").Start(ctx)
		close(stopped)
	}()

	select {
	case <-src.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain the queue")
	}
	cancel()
	<-stopped

	if len(f.history.complete) != 2 {
		t.Fatalf("completed %d jobs, want 2", len(f.history.complete))
	}
}
