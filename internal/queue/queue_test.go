package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/models"
)

// Runs against a real Redis when VIBECAST_TEST_REDIS_URL is set.
func TestEnqueueDequeueRoundTrip(t *testing.T) {
	url := os.Getenv("VIBECAST_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VIBECAST_TEST_REDIS_URL not set")
	}

	q, err := New(url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer q.Close()
	q.name = "queue:render:test:" + uuid.NewString()

	ctx := context.Background()
	job := &models.Job{
		ID:        uuid.New(),
		AudioURLs: []string{"https://example.com/a.mp3", "https://example.com/b.mp3"},
		ImageURL:  "https://example.com/bg.jpg",
		Vibe:      "Focus",
		Subtitle:  "deep work",
	}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n, err := q.Length(ctx); err != nil || n != 1 {
		t.Fatalf("Length = %d, %v", n, err)
	}

	got, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil || got.ID != job.ID || len(got.AudioURLs) != 2 {
		t.Fatalf("unexpected job %+v", got)
	}

	empty, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got %+v, %v", empty, err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not a redis url"); err == nil {
		t.Fatal("expected parse error")
	}
}
