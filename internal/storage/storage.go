package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Upload timeout per attempt; rendered videos can be several hundred MB
	uploadTimeout = 300 * time.Second

	// Retry configuration
	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// Storage is a Supabase Storage bucket used as the durable object store.
type Storage struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
	retryBase  time.Duration
}

func New(url, serviceKey, bucket string) *Storage {
	return &Storage{
		url:        strings.TrimRight(strings.TrimSpace(url), "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		Bucket:     strings.TrimSpace(bucket),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryBase: baseRetryDelay,
	}
}

// Configured reports whether URL, service key and bucket are all set.
func (s *Storage) Configured() bool {
	return s != nil && s.url != "" && s.serviceKey != "" && s.Bucket != ""
}

// Put uploads the file at localPath under key with retries and exponential
// backoff, and returns its public URL.
func (s *Storage) Put(ctx context.Context, localPath, key, contentType string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("object store is not configured")
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, key)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			log.Printf("[Storage] Upload retry %d/%d for %s (waiting %v)...", attempt, maxRetries, key, delay)

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		status, body, err := s.putOnce(ctx, url, localPath, info.Size(), contentType)
		if err != nil {
			lastErr = fmt.Errorf("failed to upload: %w", err)
			if isRetryableError(err) {
				log.Printf("[Storage] Upload attempt %d failed (retryable): %v", attempt+1, err)
				continue
			}
			return "", lastErr
		}

		if status == http.StatusOK || status == http.StatusCreated {
			if attempt > 0 {
				log.Printf("[Storage] Upload succeeded on attempt %d for %s", attempt+1, key)
			}
			return s.PublicURL(key), nil
		}

		lastErr = fmt.Errorf("upload failed with status %d: %s", status, truncate(body, 500))

		if isRetryableStatus(status) {
			log.Printf("[Storage] Upload attempt %d returned status %d (retryable): %s", attempt+1, status, truncate(body, 200))
			continue
		}

		// Non-retryable status (400, 401, 403, 404, 413, etc.)
		return "", lastErr
	}

	return "", fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

// putOnce streams the file in a single PUT. Each attempt gets its own timeout.
func (s *Storage) putOnce(ctx context.Context, url, localPath string, size int64, contentType string) (int, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPut, url, file)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}

// PublicURL returns the public URL for an object key.
func (s *Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, key)
}

// RenderKey builds the object key for one output of a job:
// renders/<jobID>/<UTC timestamp>/<filename>.
func RenderKey(jobID uuid.UUID, at time.Time, filename string) string {
	return path.Join("renders", jobID.String(), at.UTC().Format("20060102T150405Z"), filename)
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func (s *Storage) retryDelay(attempt int) time.Duration {
	delay := float64(s.retryBase) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
