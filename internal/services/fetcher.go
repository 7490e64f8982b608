package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bobarin/vibecast/internal/models"
)

// Accepted content-type prefixes per input kind. Object stores and CDNs
// frequently serve media as a generic octet stream.
var (
	AudioContentTypes = []string{"audio/", "video/", "application/octet-stream", "binary/octet-stream"}
	ImageContentTypes = []string{"image/", "application/octet-stream", "binary/octet-stream"}
)

// Constraints bound a single fetch.
type Constraints struct {
	MaxBytes     int64
	MinBytes     int64
	Timeout      time.Duration
	ContentTypes []string // empty = accept any
}

// Fetcher downloads remote media into the job workspace.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return NewFetcherWithClient(&http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	})
}

// NewFetcherWithClient uses the given client; per-fetch timeouts still apply.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads rawURL to destPath. It never retries. On failure no file is
// left at destPath.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string, role models.AssetRole, c Constraints) (models.MediaAsset, error) {
	if err := ValidateHTTPURL(rawURL); err != nil {
		return models.MediaAsset{}, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "vibecast/1.0")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.MediaAsset{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if c.MaxBytes > 0 && resp.ContentLength > c.MaxBytes {
		return models.MediaAsset{}, fmt.Errorf("declared size %d bytes exceeds limit of %d bytes", resp.ContentLength, c.MaxBytes)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !contentTypeAccepted(ct, c.ContentTypes) {
		return models.MediaAsset{}, fmt.Errorf("unexpected content type %q", ct)
	}

	written, err := saveBody(resp.Body, destPath, c.MaxBytes)
	if err != nil {
		os.Remove(destPath)
		return models.MediaAsset{}, err
	}

	if written < c.MinBytes {
		os.Remove(destPath)
		return models.MediaAsset{}, fmt.Errorf("downloaded file too small (%d bytes, minimum %d)", written, c.MinBytes)
	}

	log.Printf("[Fetch] %s -> %s (%d bytes in %s)", redactURL(rawURL), destPath, written, time.Since(start).Round(time.Millisecond))

	return models.MediaAsset{Path: destPath, Role: role, Size: written}, nil
}

var errTooLarge = errors.New("response exceeds size limit")

func saveBody(body io.Reader, destPath string, maxBytes int64) (int64, error) {
	file, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer file.Close()

	reader := body
	if maxBytes > 0 {
		// One extra byte distinguishes "exactly at the limit" from "over it".
		reader = io.LimitReader(body, maxBytes+1)
	}

	written, err := io.Copy(file, reader)
	if err != nil {
		return written, fmt.Errorf("failed to write body: %w", err)
	}
	if maxBytes > 0 && written > maxBytes {
		return written, fmt.Errorf("%w of %d bytes", errTooLarge, maxBytes)
	}
	return written, nil
}

func contentTypeAccepted(header string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		mediaType = header
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, prefix := range prefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

// ValidateHTTPURL accepts only absolute http/https URLs with a host.
func ValidateHTTPURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q (http or https required)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// redactURL drops the query string, which often carries signed credentials.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
