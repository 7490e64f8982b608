package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobarin/vibecast/internal/models"
)

func audioConstraints() Constraints {
	return Constraints{
		MaxBytes:     64 * 1024,
		MinBytes:     2048,
		Timeout:      5 * time.Second,
		ContentTypes: AudioContentTypes,
	}
}

func serveBytes(contentType string, size int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if contentType == "" {
			w.Header()["Content-Type"] = nil
		} else {
			w.Header().Set("Content-Type", contentType)
		}
		w.Write([]byte(strings.Repeat("a", size)))
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(serveBytes("audio/mpeg", 4096))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio_01.mp3")
	asset, err := NewFetcher().Fetch(context.Background(), srv.URL+"/song.mp3?sig=abc", dest, models.AssetRoleRawAudio, audioConstraints())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if asset.Size != 4096 || asset.Path != dest || asset.Role != models.AssetRoleRawAudio {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if fileSize(dest) != 4096 {
		t.Fatalf("file on disk has %d bytes", fileSize(dest))
	}
}

func TestFetchAcceptsMissingContentType(t *testing.T) {
	srv := httptest.NewServer(serveBytes("", 4096))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio_01.bin")
	if _, err := NewFetcher().Fetch(context.Background(), srv.URL, dest, models.AssetRoleRawAudio, audioConstraints()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"too small", serveBytes("audio/mpeg", 1000)},
		{"html error page", serveBytes("text/html; charset=utf-8", 4096)},
		{"declared too large", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Length", "131072")
			w.Write([]byte(strings.Repeat("a", 128*1024)))
		}},
		{"streamed too large", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/mpeg")
			flusher := w.(http.Flusher)
			chunk := []byte(strings.Repeat("b", 16*1024))
			for i := 0; i < 8; i++ {
				w.Write(chunk)
				flusher.Flush()
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			dest := filepath.Join(t.TempDir(), "audio_01.mp3")
			if _, err := NewFetcher().Fetch(context.Background(), srv.URL, dest, models.AssetRoleRawAudio, audioConstraints()); err == nil {
				t.Fatal("expected error")
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Fatalf("expected no file at %s after failure", dest)
			}
		})
	}
}

func TestFetchRejectsNonHTTPScheme(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "image.png")
	_, err := NewFetcher().Fetch(context.Background(), "ftp://example.com/a.png", dest, models.AssetRoleBackgroundImage, Constraints{})
	if err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := audioConstraints()
	c.Timeout = 50 * time.Millisecond
	dest := filepath.Join(t.TempDir(), "audio_01.mp3")
	if _, err := NewFetcher().Fetch(context.Background(), srv.URL, dest, models.AssetRoleRawAudio, c); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestValidateHTTPURL(t *testing.T) {
	valid := []string{"http://example.com/a.mp3", "https://cdn.example.com/x?y=z"}
	invalid := []string{"", "example.com/a.mp3", "file:///etc/passwd", "https://", "javascript:alert(1)"}

	for _, u := range valid {
		if err := ValidateHTTPURL(u); err != nil {
			t.Errorf("ValidateHTTPURL(%q) = %v", u, err)
		}
	}
	for _, u := range invalid {
		if err := ValidateHTTPURL(u); err == nil {
			t.Errorf("ValidateHTTPURL(%q) accepted", u)
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://user:pw@example.com/a.mp3?token=secret")
	if strings.Contains(got, "secret") || strings.Contains(got, "pw") {
		t.Fatalf("credentials leaked: %s", got)
	}
}
