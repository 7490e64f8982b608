package worker

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/bobarin/vibecast/internal/models"
	"github.com/bobarin/vibecast/internal/services"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true,
	".oga": true, ".opus": true, ".flac": true, ".webm": true, ".mp4": true,
}

var captionStripper = strings.NewReplacer(`"`, "", `'`, "", `\`, "")

// SanitizeCaption removes quote and backslash characters and trims spaces.
func SanitizeCaption(s string) string {
	return strings.TrimSpace(captionStripper.Replace(s))
}

// ValidateRequest checks a render request and returns its sanitized form.
// Every error wraps services.ErrValidation.
func ValidateRequest(req models.GenerateRequest, policy services.Policy) (models.GenerateRequest, error) {
	invalid := func(op, format string, args ...any) error {
		return services.Wrap(services.ErrValidation, "validate", op, fmt.Sprintf(format, args...), nil)
	}

	if len(req.AudioURLs) == 0 {
		return req, invalid("audioUrls", "at least one audio URL is required")
	}
	if len(req.AudioURLs) > policy.MaxAudioFiles {
		return req, invalid("audioUrls", "at most %d audio URLs are allowed, got %d", policy.MaxAudioFiles, len(req.AudioURLs))
	}

	clean := models.GenerateRequest{AudioURLs: make([]string, len(req.AudioURLs))}
	for i, raw := range req.AudioURLs {
		raw = strings.TrimSpace(raw)
		if err := services.ValidateHTTPURL(raw); err != nil {
			return req, invalid("audioUrls", "audio URL %d: %v", i+1, err)
		}
		clean.AudioURLs[i] = raw
	}

	clean.ImageURL = strings.TrimSpace(req.ImageURL)
	if clean.ImageURL == "" {
		return req, invalid("imageUrl", "image URL is required")
	}
	if err := services.ValidateHTTPURL(clean.ImageURL); err != nil {
		return req, invalid("imageUrl", "%v", err)
	}
	if !imageExtensions[urlExtension(clean.ImageURL)] {
		return req, invalid("imageUrl", "image must be one of jpg, jpeg, png, gif, bmp, webp")
	}

	var err error
	if clean.Vibe, err = validateCaption("vibe", req.Vibe, policy.MaxCaptionLength); err != nil {
		return req, err
	}
	if clean.Subtitle, err = validateCaption("subtitle", req.Subtitle, policy.MaxCaptionLength); err != nil {
		return req, err
	}

	return clean, nil
}

func validateCaption(field, value string, maxLen int) (string, error) {
	clean := SanitizeCaption(value)
	if clean == "" {
		return "", services.Wrap(services.ErrValidation, "validate", field, field+" is required", nil)
	}
	if n := len([]rune(clean)); n > maxLen {
		return "", services.Wrap(services.ErrValidation, "validate", field,
			fmt.Sprintf("%s must be at most %d characters, got %d", field, maxLen, n), nil)
	}
	return clean, nil
}

// urlExtension returns the lowercased extension of the URL path, ignoring
// the query string and fragment.
func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}

// audioFileName picks the workspace name of the n-th (1-based) audio input.
func audioFileName(n int, rawURL string) string {
	ext := urlExtension(rawURL)
	if !audioExtensions[ext] {
		ext = ".bin"
	}
	return fmt.Sprintf("audio_%02d%s", n, ext)
}

func imageFileName(rawURL string) string {
	ext := urlExtension(rawURL)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return "image" + ext
}
