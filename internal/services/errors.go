package services

import (
	"errors"
	"fmt"
	"strings"
)

// Stage markers. Every error returned from a pipeline stage wraps exactly one
// of these so callers can classify it with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrDownload   = errors.New("download error")
	ErrRepair     = errors.New("repair error")
	ErrMerge      = errors.New("merge error")
	ErrNormalize  = errors.New("normalize error")
	ErrCompose    = errors.New("compose error")
	ErrThumbnail  = errors.New("thumbnail error")
	ErrDelivery   = errors.New("delivery error")

	// ErrTransient tags errors wrapped without a stage marker.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Label returns the short, user-facing label for a stage error.
func Label(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "Validation failed"
	case errors.Is(err, ErrDownload):
		return "Download failed"
	case errors.Is(err, ErrRepair):
		return "Audio repair failed"
	case errors.Is(err, ErrMerge):
		return "Audio merge failed"
	case errors.Is(err, ErrNormalize):
		return "Audio normalization failed"
	case errors.Is(err, ErrCompose):
		return "Video creation failed"
	case errors.Is(err, ErrThumbnail):
		return "Thumbnail creation failed"
	case errors.Is(err, ErrDelivery):
		return "Delivery failed"
	default:
		return "Processing failed"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
