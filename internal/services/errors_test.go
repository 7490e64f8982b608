package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(ErrRepair, "repair", "track 2", "failed to repair audio", cause)

	if !errors.Is(err, ErrRepair) {
		t.Fatalf("expected ErrRepair, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "repair: track 2: failed to repair audio") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrValidation, "validate", "", "vibe is required", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := err.Error(); got != "validation error: validate: vibe is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		marker error
		want   string
	}{
		{ErrValidation, "Validation failed"},
		{ErrDownload, "Download failed"},
		{ErrRepair, "Audio repair failed"},
		{ErrMerge, "Audio merge failed"},
		{ErrNormalize, "Audio normalization failed"},
		{ErrCompose, "Video creation failed"},
		{ErrThumbnail, "Thumbnail creation failed"},
		{ErrDelivery, "Delivery failed"},
	}

	for _, tt := range tests {
		err := Wrap(tt.marker, "stage", "", "boom", nil)
		if got := Label(err); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.marker, got, tt.want)
		}
	}

	if got := Label(errors.New("unexpected")); got != "Processing failed" {
		t.Errorf("Label(unclassified) = %q", got)
	}
}

func TestWrapWithoutMarkerIsTransient(t *testing.T) {
	err := Wrap(nil, "stage", "", "boom", errors.New("cause"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if errors.Is(err, ErrDelivery) {
		t.Fatal("unmarked error must not be classified as a delivery failure")
	}
	if got := Label(err); got != "Processing failed" {
		t.Errorf("Label = %q", got)
	}
}
