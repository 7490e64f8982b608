package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/vibecast/internal/testsupport"
)

func composeInputs(t *testing.T) (dir, image, audio string) {
	t.Helper()
	dir = t.TempDir()
	image = filepath.Join(dir, "image.jpg")
	audio = filepath.Join(dir, NormalizedFileName)
	testsupport.WriteFile(t, image, 50*1024)
	testsupport.WriteFile(t, audio, 50*1024)
	return dir, image, audio
}

func TestComposeZoom(t *testing.T) {
	dir, image, audio := composeInputs(t)
	runner := testsupport.NewFakeRunner()
	composer := NewComposer(newTestFFmpeg(runner), DefaultPolicy())

	asset, err := composer.Compose(context.Background(), image, audio, filepath.Join(dir, VideoFileName))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if asset.Size == 0 {
		t.Fatal("expected non-empty video")
	}
	if runner.Count("zoompan") != 1 {
		t.Fatal("expected zoompan render")
	}
	if runner.Count("stillimage") != 0 {
		t.Fatal("fallback should not run")
	}
	for _, want := range []string{"+faststart", "-shortest", "libx264", "yuv420p"} {
		if runner.Count(want) != 1 {
			t.Errorf("expected %q in compose args", want)
		}
	}
}

func TestComposeFallsBackWhenProbeFails(t *testing.T) {
	dir, image, audio := composeInputs(t)
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return c.IsProbe() }
	composer := NewComposer(newTestFFmpeg(runner), DefaultPolicy())

	if _, err := composer.Compose(context.Background(), image, audio, filepath.Join(dir, VideoFileName)); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if runner.Count("zoompan") != 0 {
		t.Fatal("zoom render should be skipped without a duration")
	}
	if runner.Count("stillimage") != 1 {
		t.Fatal("expected still-image fallback")
	}
}

func TestComposeFallsBackWhenZoomFails(t *testing.T) {
	dir, image, audio := composeInputs(t)
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return c.Contains("zoompan") }
	composer := NewComposer(newTestFFmpeg(runner), DefaultPolicy())

	if _, err := composer.Compose(context.Background(), image, audio, filepath.Join(dir, VideoFileName)); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if runner.Count("veryfast") != 1 || runner.Count("-loop") != 1 {
		t.Fatal("expected still-image fallback with the fast preset")
	}
}

func TestComposeBothFail(t *testing.T) {
	dir, image, audio := composeInputs(t)
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return !c.IsProbe() }
	composer := NewComposer(newTestFFmpeg(runner), DefaultPolicy())

	_, err := composer.Compose(context.Background(), image, audio, filepath.Join(dir, VideoFileName))
	if !errors.Is(err, ErrCompose) {
		t.Fatalf("expected ErrCompose, got %v", err)
	}
}

func TestBuildZoomFilter(t *testing.T) {
	filter := buildZoomFilter(DefaultPolicy(), 12.5)

	for _, want := range []string{
		"min(1+0.1500*on/375,1.1500)",
		"d=405",
		"s=1920x1080",
		"fps=30",
		"x='iw/2-(iw/zoom/2)'",
	} {
		if !strings.Contains(filter, want) {
			t.Errorf("filter %q missing %q", filter, want)
		}
	}
}

func TestBuildZoomFilterMinimumLength(t *testing.T) {
	filter := buildZoomFilter(DefaultPolicy(), 0.2)
	if !strings.Contains(filter, "on/30,") {
		t.Fatalf("expected at least one second of frames, got %q", filter)
	}
}
