package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/vibecast/internal/testsupport"
)

func thumbnailInputs(t *testing.T) (dir, image string) {
	t.Helper()
	dir = t.TempDir()
	image = filepath.Join(dir, "image.png")
	testsupport.WriteFile(t, image, 50*1024)
	return dir, image
}

func TestThumbnailUsesFontFile(t *testing.T) {
	dir, image := thumbnailInputs(t)
	font := filepath.Join(dir, "Font.ttf")
	testsupport.WriteFile(t, font, 4096)

	runner := testsupport.NewFakeRunner()
	r := NewThumbnailRenderer(newTestFFmpeg(runner), DefaultPolicy(), font)

	asset, err := r.Render(context.Background(), image, "Late Night", "lofi beats", filepath.Join(dir, ThumbnailFileName))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if asset.Size == 0 {
		t.Fatal("expected non-empty thumbnail")
	}

	calls := runner.Calls()
	if len(calls) != 1 || !calls[0].Contains("fontfile=") {
		t.Fatalf("expected a single font-file render, got %d calls", len(calls))
	}
	if !calls[0].Contains("fontsize=110") || !calls[0].Contains("fontsize=64") {
		t.Fatal("expected both caption sizes")
	}
}

func TestThumbnailMissingFontFallsBack(t *testing.T) {
	dir, image := thumbnailInputs(t)
	runner := testsupport.NewFakeRunner()
	r := NewThumbnailRenderer(newTestFFmpeg(runner), DefaultPolicy(), filepath.Join(dir, "missing.ttf"))

	if _, err := r.Render(context.Background(), image, "vibe", "sub", filepath.Join(dir, ThumbnailFileName)); err != nil {
		t.Fatalf("Render: %v", err)
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one render, got %d", len(calls))
	}
	if calls[0].Contains("fontfile=") || !calls[0].Contains("drawtext") {
		t.Fatal("expected drawtext without a font file")
	}
}

func TestThumbnailTextlessFallback(t *testing.T) {
	dir, image := thumbnailInputs(t)
	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(c testsupport.Call) bool { return c.Contains("drawtext") }
	r := NewThumbnailRenderer(newTestFFmpeg(runner), DefaultPolicy(), "")

	if _, err := r.Render(context.Background(), image, "vibe", "sub", filepath.Join(dir, ThumbnailFileName)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	calls := runner.Calls()
	last := calls[len(calls)-1]
	if last.Contains("drawtext") || !last.Contains("-frames:v") {
		t.Fatal("expected the final tier to render without text")
	}
}

func TestThumbnailAllTiersFail(t *testing.T) {
	dir, image := thumbnailInputs(t)
	font := filepath.Join(dir, "Font.ttf")
	testsupport.WriteFile(t, font, 4096)

	runner := testsupport.NewFakeRunner()
	runner.FailWhen = func(testsupport.Call) bool { return true }
	r := NewThumbnailRenderer(newTestFFmpeg(runner), DefaultPolicy(), font)

	_, err := r.Render(context.Background(), image, "vibe", "sub", filepath.Join(dir, ThumbnailFileName))
	if !errors.Is(err, ErrThumbnail) {
		t.Fatalf("expected ErrThumbnail, got %v", err)
	}
	if len(runner.Calls()) != 3 {
		t.Fatalf("expected three attempts, got %d", len(runner.Calls()))
	}
}

// nextToken mirrors ffmpeg's av_get_token: a backslash escapes the next
// byte, single-quoted runs are copied literally, and any byte in terms ends
// the token.
func nextToken(s, terms string) (token, rest string) {
	var b strings.Builder
	i := 0
	for i < len(s) && !strings.ContainsRune(terms, rune(s[i])) {
		c := s[i]
		i++
		switch {
		case c == '\\' && i < len(s):
			b.WriteByte(s[i])
			i++
		case c == '\'':
			for i < len(s) && s[i] != '\'' {
				b.WriteByte(s[i])
				i++
			}
			if i < len(s) {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), s[i:]
}

// expandDrawtext applies drawtext's own text expansion: a backslash yields
// the next byte literally and a bare % must start a %{...} sequence.
func expandDrawtext(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == '%':
			return "", fmt.Errorf("stray %% at byte %d", i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// drawtextReceives runs a quoted text option through the filtergraph and
// option parsers, then drawtext expansion, and returns the rendered text.
func drawtextReceives(t *testing.T, option string) string {
	t.Helper()
	graphLevel, rest := nextToken(option, "[],;")
	if rest != "" {
		t.Fatalf("filtergraph split %q early, left %q", option, rest)
	}
	value, ok := strings.CutPrefix(graphLevel, "text=")
	if !ok {
		t.Fatalf("unexpected option %q", graphLevel)
	}
	optionLevel, rest := nextToken(value, ":")
	if rest != "" {
		t.Fatalf("option parser split %q early, left %q", value, rest)
	}
	text, err := expandDrawtext(optionLevel)
	if err != nil {
		t.Fatalf("drawtext rejected %q: %v", optionLevel, err)
	}
	return text
}

func TestEscapeDrawtextSurvivesFFmpegParsing(t *testing.T) {
	for _, caption := range []string{
		"plain",
		"100% Chill",
		"50%{pts}",
		"12:30, [live]; now",
		`back\slash`,
		"it's",
		`'quoted' \% mix:`,
	} {
		got := drawtextReceives(t, "text='"+EscapeDrawtext(caption)+"'")
		if got != caption {
			t.Errorf("caption %q rendered as %q", caption, got)
		}
	}
}

func TestCaptionFilterRendersPercent(t *testing.T) {
	r := NewThumbnailRenderer(nil, DefaultPolicy(), "")
	filter := r.captionFilter("100% Chill", "Lo-Fi 24/7", "")

	for _, want := range []string{"100% Chill", "Lo-Fi 24/7"} {
		start := strings.Index(filter, "text='")
		if start < 0 {
			t.Fatalf("no text option left in %q", filter)
		}
		filter = filter[start:]
		// The option ends at the first colon outside quotes and escapes.
		end := len(filter)
		quoted := false
		for i := 0; i < len(filter); i++ {
			switch c := filter[i]; {
			case c == '\\':
				i++
			case c == '\'':
				quoted = !quoted
			case c == ':' && !quoted:
				end = i
			}
			if end != len(filter) {
				break
			}
		}
		if got := drawtextReceives(t, filter[:end]); got != want {
			t.Errorf("caption rendered as %q, want %q", got, want)
		}
		filter = filter[end:]
	}
}

func TestEscapeFFmpegFilterPath(t *testing.T) {
	for _, path := range []string{"/usr/share/fonts/Inter.ttf", `C:\Fonts\it's.ttf`} {
		token, rest := nextToken("'"+escapeFFmpegFilterPath(path)+"'", "[],;")
		if rest != "" {
			t.Fatalf("path %q split early", path)
		}
		if got, _ := nextToken(token, ":"); got != path {
			t.Errorf("path %q parsed as %q", path, got)
		}
	}
}
