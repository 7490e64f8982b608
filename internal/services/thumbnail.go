package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bobarin/vibecast/internal/models"
)

const ThumbnailFileName = "thumbnail.jpg"

// Thumbnail tier names, in the order they are tried.
const (
	TierFontFile    = "font-file"
	TierDefaultFont = "default-font"
	TierNoText      = "no-text"
)

// ThumbnailRenderer burns the two caption lines onto a single frame of the
// background image.
type ThumbnailRenderer struct {
	ffmpeg   *FFmpegService
	policy   Policy
	fontPath string
}

// NewThumbnailRenderer builds a renderer. fontPath may be empty, in which case
// the first tier is skipped.
func NewThumbnailRenderer(ffmpeg *FFmpegService, policy Policy, fontPath string) *ThumbnailRenderer {
	return &ThumbnailRenderer{ffmpeg: ffmpeg, policy: policy, fontPath: strings.TrimSpace(fontPath)}
}

// Render writes a JPEG thumbnail. It only fails when all three tiers fail.
func (r *ThumbnailRenderer) Render(ctx context.Context, imagePath, vibe, subtitle, outputPath string) (models.MediaAsset, error) {
	tier, err := TryInOrder(ctx, "Thumbnail",
		Strategy{Name: TierFontFile, Run: func(ctx context.Context) error {
			if r.fontPath == "" {
				return fmt.Errorf("no font file configured")
			}
			if _, err := os.Stat(r.fontPath); err != nil {
				return fmt.Errorf("font file unavailable: %w", err)
			}
			return r.render(ctx, "thumbnail with font", imagePath, outputPath, r.captionFilter(vibe, subtitle, r.fontPath))
		}},
		Strategy{Name: TierDefaultFont, Run: func(ctx context.Context) error {
			return r.render(ctx, "thumbnail default font", imagePath, outputPath, r.captionFilter(vibe, subtitle, ""))
		}},
		Strategy{Name: TierNoText, Run: func(ctx context.Context) error {
			return r.render(ctx, "thumbnail no text", imagePath, outputPath, "")
		}},
	)
	if err != nil {
		return models.MediaAsset{}, Wrap(ErrThumbnail, "thumbnail", "", "all render strategies failed", err)
	}

	size := fileSize(outputPath)
	log.Printf("[Thumbnail] rendered %s with %s (%d bytes)", outputPath, tier, size)
	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleThumbnailImage, Size: size}, nil
}

func (r *ThumbnailRenderer) render(ctx context.Context, op, imagePath, outputPath, captions string) error {
	vf := fillFrameFilter(r.policy.FrameWidth, r.policy.FrameHeight)
	if captions != "" {
		vf += "," + captions
	}

	args := []string{
		"-i", imagePath,
		"-vf", vf,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
	if _, err := r.ffmpeg.Run(ctx, op, r.policy.ThumbnailTimeout, args...); err != nil {
		return err
	}
	if size := fileSize(outputPath); size < r.policy.MinOutputBytes {
		return fmt.Errorf("%s produced %d bytes", op, size)
	}
	return nil
}

// captionFilter draws the vibe line above center and the subtitle below it.
func (r *ThumbnailRenderer) captionFilter(vibe, subtitle, fontPath string) string {
	font := ""
	if fontPath != "" {
		font = fmt.Sprintf("fontfile='%s':", escapeFFmpegFilterPath(fontPath))
	}

	line := func(text string, size int, y string) string {
		return fmt.Sprintf("drawtext=%stext='%s':fontsize=%d:fontcolor=%s:borderw=%d:bordercolor=%s:x=(w-text_w)/2:y=%s",
			font, EscapeDrawtext(text), size, r.policy.TextColor, r.policy.BorderWidth, r.policy.BorderColor, y)
	}

	return line(vibe, r.policy.VibeFontSize, "(h/2)-text_h-40") + "," +
		line(subtitle, r.policy.SubtitleFontSize, "(h/2)+40")
}

// drawtextReplacer escapes caption text for a single-quoted drawtext value.
// ffmpeg unescapes the filtergraph once (quoted text is kept literally) and
// the option string once more, and drawtext treats "\" and "%" specially, so
// those two need three layers. A quote cannot appear inside quotes: it closes
// the quote, emits an escaped quote and reopens.
var drawtextReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`%`, `\\\%`,
	`'`, `'\\\''`,
	`:`, `\:`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

// EscapeDrawtext escapes text for use inside a quoted drawtext value.
func EscapeDrawtext(text string) string {
	return drawtextReplacer.Replace(text)
}

// escapeFFmpegFilterPath escapes a file path for a single-quoted filter
// option value. Paths get no drawtext expansion, so one option-level layer is enough.
func escapeFFmpegFilterPath(path string) string {
	return filterPathReplacer.Replace(path)
}

var filterPathReplacer = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`'`, `'\\\''`,
)
