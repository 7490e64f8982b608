package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/bobarin/vibecast/internal/models"
)

const VideoFileName = "video.mp4"

// Composer turns a still image plus the normalized audio into an MP4.
type Composer struct {
	ffmpeg *FFmpegService
	policy Policy
}

func NewComposer(ffmpeg *FFmpegService, policy Policy) *Composer {
	return &Composer{ffmpeg: ffmpeg, policy: policy}
}

// Compose renders the slow zoom video, falling back to a plain still-image
// encode when the zoom render fails for any reason.
func (c *Composer) Compose(ctx context.Context, imagePath, audioPath, outputPath string) (models.MediaAsset, error) {
	tier, err := TryInOrder(ctx, "Compose",
		Strategy{Name: "zoompan", Run: func(ctx context.Context) error {
			return c.renderZoom(ctx, imagePath, audioPath, outputPath)
		}},
		Strategy{Name: "still", Run: func(ctx context.Context) error {
			return c.renderStill(ctx, imagePath, audioPath, outputPath)
		}},
	)
	if err != nil {
		return models.MediaAsset{}, Wrap(ErrCompose, "compose", "", "video render failed", err)
	}

	size := fileSize(outputPath)
	log.Printf("[Compose] rendered %s with %s (%d bytes)", outputPath, tier, size)
	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleComposedVideo, Size: size}, nil
}

func (c *Composer) renderZoom(ctx context.Context, imagePath, audioPath, outputPath string) error {
	duration, err := c.ffmpeg.ProbeDuration(ctx, audioPath, c.policy.QuickTimeout)
	if err != nil {
		return fmt.Errorf("failed to probe audio duration: %w", err)
	}

	vf := fillFrameFilter(c.policy.FrameWidth, c.policy.FrameHeight) + "," + buildZoomFilter(c.policy, duration)
	log.Printf("[Compose] zoom render, duration=%.2fs, filter=%s", duration, vf)

	args := []string{
		"-i", imagePath, // single image input (zoompan produces the frames)
		"-i", audioPath,
		"-vf", vf,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-preset", c.policy.VideoPreset,
		"-crf", strconv.Itoa(c.policy.VideoCRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", c.policy.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
	return c.encode(ctx, "compose zoom", args, outputPath)
}

func (c *Composer) renderStill(ctx context.Context, imagePath, audioPath, outputPath string) error {
	args := []string{
		"-loop", "1",
		"-framerate", strconv.Itoa(c.policy.FPS),
		"-i", imagePath,
		"-i", audioPath,
		"-vf", fillFrameFilter(c.policy.FrameWidth, c.policy.FrameHeight),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-preset", c.policy.FallbackVideoPreset,
		"-crf", strconv.Itoa(c.policy.FallbackVideoCRF),
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", c.policy.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
	return c.encode(ctx, "compose still", args, outputPath)
}

func (c *Composer) encode(ctx context.Context, op string, args []string, outputPath string) error {
	if _, err := c.ffmpeg.Run(ctx, op, c.policy.ComposeTimeout, args...); err != nil {
		return err
	}
	if size := fileSize(outputPath); size < c.policy.MinOutputBytes {
		return fmt.Errorf("%s produced %d bytes", op, size)
	}
	return nil
}

// fillFrameFilter scales the image to cover the frame, then center-crops.
func fillFrameFilter(width, height int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		width, height, width, height)
}

// buildZoomFilter builds a centered zoompan that rises linearly from 1.0 to
// the policy cap across the audio duration and then holds.
func buildZoomFilter(p Policy, durationSec float64) string {
	totalFrames := int(math.Ceil(durationSec * float64(p.FPS)))
	if totalFrames < p.FPS {
		totalFrames = p.FPS // minimum 1 second
	}

	zExpr := fmt.Sprintf("min(1+%.4f*on/%d,%.4f)", p.ZoomMax-1, totalFrames, p.ZoomMax)

	// One extra second of frames so -shortest always trims to the audio.
	return fmt.Sprintf(
		"zoompan=z='%s':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d",
		zExpr,
		totalFrames+p.FPS,
		p.FrameWidth, p.FrameHeight,
		p.FPS,
	)
}
