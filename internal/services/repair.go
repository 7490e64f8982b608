package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bobarin/vibecast/internal/models"
)

// Repairer decodes untrusted audio permissively and re-encodes it to a fixed
// PCM intermediate (policy sample rate and channel count). Every later stage
// operates only on that intermediate.
type Repairer struct {
	ffmpeg *FFmpegService
	policy Policy
}

func NewRepairer(ffmpeg *FFmpegService, policy Policy) *Repairer {
	return &Repairer{ffmpeg: ffmpeg, policy: policy}
}

// Repair converts inputPath into a PCM WAV at outputPath.
func (r *Repairer) Repair(ctx context.Context, inputPath, outputPath string) (models.MediaAsset, error) {
	if size := fileSize(inputPath); size < r.policy.MinFileBytes {
		return models.MediaAsset{}, fmt.Errorf("input %s too small (%d bytes, minimum %d)", inputPath, size, r.policy.MinFileBytes)
	}

	args := []string{
		"-err_detect", "ignore_err",
		"-fflags", "+discardcorrupt+genpts",
		"-i", inputPath,
		"-vn", // drop cover art and any video stream
		"-sn", // and subtitles
		"-map", "0:a:0",
		"-ar", strconv.Itoa(r.policy.SampleRate),
		"-ac", strconv.Itoa(r.policy.Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	}

	if _, err := r.ffmpeg.Run(ctx, "repair audio", r.policy.RepairTimeout, args...); err != nil {
		return models.MediaAsset{}, err
	}

	size := fileSize(outputPath)
	if size < r.policy.MinOutputBytes {
		return models.MediaAsset{}, fmt.Errorf("repaired output too small (%d bytes, minimum %d); source is unusable", size, r.policy.MinOutputBytes)
	}

	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleRepairedAudio, Size: size}, nil
}
