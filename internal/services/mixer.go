package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/vibecast/internal/models"
)

// Workspace file names owned by the mixer.
const (
	silenceFileName    = "silence.wav"
	concatListFileName = "concat.txt"
	mergedFileName     = "merged.wav"
	NormalizedFileName = "normalized.m4a"
)

// Normalization tier names, in the order they are tried.
const (
	TierLoudnorm   = "loudnorm"
	TierDynaudnorm = "dynaudnorm"
	TierFlatGain   = "volume"
)

// ---------------------------------------------------------------------------
// Play-list
// ---------------------------------------------------------------------------

type PlaylistEntryKind string

const (
	EntryTrack   PlaylistEntryKind = "track"
	EntrySilence PlaylistEntryKind = "silence"
)

type PlaylistEntry struct {
	Kind PlaylistEntryKind
	Path string
}

// BuildPlaylist interleaves tracks with the silence filler: N tracks yield
// N-1 silences, never leading or trailing.
func BuildPlaylist(tracks []string, silencePath string) []PlaylistEntry {
	if len(tracks) == 0 {
		return nil
	}
	entries := make([]PlaylistEntry, 0, 2*len(tracks)-1)
	for i, track := range tracks {
		if i > 0 {
			entries = append(entries, PlaylistEntry{Kind: EntrySilence, Path: silencePath})
		}
		entries = append(entries, PlaylistEntry{Kind: EntryTrack, Path: track})
	}
	return entries
}

// WriteConcatList writes entries in ffmpeg concat demuxer format.
func WriteConcatList(path string, entries []PlaylistEntry) error {
	var sb strings.Builder
	sb.WriteString("ffconcat version 1.0\n")
	for _, entry := range entries {
		abs, err := filepath.Abs(entry.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", entry.Path, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", escapeConcatPath(abs))
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// escapeConcatPath closes the quote, emits an escaped quote, then reopens.
func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// ---------------------------------------------------------------------------
// Mixer
// ---------------------------------------------------------------------------

// Mixer concatenates repaired tracks with silence gaps and normalizes loudness.
type Mixer struct {
	ffmpeg *FFmpegService
	policy Policy
}

func NewMixer(ffmpeg *FFmpegService, policy Policy) *Mixer {
	return &Mixer{ffmpeg: ffmpeg, policy: policy}
}

// ConcatenateAndNormalize merges tracks (in order) inside dir and returns the
// normalized, compressed result. Errors are tagged ErrMerge or ErrNormalize.
func (m *Mixer) ConcatenateAndNormalize(ctx context.Context, dir string, tracks []models.MediaAsset) (models.MediaAsset, error) {
	if len(tracks) == 0 {
		return models.MediaAsset{}, Wrap(ErrMerge, "merge", "playlist", "no tracks to merge", nil)
	}

	silence, err := m.GenerateSilence(ctx, filepath.Join(dir, silenceFileName))
	if err != nil {
		return models.MediaAsset{}, Wrap(ErrMerge, "merge", "silence", "failed to generate silence filler", err)
	}

	paths := make([]string, len(tracks))
	for i, track := range tracks {
		paths[i] = track.Path
	}
	playlist := BuildPlaylist(paths, silence.Path)

	merged, err := m.Concatenate(ctx, playlist, filepath.Join(dir, concatListFileName), filepath.Join(dir, mergedFileName))
	if err != nil {
		return models.MediaAsset{}, Wrap(ErrMerge, "merge", "concat", fmt.Sprintf("failed to concatenate %d tracks", len(tracks)), err)
	}

	normalized, tier, err := m.Normalize(ctx, merged.Path, filepath.Join(dir, NormalizedFileName))
	if err != nil {
		return models.MediaAsset{}, Wrap(ErrNormalize, "normalize", "", "all loudness strategies failed", err)
	}

	log.Printf("[Mixer] merged %d tracks (%d entries), normalized with %s (%d bytes)", len(tracks), len(playlist), tier, normalized.Size)
	return normalized, nil
}

// GenerateSilence writes a PCM silence filler matching the repaired tracks.
func (m *Mixer) GenerateSilence(ctx context.Context, outputPath string) (models.MediaAsset, error) {
	layout := "stereo"
	if m.policy.Channels == 1 {
		layout = "mono"
	}

	args := []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=%s", m.policy.SampleRate, layout),
		"-t", formatFloat(m.policy.SilenceSeconds),
		"-ar", strconv.Itoa(m.policy.SampleRate),
		"-ac", strconv.Itoa(m.policy.Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	}

	if _, err := m.ffmpeg.Run(ctx, "generate silence", m.policy.QuickTimeout, args...); err != nil {
		return models.MediaAsset{}, err
	}
	size := fileSize(outputPath)
	if size < m.policy.MinOutputBytes {
		return models.MediaAsset{}, fmt.Errorf("silence filler too small (%d bytes)", size)
	}
	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleSilenceFiller, Size: size}, nil
}

// Concatenate joins the play-list into one PCM file. Streams are always
// re-encoded; copying independently repaired segments is not reliable.
func (m *Mixer) Concatenate(ctx context.Context, playlist []PlaylistEntry, listPath, outputPath string) (models.MediaAsset, error) {
	if err := WriteConcatList(listPath, playlist); err != nil {
		return models.MediaAsset{}, err
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-ar", strconv.Itoa(m.policy.SampleRate),
		"-ac", strconv.Itoa(m.policy.Channels),
		"-c:a", "pcm_s16le",
		outputPath,
	}

	if _, err := m.ffmpeg.Run(ctx, "concatenate audio", m.policy.MergeTimeout, args...); err != nil {
		return models.MediaAsset{}, err
	}
	size := fileSize(outputPath)
	if size < m.policy.MinOutputBytes {
		return models.MediaAsset{}, fmt.Errorf("merged audio too small (%d bytes)", size)
	}
	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleMergedAudio, Size: size}, nil
}

// Normalize runs the loudness tiers in order and reports which one succeeded.
func (m *Mixer) Normalize(ctx context.Context, inputPath, outputPath string) (models.MediaAsset, string, error) {
	tier, err := TryInOrder(ctx, "Normalize",
		Strategy{Name: TierLoudnorm, Run: func(ctx context.Context) error {
			return m.loudnormTwoPass(ctx, inputPath, outputPath)
		}},
		Strategy{Name: TierDynaudnorm, Run: func(ctx context.Context) error {
			return m.encodeWithFilter(ctx, "dynaudnorm", inputPath, outputPath, "dynaudnorm="+m.policy.Dynaudnorm)
		}},
		Strategy{Name: TierFlatGain, Run: func(ctx context.Context) error {
			return m.encodeWithFilter(ctx, "flat gain", inputPath, outputPath, "volume="+formatFloat(m.policy.FlatGain))
		}},
	)
	if err != nil {
		return models.MediaAsset{}, "", err
	}

	return models.MediaAsset{Path: outputPath, Role: models.AssetRoleNormalizedAudio, Size: fileSize(outputPath)}, tier, nil
}

// loudnormMeasurement is the JSON block printed by loudnorm on the first pass.
// ffmpeg prints every value as a string.
type loudnormMeasurement struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

func (m *Mixer) loudnessTarget() string {
	return fmt.Sprintf("I=%s:TP=%s:LRA=%s",
		formatFloat(m.policy.LoudnessI),
		formatFloat(m.policy.LoudnessTP),
		formatFloat(m.policy.LoudnessLRA),
	)
}

func (m *Mixer) loudnormTwoPass(ctx context.Context, inputPath, outputPath string) error {
	if size := fileSize(inputPath); size < m.policy.MinOutputBytes {
		return fmt.Errorf("input too small for loudness analysis (%d bytes)", size)
	}

	// Pass 1: measure only
	analysis, err := m.ffmpeg.Run(ctx, "loudnorm analysis", m.policy.NormalizeTimeout,
		"-i", inputPath,
		"-af", "loudnorm="+m.loudnessTarget()+":print_format=json",
		"-f", "null",
		"-",
	)
	if err != nil {
		return err
	}

	measured, err := ParseLoudnormJSON(analysis.Stderr)
	if err != nil {
		return err
	}

	// Pass 2: apply measured values with linear normalization
	filter := fmt.Sprintf("loudnorm=%s:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true:print_format=summary",
		m.loudnessTarget(),
		measured.InputI, measured.InputTP, measured.InputLRA, measured.InputThresh, measured.TargetOffset,
	)
	return m.encodeWithFilter(ctx, "loudnorm apply", inputPath, outputPath, filter)
}

// encodeWithFilter applies one audio filter and encodes the compressed output.
func (m *Mixer) encodeWithFilter(ctx context.Context, op, inputPath, outputPath, filter string) error {
	args := []string{
		"-i", inputPath,
		"-af", filter,
		"-ar", strconv.Itoa(m.policy.SampleRate), // loudnorm upsamples internally
		"-ac", strconv.Itoa(m.policy.Channels),
		"-c:a", "aac",
		"-b:a", m.policy.AudioBitrate,
		outputPath,
	}
	if _, err := m.ffmpeg.Run(ctx, op, m.policy.NormalizeTimeout, args...); err != nil {
		return err
	}
	if size := fileSize(outputPath); size < m.policy.MinOutputBytes {
		return fmt.Errorf("%s produced %d bytes", op, size)
	}
	return nil
}

// ParseLoudnormJSON extracts the last JSON object from loudnorm's stderr and
// checks that every measured value is a finite number.
func ParseLoudnormJSON(stderr string) (loudnormMeasurement, error) {
	var measured loudnormMeasurement

	end := strings.LastIndex(stderr, "}")
	if end < 0 {
		return measured, fmt.Errorf("loudnorm analysis: no JSON block in output")
	}
	start := strings.LastIndex(stderr[:end], "{")
	if start < 0 {
		return measured, fmt.Errorf("loudnorm analysis: no JSON block in output")
	}

	if err := json.Unmarshal([]byte(stderr[start:end+1]), &measured); err != nil {
		return measured, fmt.Errorf("loudnorm analysis: %w", err)
	}

	for name, value := range map[string]string{
		"input_i":       measured.InputI,
		"input_tp":      measured.InputTP,
		"input_lra":     measured.InputLRA,
		"input_thresh":  measured.InputThresh,
		"target_offset": measured.TargetOffset,
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return measured, fmt.Errorf("loudnorm analysis: %s is not a finite number (%q)", name, value)
		}
	}

	return measured, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
