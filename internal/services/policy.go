package services

import "time"

// Policy holds every tunable threshold of the render pipeline. The defaults
// below are the production values; a YAML overlay may replace any of them.
type Policy struct {
	// Sanity thresholds
	MinFileBytes   int64 `yaml:"min_file_bytes"`   // anything smaller is an error page or truncated upload
	MinOutputBytes int64 `yaml:"min_output_bytes"` // any generated asset below this counts as empty

	// Fetch limits
	AudioMaxBytes     int64         `yaml:"audio_max_bytes"`
	ImageMaxBytes     int64         `yaml:"image_max_bytes"`
	AudioFetchTimeout time.Duration `yaml:"audio_fetch_timeout"`
	ImageFetchTimeout time.Duration `yaml:"image_fetch_timeout"`

	// Request limits
	MaxAudioFiles    int `yaml:"max_audio_files"`
	MaxCaptionLength int `yaml:"max_caption_length"`

	// Intermediate PCM format
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`

	SilenceSeconds float64 `yaml:"silence_seconds"`

	// Loudness targets
	LoudnessI   float64 `yaml:"loudness_i"`
	LoudnessTP  float64 `yaml:"loudness_tp"`
	LoudnessLRA float64 `yaml:"loudness_lra"`
	Dynaudnorm  string  `yaml:"dynaudnorm"`
	FlatGain    float64 `yaml:"flat_gain"`

	AudioBitrate string `yaml:"audio_bitrate"`

	// Video frame
	FrameWidth  int     `yaml:"frame_width"`
	FrameHeight int     `yaml:"frame_height"`
	FPS         int     `yaml:"fps"`
	ZoomMax     float64 `yaml:"zoom_max"`

	VideoCRF            int    `yaml:"video_crf"`
	VideoPreset         string `yaml:"video_preset"`
	FallbackVideoCRF    int    `yaml:"fallback_video_crf"`
	FallbackVideoPreset string `yaml:"fallback_video_preset"`

	// Thumbnail text
	VibeFontSize     int    `yaml:"vibe_font_size"`
	SubtitleFontSize int    `yaml:"subtitle_font_size"`
	TextColor        string `yaml:"text_color"`
	BorderColor      string `yaml:"border_color"`
	BorderWidth      int    `yaml:"border_width"`

	// Tool timeouts
	QuickTimeout     time.Duration `yaml:"quick_timeout"`
	RepairTimeout    time.Duration `yaml:"repair_timeout"`
	MergeTimeout     time.Duration `yaml:"merge_timeout"`
	NormalizeTimeout time.Duration `yaml:"normalize_timeout"`
	ComposeTimeout   time.Duration `yaml:"compose_timeout"`
	ThumbnailTimeout time.Duration `yaml:"thumbnail_timeout"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinFileBytes:   2 * 1024,
		MinOutputBytes: 1024,

		AudioMaxBytes:     100 * 1024 * 1024,
		ImageMaxBytes:     25 * 1024 * 1024,
		AudioFetchTimeout: 60 * time.Second,
		ImageFetchTimeout: 90 * time.Second,

		MaxAudioFiles:    20,
		MaxCaptionLength: 100,

		SampleRate: 44100,
		Channels:   2,

		SilenceSeconds: 1,

		LoudnessI:   -16,
		LoudnessTP:  -1.5,
		LoudnessLRA: 11,
		Dynaudnorm:  "f=150:g=15",
		FlatGain:    1.3,

		AudioBitrate: "192k",

		FrameWidth:  1920,
		FrameHeight: 1080,
		FPS:         30,
		ZoomMax:     1.15,

		VideoCRF:            23,
		VideoPreset:         "medium",
		FallbackVideoCRF:    28,
		FallbackVideoPreset: "veryfast",

		VibeFontSize:     110,
		SubtitleFontSize: 64,
		TextColor:        "white",
		BorderColor:      "black",
		BorderWidth:      5,

		QuickTimeout:     60 * time.Second,
		RepairTimeout:    120 * time.Second,
		MergeTimeout:     5 * time.Minute,
		NormalizeTimeout: 5 * time.Minute,
		ComposeTimeout:   10 * time.Minute,
		ThumbnailTimeout: 60 * time.Second,
	}
}
