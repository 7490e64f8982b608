package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bobarin/vibecast/internal/services"
)

// Scratch reclamation policies.
const (
	ReclaimOnEntry = "on-entry"
	ReclaimByAge   = "age"
)

type Config struct {
	// Server
	APIPort            string
	PublicBaseURL      string // Base URL used in local download links (empty = derived from the request)
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Media tools
	FFmpegPath        string
	FFprobePath       string
	ThumbnailFontPath string

	// Scratch space
	ScratchRoot     string
	ReclaimPolicy   string
	ReclaimMaxAge   time.Duration
	ReclaimInterval time.Duration

	// Supabase (durable delivery; local download links when unset)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Background jobs
	RedisURL      string
	DatabaseURL   string
	WorkerEnabled bool

	// Optional YAML overlay for render thresholds
	PolicyFile string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
		ThumbnailFontPath:     getEnv("THUMBNAIL_FONT_PATH", ""),
		ScratchRoot:           getEnv("SCRATCH_ROOT", "/tmp/vibecast"),
		ReclaimPolicy:         strings.ToLower(getEnv("RECLAIM_POLICY", ReclaimOnEntry)),
		ReclaimMaxAge:         getEnvDuration("RECLAIM_MAX_AGE", time.Hour),
		ReclaimInterval:       getEnvDuration("RECLAIM_INTERVAL", 10*time.Minute),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "vibecast-renders"),
		RedisURL:              getEnv("REDIS_URL", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		PolicyFile:            getEnv("POLICY_FILE", ""),
	}

	// Validate
	if cfg.ReclaimPolicy != ReclaimOnEntry && cfg.ReclaimPolicy != ReclaimByAge {
		return nil, fmt.Errorf("RECLAIM_POLICY must be %q or %q, got %q", ReclaimOnEntry, ReclaimByAge, cfg.ReclaimPolicy)
	}

	if cfg.ReclaimPolicy == ReclaimByAge && (cfg.ReclaimMaxAge <= 0 || cfg.ReclaimInterval <= 0) {
		return nil, fmt.Errorf("RECLAIM_MAX_AGE and RECLAIM_INTERVAL must be positive when RECLAIM_POLICY=age")
	}

	// Durable delivery needs both Supabase credentials or neither
	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set together")
	}

	return cfg, nil
}

// LoadPolicy returns the default render policy with the YAML file at path
// laid over it. Keys missing from the file keep their defaults. An empty
// path returns the defaults unchanged.
func LoadPolicy(path string) (services.Policy, error) {
	policy := services.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if err := validatePolicy(policy); err != nil {
		return policy, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	return policy, nil
}

func validatePolicy(p services.Policy) error {
	switch {
	case p.MaxAudioFiles < 1:
		return fmt.Errorf("max_audio_files must be at least 1")
	case p.MaxCaptionLength < 1:
		return fmt.Errorf("max_caption_length must be at least 1")
	case p.SampleRate <= 0 || p.Channels < 1 || p.Channels > 2:
		return fmt.Errorf("sample_rate must be positive and channels 1 or 2")
	case p.FrameWidth <= 0 || p.FrameHeight <= 0 || p.FPS <= 0:
		return fmt.Errorf("frame_width, frame_height and fps must be positive")
	case p.ZoomMax < 1:
		return fmt.Errorf("zoom_max must be at least 1.0")
	case p.SilenceSeconds < 0:
		return fmt.Errorf("silence_seconds must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90m") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
