package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums
type AssetRole string

const (
	AssetRoleRawAudio        AssetRole = "raw_audio"
	AssetRoleRepairedAudio   AssetRole = "repaired_audio"
	AssetRoleSilenceFiller   AssetRole = "silence_filler"
	AssetRoleMergedAudio     AssetRole = "merged_audio"
	AssetRoleNormalizedAudio AssetRole = "normalized_audio"
	AssetRoleBackgroundImage AssetRole = "background_image"
	AssetRoleComposedVideo   AssetRole = "composed_video"
	AssetRoleThumbnailImage  AssetRole = "thumbnail_image"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

type DeliveryMode string

const (
	DeliveryModeDurable DeliveryMode = "durable"
	DeliveryModeLocal   DeliveryMode = "local"
)

// Models

// MediaAsset is a file on disk with a semantic role in the pipeline.
type MediaAsset struct {
	Path string    `json:"path"`
	Role AssetRole `json:"role"`
	Size int64     `json:"size"`
}

// Job is one request to produce a video + thumbnail pair.
type Job struct {
	ID        uuid.UUID `json:"id"`
	AudioURLs []string  `json:"audio_urls"`
	ImageURL  string    `json:"image_url"`
	Vibe      string    `json:"vibe"`
	Subtitle  string    `json:"subtitle"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryResult is either a durable (object store) pair or a transient
// (same-process download endpoint) pair. Never both.
type DeliveryResult struct {
	Mode         DeliveryMode `json:"mode"`
	VideoURL     string       `json:"video_url"`
	ThumbnailURL string       `json:"thumbnail_url"`
}

// JobRecord is the persisted history entry for a job.
type JobRecord struct {
	ID             uuid.UUID  `json:"id"`
	Status         JobStatus  `json:"status"`
	AudioCount     int        `json:"audio_count"`
	Vibe           string     `json:"vibe"`
	Subtitle       string     `json:"subtitle"`
	VideoURL       *string    `json:"video_url,omitempty"`
	ThumbnailURL   *string    `json:"thumbnail_url,omitempty"`
	VideoBytes     *int64     `json:"video_bytes,omitempty"`
	ThumbnailBytes *int64     `json:"thumbnail_bytes,omitempty"`
	ErrorLabel     *string    `json:"error_label,omitempty"`
	ErrorDetails   *string    `json:"error_details,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// WorkspaceInfo is a point-in-time view of the scratch area.
type WorkspaceInfo struct {
	Root       string `json:"scratchRoot"`
	TotalBytes int64  `json:"totalBytes"`
	Workspaces int    `json:"workspaces"`
}

// DTOs for API requests and responses

type GenerateRequest struct {
	AudioURLs []string `json:"audioUrls"`
	ImageURL  string   `json:"imageUrl"`
	Vibe      string   `json:"vibe"`
	Subtitle  string   `json:"subtitle"`
}

type GenerateResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	VideoURL      string `json:"videoUrl"`
	ThumbnailURL  string `json:"thumbnailUrl"`
	VideoSize     string `json:"videoSize"`
	ThumbnailSize string `json:"thumbnailSize"`
	JobID         string `json:"jobId"`
	Timestamp     string `json:"timestamp"`
	Note          string `json:"note,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	JobID   string `json:"jobId,omitempty"`
}

type StorageResponse struct {
	WorkspaceInfo
	TotalSize string `json:"totalSize"`
	Policy    string `json:"policy"`
}

type EnqueueResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status JobStatus `json:"status"`
}

type ListJobsResponse struct {
	Jobs  []JobRecord `json:"jobs"`
	Limit int         `json:"limit"`
}
