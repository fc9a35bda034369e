package models

import "time"

// Job statuses.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusRetryReady = "retry_ready"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// Job stages, meaningful only while the status is non-terminal. A retried job
// resumes at the stage it failed in.
const (
	StagePendingUpload = "pending_upload"
	StageUploaded      = "uploaded"
	StageParsing       = "parsing"
	StageChunking      = "chunking"
	StageEmbedding     = "embedding"
)

// DefaultMaxAttempts bounds retries for a single ingestion job.
const DefaultMaxAttempts = 3

// IngestionJob is the unit advanced by the state machine: one job per
// document version upload.
type IngestionJob struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	VersionID   string         `json:"version_id"`
	SourceType  SourceType     `json:"source_type"`
	Status      string         `json:"status"`
	Stage       string         `json:"stage"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	LastError   string         `json:"last_error,omitempty"`
	ErrorCode   ErrorCode      `json:"error_code,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	NextRetryAt *time.Time     `json:"next_retry_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *IngestionJob) Terminal() bool {
	switch j.Status {
	case JobStatusDone, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
