package models

import "time"

// Outbox event types.
const (
	EventTypeIngestionRequested = "document.ingestion_requested"
)

// EventPayloadVersion is the wire version of outbox payloads.
const EventPayloadVersion = 1

// DefaultOutboxMaxAttempts bounds deliveries of one outbox entry.
const DefaultOutboxMaxAttempts = 5

// OutboxEvent is a durable pointer to pending work. A row with a null
// ProcessedAt is still owed; committed rows are retained for audit.
type OutboxEvent struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	LeasedUntil *time.Time `json:"leased_until,omitempty"`
}

// IngestionRequestedPayload is the JSON body of a
// document.ingestion_requested event.
type IngestionRequestedPayload struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
	Payload struct {
		VersionID string `json:"versionId"`
		JobID     string `json:"jobId"`
		TenantID  string `json:"tenantId"`
	} `json:"payload"`
}
