package services

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"docstream-platform/models"
)

// ErrRetryNotDue is returned when a lease arrives before the job's retry
// window. Callers should park the work until NextRetryAt instead of
// consuming an attempt.
var ErrRetryNotDue = errors.New("services: retry window not reached")

// Events driving the job state machine. Apply is the only place transitions
// happen; callers persist the returned job and act on the returned effect.
type Event interface{ eventName() string }

// EventUploadComplete records that the version's bytes are in the object
// store and the job may be queued for processing.
type EventUploadComplete struct{}

// EventLease claims the job for a worker, consuming one attempt.
type EventLease struct{}

// EventAdvanceStage moves a processing job to its next pipeline stage.
type EventAdvanceStage struct{ Stage string }

// EventComplete finishes a job whose embedding stage succeeded.
type EventComplete struct{ Metrics map[string]any }

// EventFail records a stage failure. Retryable failures within the attempt
// budget park the job until NextRetryAt; everything else is terminal.
type EventFail struct {
	Code    models.ErrorCode
	Message string
}

// EventDocumentDeleted terminally fails a job because its document was
// deleted mid-flight.
type EventDocumentDeleted struct{}

func (EventUploadComplete) eventName() string  { return "upload_complete" }
func (EventLease) eventName() string           { return "lease" }
func (EventAdvanceStage) eventName() string    { return "advance_stage" }
func (EventComplete) eventName() string        { return "complete" }
func (EventFail) eventName() string            { return "fail" }
func (EventDocumentDeleted) eventName() string { return "document_deleted" }

// Effect tells the caller what side effect the transition requires.
type Effect int

const (
	EffectNone Effect = iota
	// EffectEnqueue means an ingestion-requested event must be enqueued in
	// the same transaction that persists the job.
	EffectEnqueue
	// EffectScheduleRetry means the job is parked and becomes due at
	// NextRetryAt.
	EffectScheduleRetry
)

// ErrInvalidTransition is returned when an event does not apply to the job's
// current status and stage.
type ErrInvalidTransition struct {
	Status string
	Stage  string
	Event  string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("event %s not valid in status %s stage %s", e.Event, e.Status, e.Stage)
}

const (
	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 30 * time.Minute
)

// NextRetryDelay is exponential backoff on the attempt count, capped, with
// up to 20% jitter so herds of retries spread out.
func NextRetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	for i := 1; i < attempts && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 5))
	return delay + jitter
}

// Apply computes the job's next state for an event. It is pure apart from
// retry jitter: no I/O, no clock reads. Terminal jobs reject every event.
func Apply(job models.IngestionJob, ev Event, now time.Time) (models.IngestionJob, Effect, error) {
	if job.Terminal() {
		return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
	}

	switch e := ev.(type) {
	case EventUploadComplete:
		if job.Status != models.JobStatusQueued || job.Stage != models.StagePendingUpload {
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		job.Stage = models.StageUploaded
		return job, EffectEnqueue, nil

	case EventLease:
		switch {
		case job.Status == models.JobStatusQueued && job.Stage == models.StageUploaded:
			job.Stage = models.StageParsing
		case job.Status == models.JobStatusRetryReady:
			// Resume at the stage that failed; completed stage output is
			// replaced idempotently on re-run. The backoff window is part of
			// the transition: an early lease (redelivery after a worker
			// crash) must wait it out.
			if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
				return job, EffectNone, ErrRetryNotDue
			}
		default:
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		job.Status = models.JobStatusProcessing
		job.Attempts++
		job.NextRetryAt = nil
		if job.StartedAt == nil {
			t := now
			job.StartedAt = &t
		}
		return job, EffectNone, nil

	case EventAdvanceStage:
		if job.Status != models.JobStatusProcessing {
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		if !validAdvance(job.Stage, e.Stage) {
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		job.Stage = e.Stage
		return job, EffectNone, nil

	case EventComplete:
		if job.Status != models.JobStatusProcessing || job.Stage != models.StageEmbedding {
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		job.Status = models.JobStatusDone
		job.LastError = ""
		job.ErrorCode = ""
		if len(e.Metrics) > 0 {
			// Merge over whatever earlier attempts recorded so a job that
			// retried at a late stage keeps its parse and chunk metrics.
			merged := make(map[string]any, len(job.Metrics)+len(e.Metrics))
			for k, v := range job.Metrics {
				merged[k] = v
			}
			for k, v := range e.Metrics {
				merged[k] = v
			}
			job.Metrics = merged
		}
		t := now
		job.CompletedAt = &t
		return job, EffectNone, nil

	case EventFail:
		if job.Status != models.JobStatusProcessing {
			return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
		}
		job.LastError = e.Message
		job.ErrorCode = e.Code
		if e.Code.Retryable() && job.Attempts < job.MaxAttempts {
			job.Status = models.JobStatusRetryReady
			t := now.Add(NextRetryDelay(job.Attempts))
			job.NextRetryAt = &t
			return job, EffectScheduleRetry, nil
		}
		job.Status = models.JobStatusFailed
		t := now
		job.CompletedAt = &t
		return job, EffectNone, nil

	case EventDocumentDeleted:
		job.Status = models.JobStatusFailed
		job.ErrorCode = models.ErrCodeDocumentDeleted
		job.LastError = "document deleted"
		t := now
		job.CompletedAt = &t
		return job, EffectNone, nil
	}

	return job, EffectNone, &ErrInvalidTransition{job.Status, job.Stage, ev.eventName()}
}

// validAdvance encodes the fixed stage order parsing -> chunking -> embedding.
func validAdvance(from, to string) bool {
	switch from {
	case models.StageParsing:
		return to == models.StageChunking
	case models.StageChunking:
		return to == models.StageEmbedding
	}
	return false
}
