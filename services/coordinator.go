package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docstream-platform/internal/logger"
	"docstream-platform/internal/storage"
	"docstream-platform/internal/telemetry"
	"docstream-platform/models"
	"docstream-platform/repositories"
)

// Stage deadlines. A stage that overruns fails with the timeout code and is
// retried from the same stage.
const (
	parseDeadline = 5 * time.Minute
	chunkDeadline = 5 * time.Minute
	embedDeadline = 10 * time.Minute
)

// Persistence and provider surfaces the coordinator needs. The pgx-backed
// repositories and the HTTP embedding client satisfy them.
type JobStore interface {
	Get(ctx context.Context, id string) (*models.IngestionJob, error)
	Update(ctx context.Context, j *models.IngestionJob) error
}

type VersionStore interface {
	GetVersion(ctx context.Context, tenantID, versionID string) (*models.DocumentVersion, error)
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
}

type ContentStore interface {
	ReplacePages(ctx context.Context, tenantID, versionID string, pages []models.DocumentPage) error
	GetPages(ctx context.Context, versionID string) ([]models.DocumentPage, error)
	ReplaceChunks(ctx context.Context, tenantID, versionID string, chunks []models.DocumentChunk) error
	GetChunks(ctx context.Context, versionID string) ([]models.DocumentChunk, error)
	ReplaceEmbeddings(ctx context.Context, tenantID, versionID string, embeddings []models.ChunkEmbedding) error
}

type ObjectFetcher interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Coordinator runs one ingestion job end to end: download, parse, gate,
// chunk, embed. Every stage writes its output atomically before the job
// advances, so a crash or retry re-runs at most one stage.
type Coordinator struct {
	documents VersionStore
	jobs      JobStore
	content   ContentStore
	store     ObjectFetcher
	router    *ParserRouter
	chunker   *SemanticChunker
	embedder  Embedder
}

func NewCoordinator(
	documents VersionStore,
	jobs JobStore,
	content ContentStore,
	store ObjectFetcher,
	router *ParserRouter,
	chunker *SemanticChunker,
	embedder Embedder,
) *Coordinator {
	return &Coordinator{
		documents: documents,
		jobs:      jobs,
		content:   content,
		store:     store,
		router:    router,
		chunker:   chunker,
		embedder:  embedder,
	}
}

// Run processes one delivery of an ingestion-requested event. It is safe to
// call with an already-terminal job: that is a redelivered event and Run
// returns nil so the dispatcher acks it.
func (c *Coordinator) Run(ctx context.Context, tenantID, jobID, versionID string) error {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s failed: %w", jobID, err)
	}
	if job.TenantID != tenantID || job.VersionID != versionID {
		return fmt.Errorf("job %s does not match event addressing", jobID)
	}
	if job.Terminal() {
		logger.Debug("skipping redelivered event for terminal job", "jobId", jobID, "status", job.Status)
		return nil
	}

	version, err := c.documents.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return fmt.Errorf("load version %s failed: %w", versionID, err)
	}

	next, _, err := Apply(*job, EventLease{}, time.Now())
	if err != nil {
		if errors.Is(err, ErrRetryNotDue) {
			// Redelivered ahead of the backoff window, likely after a lease
			// expiry. Park the event until the job is due.
			return &RetryableError{Job: job, Cause: err}
		}
		return fmt.Errorf("job %s not leasable: %w", jobID, err)
	}
	*job = next
	if err := c.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist lease failed: %w", err)
	}

	logger.Info("ingestion attempt started",
		"jobId", job.ID, "tenantId", tenantID, "stage", job.Stage, "attempt", job.Attempts)

	// Metrics accumulate across attempts: a retry resuming at a late stage
	// starts from what earlier attempts recorded.
	metrics := make(map[string]any, len(job.Metrics)+4)
	for k, v := range job.Metrics {
		metrics[k] = v
	}
	for !job.Terminal() {
		var stageErr error
		switch job.Stage {
		case models.StageParsing:
			stageErr = c.runStage(ctx, job, tenantID, parseDeadline, metrics, func(sctx context.Context) error {
				return c.parseStage(sctx, tenantID, version, job, metrics)
			})
		case models.StageChunking:
			stageErr = c.runStage(ctx, job, tenantID, chunkDeadline, metrics, func(sctx context.Context) error {
				return c.chunkStage(sctx, tenantID, versionID, metrics)
			})
		case models.StageEmbedding:
			stageErr = c.runStage(ctx, job, tenantID, embedDeadline, metrics, func(sctx context.Context) error {
				return c.embedStage(sctx, tenantID, versionID, metrics)
			})
		default:
			stageErr = fmt.Errorf("job %s in unexpected stage %s", job.ID, job.Stage)
		}

		if stageErr != nil {
			return c.fail(ctx, job, stageErr)
		}
		// Persist stage metrics with the next job update so a later retry
		// resumes with them.
		job.Metrics = metrics

		if job.Stage == models.StageEmbedding {
			next, _, err := Apply(*job, EventComplete{Metrics: metrics}, time.Now())
			if err != nil {
				return c.fail(ctx, job, err)
			}
			*job = next
			if err := c.jobs.Update(ctx, job); err != nil {
				return fmt.Errorf("persist completion failed: %w", err)
			}
			telemetry.JobsCompleted.Inc()
			logger.Info("ingestion completed", "jobId", job.ID, "tenantId", tenantID,
				"pages", metrics["pageCount"], "chunks", metrics["chunkCount"])
			return nil
		}

		nextStage := models.StageChunking
		if job.Stage == models.StageChunking {
			nextStage = models.StageEmbedding
		}
		next, _, err := Apply(*job, EventAdvanceStage{Stage: nextStage}, time.Now())
		if err != nil {
			return c.fail(ctx, job, err)
		}
		*job = next
		if err := c.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("persist stage advance failed: %w", err)
		}
	}
	return nil
}

// runStage checks the document is still live, then runs fn under the stage
// deadline and records its duration.
func (c *Coordinator) runStage(ctx context.Context, job *models.IngestionJob, tenantID string, deadline time.Duration, metrics map[string]any, fn func(context.Context) error) error {
	if err := c.checkDocumentLive(ctx, tenantID, job.VersionID); err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	err := fn(sctx)
	telemetry.StageDuration.WithLabelValues(job.Stage).Observe(time.Since(start).Seconds())

	if err != nil && sctx.Err() == context.DeadlineExceeded {
		return models.NewIngestError(models.ErrCodeTimeout,
			fmt.Sprintf("stage %s exceeded its %s deadline", job.Stage, deadline), err)
	}
	return err
}

// checkDocumentLive fails the stage with document_deleted when the owning
// document has been deleted mid-flight.
func (c *Coordinator) checkDocumentLive(ctx context.Context, tenantID, versionID string) error {
	version, err := c.documents.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return err
	}
	doc, err := c.documents.GetDocument(ctx, tenantID, version.DocumentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.NewIngestError(models.ErrCodeDocumentDeleted, "document no longer exists", err)
		}
		return err
	}
	if doc.Status != models.DocumentStatusActive {
		return models.NewIngestError(models.ErrCodeDocumentDeleted, "document deleted during ingestion", nil)
	}
	return nil
}

func (c *Coordinator) parseStage(ctx context.Context, tenantID string, version *models.DocumentVersion, job *models.IngestionJob, metrics map[string]any) error {
	data, err := c.store.Download(ctx, version.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return models.NewIngestError(models.ErrCodeInternal,
				"uploaded object missing from store", err)
		}
		return err
	}

	parsed, err := c.router.Parse(version.MimeType, job.SourceType, data)
	if err != nil {
		telemetry.ParserRuns.WithLabelValues(string(job.SourceType), "error").Inc()
		return err
	}
	telemetry.ParserRuns.WithLabelValues(parsed.Parser, "ok").Inc()

	if err := EvaluateQuality(parsed); err != nil {
		return err
	}

	pages := make([]models.DocumentPage, len(parsed.Pages))
	for i, p := range parsed.Pages {
		pages[i] = models.DocumentPage{
			VersionID:  version.ID,
			PageNumber: p.PageNumber,
			Text:       p.Text,
			CharCount:  p.CharCount,
		}
	}
	if err := c.content.ReplacePages(ctx, tenantID, version.ID, pages); err != nil {
		return err
	}

	metrics["pageCount"] = parsed.PageCount
	metrics["totalChars"] = parsed.CharCount
	metrics["totalWords"] = parsed.WordCount
	metrics["parserUsed"] = parsed.Parser
	return nil
}

func (c *Coordinator) chunkStage(ctx context.Context, tenantID, versionID string, metrics map[string]any) error {
	pages, err := c.content.GetPages(ctx, versionID)
	if err != nil {
		return err
	}

	chunks := c.chunker.Chunk(pages)
	for i := range chunks {
		chunks[i].VersionID = versionID
	}
	if err := c.content.ReplaceChunks(ctx, tenantID, versionID, chunks); err != nil {
		return err
	}

	metrics["chunkCount"] = len(chunks)
	return nil
}

func (c *Coordinator) embedStage(ctx context.Context, tenantID, versionID string, metrics map[string]any) error {
	chunks, err := c.content.GetChunks(ctx, versionID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		metrics["embeddingCount"] = 0
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}

	embeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, ch := range chunks {
		embeddings[i] = models.ChunkEmbedding{
			ChunkID: ch.ID,
			Vector:  vectors[i],
			Model:   c.embedder.Model(),
		}
	}
	if err := c.content.ReplaceEmbeddings(ctx, tenantID, versionID, embeddings); err != nil {
		return err
	}

	metrics["embeddingCount"] = len(embeddings)
	return nil
}

// fail classifies the error and applies the Fail transition. Retryable
// failures park the job; the dispatcher re-delivers the outbox event at the
// job's NextRetryAt.
func (c *Coordinator) fail(ctx context.Context, job *models.IngestionJob, cause error) error {
	code := ClassifyError(cause)
	next, effect, err := Apply(*job, EventFail{Code: code, Message: truncateError(cause)}, time.Now())
	if err != nil {
		return fmt.Errorf("fail transition rejected: %w (cause: %v)", err, cause)
	}
	*job = next
	if err := c.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("persist failure failed: %w (cause: %v)", err, cause)
	}

	if effect == EffectScheduleRetry {
		telemetry.JobsRetried.Inc()
		logger.Warn("ingestion attempt failed, retry scheduled",
			"jobId", job.ID, "errorCode", code, "attempt", job.Attempts, "nextRetryAt", job.NextRetryAt, "error", cause)
		return &RetryableError{Job: job, Cause: cause}
	}

	telemetry.JobsFailed.WithLabelValues(string(code)).Inc()
	logger.Error("ingestion failed terminally",
		"jobId", job.ID, "errorCode", code, "attempts", job.Attempts, "error", cause)
	return nil
}

// RetryableError signals the dispatcher that the event must be released
// back to the outbox, due again at the job's NextRetryAt.
type RetryableError struct {
	Job   *models.IngestionJob
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("job %s parked for retry: %v", e.Job.ID, e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// truncateError bounds stored error messages.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	return msg
}
