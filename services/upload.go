package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"docstream-platform/internal/logger"
	"docstream-platform/internal/storage"
	"docstream-platform/models"
	"docstream-platform/repositories"
	"docstream-platform/utils"
)

// ErrUnsupportedFilename is returned when no source type can be inferred
// from the uploaded filename.
var ErrUnsupportedFilename = errors.New("services: unsupported file extension")

// ErrVersionNotUploaded is returned when complete-upload finds no object at
// the version's key.
var ErrVersionNotUploaded = errors.New("services: uploaded object not found")

// ErrSizeMismatch is returned when the client's declared file size does not
// match the bytes found in the object store.
var ErrSizeMismatch = errors.New("services: uploaded size does not match declared size")

// UploadTicket is everything a client needs to push bytes for a new version.
type UploadTicket struct {
	DocumentID string `json:"documentId"`
	VersionID  string `json:"versionId"`
	JobID      string `json:"jobId"`
	ObjectKey  string `json:"objectKey"`
	UploadURL  string `json:"uploadUrl"`
	ExpiresIn  int    `json:"expiresIn"`
}

// UploadService handles the two-phase upload flow: reserve a version with a
// presigned PUT URL, then materialize it and queue ingestion once the bytes
// have landed.
type UploadService struct {
	pool      *pgxpool.Pool
	documents *repositories.DocumentRepository
	jobs      *repositories.JobRepository
	outbox    *repositories.OutboxRepository
	store     *storage.ObjectStore
	urlTTL    time.Duration
}

func NewUploadService(pool *pgxpool.Pool, documents *repositories.DocumentRepository, jobs *repositories.JobRepository, outbox *repositories.OutboxRepository, store *storage.ObjectStore, urlTTL time.Duration) *UploadService {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &UploadService{
		pool:      pool,
		documents: documents,
		jobs:      jobs,
		outbox:    outbox,
		store:     store,
		urlTTL:    urlTTL,
	}
}

// InitUpload reserves storage for a new document (documentID empty) or a new
// version of an existing one, creates the paired queued job, and returns a
// presigned upload ticket.
func (s *UploadService) InitUpload(ctx context.Context, tenantID, documentID, title, filename, mimeType, uploaderID string) (*UploadTicket, error) {
	sourceType, ok := SourceTypeFromFilename(filename)
	if !ok {
		return nil, ErrUnsupportedFilename
	}
	if title == "" {
		title = filename
	}

	now := time.Now()
	version := &models.DocumentVersion{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		MimeType:  mimeType,
		CreatedAt: now,
	}
	job := &models.IngestionJob{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		VersionID:   version.ID,
		SourceType:  sourceType,
		Status:      models.JobStatusQueued,
		Stage:       models.StagePendingUpload,
		MaxAttempts: models.DefaultMaxAttempts,
		CreatedAt:   now,
	}

	if documentID == "" {
		doc := &models.Document{
			ID:               uuid.NewString(),
			TenantID:         tenantID,
			Title:            title,
			OriginalFilename: filename,
			Status:           models.DocumentStatusActive,
			UploaderID:       uploaderID,
			CreatedAt:        now,
		}
		version.DocumentID = doc.ID
		version.VersionNumber = 1
		version.ObjectKey = storage.GenerateKey(tenantID, doc.ID, 1)
		if err := s.documents.CreateWithFirstVersion(ctx, doc, version, job); err != nil {
			return nil, err
		}
		documentID = doc.ID
	} else {
		version.DocumentID = documentID
		// The version number is assigned under the document lock; the key
		// is deterministic in it, so assign it after.
		versionNumber, err := s.documents.AddVersion(ctx, tenantID, version, job, func(n int) string {
			return storage.GenerateKey(tenantID, documentID, n)
		})
		if err != nil {
			return nil, err
		}
		version.VersionNumber = versionNumber
	}

	uploadURL, err := s.store.GetUploadURL(ctx, version.ObjectKey, mimeType, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload failed: %w", err)
	}

	logger.Info("upload initialized", "tenantId", tenantID, "documentId", documentID,
		"versionId", version.ID, "versionNumber", version.VersionNumber, "sourceType", sourceType)

	return &UploadTicket{
		DocumentID: documentID,
		VersionID:  version.ID,
		JobID:      job.ID,
		ObjectKey:  version.ObjectKey,
		UploadURL:  uploadURL,
		ExpiresIn:  int(s.urlTTL.Seconds()),
	}, nil
}

// CompleteUpload verifies the bytes landed, materializes the version with
// size and content hash, and atomically moves the job to uploaded while
// enqueuing the ingestion event. declaredSize, when positive, is checked
// against the stored object to catch interrupted uploads. Calling it twice
// is a no-op the second time.
func (s *UploadService) CompleteUpload(ctx context.Context, tenantID, versionID string, declaredSize int64) (*models.IngestionJob, error) {
	version, err := s.documents.GetVersion(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetActiveByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if job.Stage != models.StagePendingUpload {
		// Already completed; idempotent success.
		return job, nil
	}

	data, err := s.store.Download(ctx, version.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrVersionNotUploaded
		}
		return nil, err
	}

	if !declaredSizeMatches(declaredSize, int64(len(data))) {
		logger.Warn("upload size mismatch", "tenantId", tenantID, "versionId", versionID,
			"declared", declaredSize, "stored", len(data))
		return nil, ErrSizeMismatch
	}

	if err := s.documents.MaterializeVersion(ctx, versionID, int64(len(data)), utils.SHA256Hex(data)); err != nil {
		return nil, err
	}

	next, effect, err := Apply(*job, EventUploadComplete{}, time.Now())
	if err != nil {
		return nil, err
	}
	*job = next

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.jobs.UpdateTx(ctx, tx, job); err != nil {
		return nil, err
	}
	if effect == EffectEnqueue {
		event, err := buildIngestionEvent(tenantID, job.ID, versionID)
		if err != nil {
			return nil, err
		}
		if err := s.outbox.EnqueueTx(ctx, tx, event); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info("upload completed", "tenantId", tenantID, "versionId", versionID,
		"jobId", job.ID, "bytes", len(data))
	return job, nil
}

// declaredSizeMatches treats a non-positive declared size as "not declared";
// the stored object is then taken at face value.
func declaredSizeMatches(declared, stored int64) bool {
	return declared <= 0 || declared == stored
}

func buildIngestionEvent(tenantID, jobID, versionID string) (*models.OutboxEvent, error) {
	var payload models.IngestionRequestedPayload
	payload.Version = models.EventPayloadVersion
	payload.Type = models.EventTypeIngestionRequested
	payload.Payload.TenantID = tenantID
	payload.Payload.JobID = jobID
	payload.Payload.VersionID = versionID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload failed: %w", err)
	}
	return &models.OutboxEvent{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		EventType:   models.EventTypeIngestionRequested,
		Payload:     body,
		MaxAttempts: models.DefaultOutboxMaxAttempts,
		CreatedAt:   time.Now(),
	}, nil
}
