package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"docstream-platform/internal/storage"
	"docstream-platform/models"
	"docstream-platform/repositories"
)

type fakeJobStore struct {
	jobs    map[string]*models.IngestionJob
	updates int
}

func (f *fakeJobStore) Get(ctx context.Context, id string) (*models.IngestionJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobStore) Update(ctx context.Context, j *models.IngestionJob) error {
	if _, ok := f.jobs[j.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.updates++
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

type fakeVersionStore struct {
	version  *models.DocumentVersion
	document *models.Document
}

func (f *fakeVersionStore) GetVersion(ctx context.Context, tenantID, versionID string) (*models.DocumentVersion, error) {
	if f.version == nil || f.version.ID != versionID || f.version.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	cp := *f.version
	return &cp, nil
}

func (f *fakeVersionStore) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	if f.document == nil || f.document.ID != id || f.document.TenantID != tenantID {
		return nil, repositories.ErrNotFound
	}
	cp := *f.document
	return &cp, nil
}

// fakeContentStore mirrors the delete-then-insert semantics of the pgx
// repository, including the embedding cascade on chunk replacement.
type fakeContentStore struct {
	pages      []models.DocumentPage
	chunks     []models.DocumentChunk
	embeddings []models.ChunkEmbedding
	writes     int
}

func (f *fakeContentStore) ReplacePages(ctx context.Context, tenantID, versionID string, pages []models.DocumentPage) error {
	f.writes++
	f.pages = nil
	for i, p := range pages {
		if p.ID == "" {
			p.ID = fmt.Sprintf("page-%d", i)
		}
		f.pages = append(f.pages, p)
	}
	return nil
}

func (f *fakeContentStore) GetPages(ctx context.Context, versionID string) ([]models.DocumentPage, error) {
	return append([]models.DocumentPage(nil), f.pages...), nil
}

func (f *fakeContentStore) ReplaceChunks(ctx context.Context, tenantID, versionID string, chunks []models.DocumentChunk) error {
	f.writes++
	f.chunks = nil
	f.embeddings = nil
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = fmt.Sprintf("chunk-%d", i)
		}
		f.chunks = append(f.chunks, c)
	}
	return nil
}

func (f *fakeContentStore) GetChunks(ctx context.Context, versionID string) ([]models.DocumentChunk, error) {
	return append([]models.DocumentChunk(nil), f.chunks...), nil
}

func (f *fakeContentStore) ReplaceEmbeddings(ctx context.Context, tenantID, versionID string, embeddings []models.ChunkEmbedding) error {
	f.writes++
	f.embeddings = append([]models.ChunkEmbedding(nil), embeddings...)
	return nil
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func (f *fakeObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

type fakeEmbedder struct {
	batches int
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Model() string { return "test-embedding-model" }

type pipelineFixture struct {
	coordinator *Coordinator
	jobs        *fakeJobStore
	content     *fakeContentStore
	store       *fakeObjectStore
}

func newPipelineFixture(t *testing.T, job *models.IngestionJob) *pipelineFixture {
	t.Helper()

	now := time.Now()
	documents := &fakeVersionStore{
		document: &models.Document{
			ID:       "doc-1",
			TenantID: "tenant-1",
			Status:   models.DocumentStatusActive,
		},
		version: &models.DocumentVersion{
			ID:         "version-1",
			DocumentID: "doc-1",
			TenantID:   "tenant-1",
			ObjectKey:  "tenants/tenant-1/docs/doc-1/v1/original",
			MimeType:   "text/plain",
			CreatedAt:  now,
		},
	}
	jobs := &fakeJobStore{jobs: map[string]*models.IngestionJob{job.ID: job}}
	content := &fakeContentStore{}
	store := &fakeObjectStore{objects: map[string][]byte{
		documents.version.ObjectKey: []byte(strings.Repeat("The quarterly filing explains revenue recognition in detail. ", 6)),
	}}

	coordinator := NewCoordinator(documents, jobs, content, store,
		NewParserRouter(), NewSemanticChunker(0, 0, 0), &fakeEmbedder{})
	return &pipelineFixture{coordinator: coordinator, jobs: jobs, content: content, store: store}
}

func uploadedTestJob() *models.IngestionJob {
	return &models.IngestionJob{
		ID:          "job-1",
		TenantID:    "tenant-1",
		VersionID:   "version-1",
		SourceType:  models.SourceTXT,
		Status:      models.JobStatusQueued,
		Stage:       models.StageUploaded,
		MaxAttempts: models.DefaultMaxAttempts,
		CreatedAt:   time.Now(),
	}
}

func TestCoordinatorRunsJobToCompletion(t *testing.T) {
	fx := newPipelineFixture(t, uploadedTestJob())

	if err := fx.coordinator.Run(context.Background(), "tenant-1", "job-1", "version-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := fx.jobs.jobs["job-1"]
	if job.Status != models.JobStatusDone {
		t.Fatalf("status %s, want done", job.Status)
	}
	if len(fx.content.pages) == 0 || len(fx.content.chunks) == 0 {
		t.Fatalf("pages=%d chunks=%d, want both non-empty", len(fx.content.pages), len(fx.content.chunks))
	}
	if len(fx.content.embeddings) != len(fx.content.chunks) {
		t.Errorf("embeddings=%d, want one per chunk (%d)", len(fx.content.embeddings), len(fx.content.chunks))
	}
	for _, key := range []string{"pageCount", "chunkCount", "embeddingCount", "parserUsed"} {
		if _, ok := job.Metrics[key]; !ok {
			t.Errorf("metrics missing %q: %v", key, job.Metrics)
		}
	}
}

func TestCoordinatorIgnoresRedeliveredEventForTerminalJob(t *testing.T) {
	fx := newPipelineFixture(t, uploadedTestJob())

	if err := fx.coordinator.Run(context.Background(), "tenant-1", "job-1", "version-1"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	updates := fx.jobs.updates
	writes := fx.content.writes
	chunks := len(fx.content.chunks)
	embeddings := len(fx.content.embeddings)

	// A redelivered event for a finished job must commit nothing.
	if err := fx.coordinator.Run(context.Background(), "tenant-1", "job-1", "version-1"); err != nil {
		t.Fatalf("redelivered Run failed: %v", err)
	}
	if fx.jobs.updates != updates {
		t.Errorf("redelivery updated the job %d times", fx.jobs.updates-updates)
	}
	if fx.content.writes != writes {
		t.Errorf("redelivery wrote content %d times", fx.content.writes-writes)
	}
	if len(fx.content.chunks) != chunks || len(fx.content.embeddings) != embeddings {
		t.Errorf("redelivery changed content: chunks %d->%d embeddings %d->%d",
			chunks, len(fx.content.chunks), embeddings, len(fx.content.embeddings))
	}

	seen := map[int]bool{}
	for _, c := range fx.content.chunks {
		if seen[c.ChunkIndex] {
			t.Errorf("duplicate chunk index %d", c.ChunkIndex)
		}
		seen[c.ChunkIndex] = true
	}
}

func TestCoordinatorResumeAtEmbeddingKeepsEarlierMetrics(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	job := uploadedTestJob()
	job.Status = models.JobStatusRetryReady
	job.Stage = models.StageEmbedding
	job.Attempts = 1
	job.NextRetryAt = &due
	job.Metrics = map[string]any{"pageCount": 1, "chunkCount": 1, "totalWords": 54, "parserUsed": "txt"}

	fx := newPipelineFixture(t, job)
	fx.content.chunks = []models.DocumentChunk{{
		ID:        "chunk-0",
		VersionID: "version-1",
		Text:      "The quarterly filing explains revenue recognition in detail.",
		PageStart: 1,
		PageEnd:   1,
	}}

	if err := fx.coordinator.Run(context.Background(), "tenant-1", "job-1", "version-1"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := fx.jobs.jobs["job-1"]
	if got.Status != models.JobStatusDone {
		t.Fatalf("status %s, want done", got.Status)
	}
	if got.Metrics["pageCount"] != 1 || got.Metrics["parserUsed"] != "txt" {
		t.Errorf("earlier stage metrics lost: %v", got.Metrics)
	}
	if got.Metrics["embeddingCount"] != 1 {
		t.Errorf("embeddingCount = %v, want 1", got.Metrics["embeddingCount"])
	}
}

func TestCoordinatorParksRedeliveryBeforeRetryWindow(t *testing.T) {
	due := time.Now().Add(25 * time.Minute)
	job := uploadedTestJob()
	job.Status = models.JobStatusRetryReady
	job.Stage = models.StageEmbedding
	job.Attempts = 1
	job.NextRetryAt = &due

	fx := newPipelineFixture(t, job)

	err := fx.coordinator.Run(context.Background(), "tenant-1", "job-1", "version-1")
	var retry *RetryableError
	if !errors.As(err, &retry) {
		t.Fatalf("expected RetryableError, got %v", err)
	}
	if retry.Job.NextRetryAt == nil || !retry.Job.NextRetryAt.Equal(due) {
		t.Errorf("parked until %v, want %v", retry.Job.NextRetryAt, due)
	}

	got := fx.jobs.jobs["job-1"]
	if got.Status != models.JobStatusRetryReady || got.Attempts != 1 {
		t.Errorf("early redelivery mutated job: %s attempts=%d", got.Status, got.Attempts)
	}
	if fx.jobs.updates != 0 || fx.content.writes != 0 {
		t.Errorf("early redelivery persisted state: updates=%d writes=%d", fx.jobs.updates, fx.content.writes)
	}
}
