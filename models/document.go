package models

import "time"

// Document statuses. Once a document is deleted its metadata is frozen.
const (
	DocumentStatusActive         = "active"
	DocumentStatusDeletedPending = "deleted_pending"
	DocumentStatusDeleted        = "deleted"
)

// SourceType identifies the upload format, inferred from the filename
// extension on the upload path.
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceDOCX SourceType = "docx"
	SourceTXT  SourceType = "txt"
	SourceCSV  SourceType = "csv"
	SourceXLSX SourceType = "xlsx"
	SourceHTML SourceType = "html"
)

// Document is a business-scoped logical file owning an ordered sequence of
// versions.
type Document struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	Title            string     `json:"title"`
	OriginalFilename string     `json:"original_filename"`
	Status           string     `json:"status"`
	UploaderID       string     `json:"uploader_id,omitempty"`
	Labels           []string   `json:"labels,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// DocumentVersion is an immutable snapshot of one upload. It is created in a
// reserved state with no bytes; Complete Upload materializes it by recording
// byte length and content hash.
type DocumentVersion struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	TenantID      string    `json:"tenant_id"`
	VersionNumber int       `json:"version_number"`
	ObjectKey     string    `json:"object_key"`
	MimeType      string    `json:"mime_type"`
	FileSize      int64     `json:"file_size"`
	ContentHash   string    `json:"content_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Materialized reports whether bytes have been attached to this version.
func (v *DocumentVersion) Materialized() bool {
	return v.ContentHash != ""
}

// DocumentPage is one logical page of parser output, written atomically at
// the end of the parse stage.
type DocumentPage struct {
	ID         string `json:"id"`
	VersionID  string `json:"version_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	CharCount  int    `json:"char_count"`
}

// DocumentChunk is chunker output with citation provenance. Page bounds are
// inclusive and PageStart <= PageEnd always holds.
type DocumentChunk struct {
	ID         string   `json:"id"`
	VersionID  string   `json:"version_id"`
	ChunkIndex int      `json:"chunk_index"`
	Text       string   `json:"text"`
	PageStart  int      `json:"page_start"`
	PageEnd    int      `json:"page_end"`
	Sentences  []string `json:"sentences,omitempty"`
}

// ChunkEmbedding pairs a chunk with its fixed-dimension vector.
type ChunkEmbedding struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	Model   string    `json:"model"`
}

// EmbeddingDimensions is the fixed vector width of the embedding index.
const EmbeddingDimensions = 1536
