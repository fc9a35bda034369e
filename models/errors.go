package models

import "fmt"

// ErrorCode is the closed set of stable error codes carried on failed jobs.
// The UI maps these to localized messages; nothing else should be invented.
type ErrorCode string

const (
	ErrCodeExtractionEmpty      ErrorCode = "extraction_empty"
	ErrCodeExtractionLowQuality ErrorCode = "extraction_low_quality"
	ErrCodeNeedsOCR             ErrorCode = "needs_ocr"
	ErrCodeParseFailed          ErrorCode = "parse_failed"
	ErrCodeProviderRateLimited  ErrorCode = "provider_rate_limited"
	ErrCodeTimeout              ErrorCode = "timeout"
	ErrCodeUnsupportedFormat    ErrorCode = "unsupported_format"
	ErrCodeFileTooLarge         ErrorCode = "file_too_large"
	ErrCodeFileCorrupted        ErrorCode = "file_corrupted"
	ErrCodeDocumentDeleted      ErrorCode = "document_deleted"
	ErrCodeInternal             ErrorCode = "internal"
)

// Retryable reports whether a job failing with this code may be retried.
// Rate limits and timeouts are transient; internal errors get retried up to
// the attempt budget; everything else is terminal.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeProviderRateLimited, ErrCodeTimeout, ErrCodeInternal:
		return true
	default:
		return false
	}
}

// IngestError is the kind-tagged error surfaced by the ingestion pipeline.
// The coordinator is a linear sequence of results; layers return IngestError
// instead of relying on opaque error strings.
type IngestError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *IngestError) Unwrap() error { return e.Err }

// NewIngestError creates a kind-tagged ingestion error.
func NewIngestError(code ErrorCode, message string, err error) *IngestError {
	return &IngestError{Code: code, Message: message, Err: err}
}
