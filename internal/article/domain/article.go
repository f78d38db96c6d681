// Package domain defines the core domain models for article integration.
// Articles are prepared in a staging collection by the processing pipeline
// and moved into the permanent archive collection exactly once.
package domain

import (
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/memorylib/integrator/internal/docstore"
	appvalidation "github.com/memorylib/integrator/internal/validation"
)

// MaxDocumentIDLength is the longest accepted document identifier.
const MaxDocumentIDLength = 100

// Document field names shared by the staging and archive collections.
const (
	FieldStatus              = "status"
	FieldQueuedAt            = "queuedAt"
	FieldProcessingStartedAt = "processingStartedAt"
	FieldProcessedAt         = "processedAt"
	FieldBatchID             = "batchId"
	FieldIntegratedAt        = "integratedAt"
	FieldUpdatedAt           = "updatedAt"
)

// WorkflowFields are the staging pipeline bookkeeping fields. They describe
// how an article moved through processing, not the article itself, and are
// dropped when the article is archived.
var WorkflowFields = []string{
	FieldStatus,
	FieldQueuedAt,
	FieldProcessingStartedAt,
	FieldProcessedAt,
	FieldBatchID,
}

// DocumentID identifies an article document. The zero value is invalid;
// use ParseDocumentID to construct one.
type DocumentID string

// String returns the identifier as a plain string.
func (id DocumentID) String() string {
	return string(id)
}

// ParseDocumentID validates a raw identifier from a trigger message.
// Surrounding whitespace is trimmed before validation. The identifier must
// be non-blank, at most MaxDocumentIDLength characters, contain no slash,
// and not start with the reserved "__" prefix. Violations return an
// invalid-input error carrying the failed rule's message.
func ParseDocumentID(raw string) (DocumentID, error) {
	trimmed := strings.TrimSpace(raw)

	err := validation.Validate(trimmed,
		validation.Required,
		validation.RuneLength(1, MaxDocumentIDLength),
		appvalidation.NoSlash,
		appvalidation.NoReservedPrefix,
	)
	if err != nil {
		return "", appvalidation.WrapValidationError(err)
	}

	return DocumentID(trimmed), nil
}

// StagingStatus is the lifecycle state of a staged article.
type StagingStatus string

const (
	// StatusUnknown covers absent or unrecognized status values.
	StatusUnknown StagingStatus = ""
	// StatusQueued means the article is waiting for processing.
	StatusQueued StagingStatus = "queued"
	// StatusProcessing means the pipeline is working on the article.
	StatusProcessing StagingStatus = "processing"
	// StatusProcessed means the article is ready to be archived.
	StatusProcessed StagingStatus = "processed"
)

// String returns the string representation of the status.
func (s StagingStatus) String() string {
	return string(s)
}

// Validate checks if the status is a known lifecycle state.
func (s StagingStatus) Validate() error {
	switch s {
	case StatusQueued, StatusProcessing, StatusProcessed:
		return nil
	default:
		return ErrUnknownStagingStatus
	}
}

// StatusOf reads the staging status from a document. Absent, non-string, or
// unrecognized values map to StatusUnknown.
func StatusOf(fields docstore.Fields) StagingStatus {
	raw, ok := fields[FieldStatus].(string)
	if !ok {
		return StatusUnknown
	}
	status := StagingStatus(raw)
	if status.Validate() != nil {
		return StatusUnknown
	}
	return status
}

// BuildArchiveFields derives the permanent archive document from a staged
// one: workflow bookkeeping fields are dropped and the integration
// timestamps are added as server timestamp sentinels, resolved by the store
// at commit. The staged input is never mutated.
func BuildArchiveFields(staged docstore.Fields) docstore.Fields {
	archive := docstore.CloneFields(staged)
	if archive == nil {
		archive = docstore.Fields{}
	}
	for _, field := range WorkflowFields {
		delete(archive, field)
	}
	archive[FieldIntegratedAt] = docstore.ServerTimestamp
	archive[FieldUpdatedAt] = docstore.ServerTimestamp
	return archive
}
