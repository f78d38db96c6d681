// Package docstore defines the transactional document store used by the
// integration workflow. Documents are schemaless field maps addressed by
// (collection, id). Implementations must provide atomic multi-document
// transactions: either every buffered read-check-write commits, or none of
// it does.
package docstore

import (
	"context"
	"time"

	apperrors "github.com/memorylib/integrator/internal/errors"
)

// Collection names a group of documents (e.g. "staging_articles").
type Collection string

// Fields holds the body of a document.
type Fields map[string]any

// ServerTimestamp is a sentinel field value. Implementations replace it at
// commit time with the store's own transaction timestamp, resolved at most
// once per transaction so every sentinel in the same transaction gets the
// same value.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

func (serverTimestamp) String() string { return "<server timestamp>" }

// Store errors. ErrDocumentNotFound is returned by Tx.Get for absent
// documents; ErrTxConflict signals a lost race with a concurrent
// transaction and is always safe to retry.
var (
	ErrDocumentNotFound = apperrors.Wrap(apperrors.ErrNotFound, "document not found")
	ErrTxConflict       = apperrors.Wrap(apperrors.ErrTransient, "transaction conflict")
)

// Tx is the view of the store inside a running transaction.
type Tx interface {
	// Get returns the fields of the document, or ErrDocumentNotFound.
	Get(ctx context.Context, col Collection, id string) (Fields, error)
	// Set creates or replaces the document with the given fields.
	Set(ctx context.Context, col Collection, id string, fields Fields) error
	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, col Collection, id string) error
}

// TxFunc is a transaction body. It may be invoked more than once by callers
// that retry conflicts, so it must not have side effects outside the Tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the document store capability.
type Store interface {
	// RunTransaction executes fn atomically. A non-nil error from fn aborts
	// the transaction and is returned unchanged.
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Count returns the number of documents in the collection. It runs
	// outside any transaction and gives no consistency guarantee relative
	// to concurrent commits.
	Count(ctx context.Context, col Collection) (int64, error)
}

// CloneFields returns a deep copy of fields. Nested field maps and slices
// are copied; scalar values are shared.
func CloneFields(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Fields:
		return CloneFields(val)
	case map[string]any:
		return map[string]any(CloneFields(Fields(val)))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// ContainsServerTimestamp reports whether fields holds a ServerTimestamp
// sentinel anywhere, including nested maps and slices.
func ContainsServerTimestamp(fields Fields) bool {
	for _, v := range fields {
		if containsSentinel(v) {
			return true
		}
	}
	return false
}

func containsSentinel(v any) bool {
	switch val := v.(type) {
	case serverTimestamp:
		return true
	case Fields:
		return ContainsServerTimestamp(val)
	case map[string]any:
		return ContainsServerTimestamp(Fields(val))
	case []any:
		for _, item := range val {
			if containsSentinel(item) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ResolveServerTimestamps returns a copy of fields with every
// ServerTimestamp sentinel replaced by now. Nested maps are resolved too.
func ResolveServerTimestamps(fields Fields, now time.Time) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v any, now time.Time) any {
	switch val := v.(type) {
	case serverTimestamp:
		return now
	case Fields:
		return map[string]any(ResolveServerTimestamps(val, now))
	case map[string]any:
		return map[string]any(ResolveServerTimestamps(Fields(val), now))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return v
	}
}
