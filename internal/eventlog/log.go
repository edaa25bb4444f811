// Package eventlog implements the append-only event capture log. It is a
// faithful recorder: payloads are serialized once to canonical JSON and
// stored verbatim, never interpreted.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
)

// MaxFieldLength bounds the source and session identifier strings.
const MaxFieldLength = 255

// Log appends immutable query/task-lifecycle events to the catalog store.
type Log struct {
	store catalog.Store
}

// New creates an event capture log backed by the given store.
func New(store catalog.Store) *Log {
	return &Log{store: store}
}

// Append validates the envelope, serializes the payload, and appends one
// immutable record to the table for kind. A nil error means the event is
// durably recorded. Payload contents are not inspected beyond
// serializability.
func (l *Log) Append(ctx context.Context, kind catalog.EventKind, source, session string, payload map[string]interface{}) (int64, error) {
	if !kind.Valid() {
		return 0, cperrors.NewValidationError(cperrors.CodeInvalidArgument,
			fmt.Sprintf("unknown event kind %q", kind))
	}
	if err := validateField("source", source); err != nil {
		return 0, err
	}
	if err := validateField("session_identifier", session); err != nil {
		return 0, err
	}
	if payload == nil {
		return 0, cperrors.NewValidationError(cperrors.CodeInvalidArgument, "payload is required")
	}

	// json.Marshal writes map keys in sorted order, giving a canonical
	// textual form for identical documents.
	serialized, err := json.Marshal(payload)
	if err != nil {
		return 0, cperrors.NewValidationError(cperrors.CodeInvalidArgument,
			fmt.Sprintf("payload is not serializable: %v", err))
	}

	id, err := l.store.AppendEvent(ctx, kind, source, session, string(serialized))
	if err != nil {
		return 0, cperrors.NewStoreUnavailable("failed to append event", err)
	}
	return id, nil
}

// Events returns up to limit events of the given kind, most recent first.
func (l *Log) Events(ctx context.Context, kind catalog.EventKind, limit int) ([]catalog.EventRecord, error) {
	if !kind.Valid() {
		return nil, cperrors.NewValidationError(cperrors.CodeInvalidArgument,
			fmt.Sprintf("unknown event kind %q", kind))
	}

	events, err := l.store.Events(ctx, kind, limit)
	if err != nil {
		return nil, cperrors.NewStoreUnavailable("failed to read events", err)
	}
	return events, nil
}

// validateField enforces the non-empty, bounded-length envelope rules.
func validateField(name, value string) error {
	if value == "" {
		return cperrors.NewValidationError(cperrors.CodeInvalidArgument, name+" is required")
	}
	if len(value) > MaxFieldLength {
		return cperrors.NewValidationError(cperrors.CodeInvalidArgument,
			fmt.Sprintf("%s exceeds %d characters", name, MaxFieldLength))
	}
	return nil
}
