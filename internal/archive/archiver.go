// Package archive drains captured events into object storage as compressed
// batches, advancing a per-kind cursor so restarts resume where they left off.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/golang/snappy"

	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
	"github.com/cpcatalog/cpcatalog/internal/storage"
)

// DefaultBatchSize bounds how many events one archive object holds.
const DefaultBatchSize = 500

// DefaultInterval is the pause between drain sweeps in the background loop.
const DefaultInterval = time.Minute

// archivedEvent is the wire form of one event inside an archive object.
type archivedEvent struct {
	ID                int64  `json:"id"`
	Kind              string `json:"kind"`
	Source            string `json:"source"`
	SessionIdentifier string `json:"session_identifier"`
	Payload           string `json:"payload"`
	CreatedAt         int64  `json:"created_at"`
}

// Archiver moves events from the catalog store into object storage.
// The cursor is advanced only after the object upload succeeds, so a
// crash mid-batch re-archives at most one batch.
type Archiver struct {
	store     catalog.Store
	objects   storage.ObjectStorage
	prefix    string
	batchSize int
	interval  time.Duration
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithBatchSize overrides the default events-per-object ceiling.
func WithBatchSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithInterval overrides the background sweep interval.
func WithInterval(d time.Duration) Option {
	return func(a *Archiver) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithPrefix sets the object path prefix for archive objects.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		a.prefix = prefix
	}
}

// New creates an Archiver.
func New(store catalog.Store, objects storage.ObjectStorage, opts ...Option) *Archiver {
	a := &Archiver{
		store:     store,
		objects:   objects,
		prefix:    "events",
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveKind drains all events of kind past the stored cursor, one batch
// per object. Returns the number of events archived.
func (a *Archiver) ArchiveKind(ctx context.Context, kind catalog.EventKind) (int, error) {
	cursor, err := a.store.ArchiveCursor(ctx, kind)
	if err != nil {
		return 0, cperrors.NewStoreUnavailable("failed to read archive cursor", err)
	}

	total := 0
	for {
		events, err := a.store.EventsAfter(ctx, kind, cursor, a.batchSize)
		if err != nil {
			return total, cperrors.NewStoreUnavailable("failed to read events for archival", err)
		}
		if len(events) == 0 {
			return total, nil
		}

		lastID := events[len(events)-1].ID
		objectPath := fmt.Sprintf("%s/%s/%d-%d.json.sz", a.prefix, kind, events[0].ID, lastID)

		blob, err := encodeBatch(kind, events)
		if err != nil {
			return total, cperrors.NewInternalError("failed to encode archive batch", err)
		}

		if err := a.objects.Put(ctx, objectPath, blob); err != nil {
			return total, cperrors.Wrap(cperrors.ErrCategoryStorage, cperrors.CodeUploadFailed,
				fmt.Sprintf("failed to upload %s", objectPath), err)
		}

		if err := a.store.SetArchiveCursor(ctx, kind, lastID); err != nil {
			return total, cperrors.NewStoreUnavailable("failed to advance archive cursor", err)
		}

		total += len(events)
		cursor = lastID
	}
}

// ArchiveAll drains every event kind. Returns the total archived count and
// the first error encountered; kinds after a failed one are still attempted.
func (a *Archiver) ArchiveAll(ctx context.Context) (int, error) {
	var firstErr error
	total := 0
	for _, kind := range catalog.EventKinds() {
		n, err := a.ArchiveKind(ctx, kind)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

// Run sweeps all kinds on the configured interval until ctx is cancelled.
// Failed sweeps are logged and retried next tick; upload errors are
// retryable by construction since the cursor only moves on success.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	log.Printf("archive: background archiver started (interval %s)", a.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("archive: background archiver stopped")
			return
		case <-ticker.C:
			n, err := a.ArchiveAll(ctx)
			if err != nil {
				log.Printf("archive: sweep failed after %d events: %v", n, err)
			} else if n > 0 {
				log.Printf("archive: archived %d events", n)
			}
		}
	}
}

// encodeBatch serializes events as a JSON array and snappy-compresses it.
func encodeBatch(kind catalog.EventKind, events []catalog.EventRecord) ([]byte, error) {
	batch := make([]archivedEvent, len(events))
	for i, ev := range events {
		batch[i] = archivedEvent{
			ID:                ev.ID,
			Kind:              string(kind),
			Source:            ev.Source,
			SessionIdentifier: ev.SessionIdentifier,
			Payload:           ev.Payload,
			CreatedAt:         ev.CreatedAt.Unix(),
		}
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// DecodeBatch is the inverse of the archiver's encoding, used by tooling
// that inspects archived objects.
func DecodeBatch(blob []byte) ([]catalog.EventRecord, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to decompress batch: %w", err)
	}

	var batch []archivedEvent
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("archive: failed to decode batch: %w", err)
	}

	events := make([]catalog.EventRecord, len(batch))
	for i, ev := range batch {
		events[i] = catalog.EventRecord{
			ID:                ev.ID,
			Source:            ev.Source,
			SessionIdentifier: ev.SessionIdentifier,
			Payload:           ev.Payload,
			CreatedAt:         time.Unix(ev.CreatedAt, 0),
		}
	}
	return events, nil
}
