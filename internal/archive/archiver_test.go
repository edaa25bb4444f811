package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
	"github.com/cpcatalog/cpcatalog/internal/storage"
)

func newTestArchiver(t *testing.T, opts ...Option) (*Archiver, *catalog.SQLiteStore, *storage.LocalStorage) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "archive_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := catalog.NewStore(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	objects, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	return New(store, objects, opts...), store, objects
}

func appendEvents(t *testing.T, store *catalog.SQLiteStore, kind catalog.EventKind, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		payload := fmt.Sprintf(`{"seq":%d}`, i)
		if _, err := store.AppendEvent(ctx, kind, "src", "sess", payload); err != nil {
			t.Fatalf("failed to append event %d: %v", i, err)
		}
	}
}

func TestArchiveKind_DrainsAndAdvancesCursor(t *testing.T) {
	a, store, objects := newTestArchiver(t)
	ctx := context.Background()

	appendEvents(t, store, catalog.EventKindQuery, 7)

	n, err := a.ArchiveKind(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to archive: %v", err)
	}
	if n != 7 {
		t.Errorf("archived count mismatch: got %d, want 7", n)
	}

	cursor, err := store.ArchiveCursor(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if cursor != 7 {
		t.Errorf("cursor mismatch: got %d, want 7", cursor)
	}

	paths, err := objects.ListObjects(ctx, "events/query")
	if err != nil {
		t.Fatalf("failed to list objects: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("object count mismatch: got %d, want 1", len(paths))
	}
	if paths[0] != "events/query/1-7.json.sz" {
		t.Errorf("object path mismatch: %s", paths[0])
	}
}

func TestArchiveKind_BatchRoundTrip(t *testing.T) {
	a, store, objects := newTestArchiver(t)
	ctx := context.Background()

	appendEvents(t, store, catalog.EventKindTaskResult, 3)

	if _, err := a.ArchiveKind(ctx, catalog.EventKindTaskResult); err != nil {
		t.Fatalf("failed to archive: %v", err)
	}

	blob, err := objects.Get(ctx, "events/task_result/1-3.json.sz")
	if err != nil {
		t.Fatalf("failed to read archive object: %v", err)
	}

	events, err := DecodeBatch(blob)
	if err != nil {
		t.Fatalf("failed to decode batch: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("event count mismatch: got %d, want 3", len(events))
	}
	for i, ev := range events {
		want := fmt.Sprintf(`{"seq":%d}`, i)
		if ev.Payload != want {
			t.Errorf("payload %d mismatch: got %s, want %s", i, ev.Payload, want)
		}
		if ev.Source != "src" {
			t.Errorf("source %d mismatch: %s", i, ev.Source)
		}
	}
}

func TestArchiveKind_ChunksByBatchSize(t *testing.T) {
	a, store, objects := newTestArchiver(t, WithBatchSize(4))
	ctx := context.Background()

	appendEvents(t, store, catalog.EventKindQuery, 10)

	n, err := a.ArchiveKind(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to archive: %v", err)
	}
	if n != 10 {
		t.Errorf("archived count mismatch: got %d, want 10", n)
	}

	paths, err := objects.ListObjects(ctx, "events/query")
	if err != nil {
		t.Fatalf("failed to list objects: %v", err)
	}
	if len(paths) != 3 {
		t.Errorf("object count mismatch: got %d, want 3 (%v)", len(paths), paths)
	}
}

func TestArchiveKind_ResumesFromCursor(t *testing.T) {
	a, store, objects := newTestArchiver(t)
	ctx := context.Background()

	appendEvents(t, store, catalog.EventKindQuery, 3)
	if _, err := a.ArchiveKind(ctx, catalog.EventKindQuery); err != nil {
		t.Fatalf("failed to archive first sweep: %v", err)
	}

	// A second sweep with no new events does nothing.
	n, err := a.ArchiveKind(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to archive empty sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("empty sweep archived %d events", n)
	}

	appendEvents(t, store, catalog.EventKindQuery, 2)
	n, err = a.ArchiveKind(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to archive second sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("archived count mismatch: got %d, want 2", n)
	}

	paths, err := objects.ListObjects(ctx, "events/query")
	if err != nil {
		t.Fatalf("failed to list objects: %v", err)
	}
	found := false
	for _, p := range paths {
		if strings.HasSuffix(p, "4-5.json.sz") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 4-5 object, got %v", paths)
	}
}

func TestArchiveAll_CoversEveryKind(t *testing.T) {
	a, store, objects := newTestArchiver(t)
	ctx := context.Background()

	for _, kind := range catalog.EventKinds() {
		appendEvents(t, store, kind, 2)
	}

	n, err := a.ArchiveAll(ctx)
	if err != nil {
		t.Fatalf("failed to archive all: %v", err)
	}
	if n != 6 {
		t.Errorf("archived count mismatch: got %d, want 6", n)
	}

	for _, kind := range catalog.EventKinds() {
		paths, err := objects.ListObjects(ctx, "events/"+string(kind))
		if err != nil {
			t.Fatalf("failed to list %s objects: %v", kind, err)
		}
		if len(paths) != 1 {
			t.Errorf("%s object count mismatch: got %d, want 1", kind, len(paths))
		}
	}
}

// failingStorage rejects every upload.
type failingStorage struct {
	storage.ObjectStorage
}

func (f *failingStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	return fmt.Errorf("bucket unreachable")
}

func TestArchiveKind_UploadFailureLeavesCursor(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "archive_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := catalog.NewStore(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := New(store, &failingStorage{})
	ctx := context.Background()

	appendEvents(t, store, catalog.EventKindQuery, 3)

	_, err = a.ArchiveKind(ctx, catalog.EventKindQuery)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if cperrors.GetCode(err) != cperrors.CodeUploadFailed {
		t.Errorf("code mismatch: got %s", cperrors.GetCode(err))
	}
	if !cperrors.IsRetryable(err) {
		t.Error("upload failure should be retryable")
	}

	cursor, err := store.ArchiveCursor(ctx, catalog.EventKindQuery)
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if cursor != 0 {
		t.Errorf("cursor must not advance on failed upload, got %d", cursor)
	}
}
