package eventlog

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/cpcatalog/cpcatalog/internal/catalog"
	cperrors "github.com/cpcatalog/cpcatalog/internal/errors"
)

func newTestLog(t *testing.T) (*Log, *catalog.SQLiteStore) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "eventlog_test_*.db")
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

	return New(store), store
}

func TestAppend_RecordsVerbatim(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	id, err := log.Append(ctx, catalog.EventKindQuery, "srcA", "sess1",
		map[string]interface{}{"k": 1})
	if err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if id == 0 {
		t.Errorf("expected non-zero event id")
	}

	events, err := log.Events(ctx, catalog.EventKindQuery, 10)
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("event count mismatch: got %d, want 1", len(events))
	}
	if events[0].Payload != `{"k":1}` {
		t.Errorf("payload mismatch: got %s", events[0].Payload)
	}
	if events[0].Source != "srcA" || events[0].SessionIdentifier != "sess1" {
		t.Errorf("envelope mismatch: %+v", events[0])
	}
}

func TestAppend_CanonicalSerialization(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()

	// Nested documents keep sorted key order in the stored form.
	payload := map[string]interface{}{
		"zeta":  []interface{}{1, "two", nil},
		"alpha": map[string]interface{}{"b": true, "a": 0.5},
	}
	if _, err := log.Append(ctx, catalog.EventKindTaskTemplate, "src", "sess", payload); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	events, err := log.Events(ctx, catalog.EventKindTaskTemplate, 1)
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	want := `{"alpha":{"a":0.5,"b":true},"zeta":[1,"two",null]}`
	if events[0].Payload != want {
		t.Errorf("canonical form mismatch:\n got %s\nwant %s", events[0].Payload, want)
	}
}

func TestAppend_Validation(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()
	payload := map[string]interface{}{"k": 1}

	tests := []struct {
		name    string
		kind    catalog.EventKind
		source  string
		session string
		payload map[string]interface{}
	}{
		{"unknown kind", catalog.EventKind("bogus"), "src", "sess", payload},
		{"empty source", catalog.EventKindQuery, "", "sess", payload},
		{"empty session", catalog.EventKindQuery, "src", "", payload},
		{"oversized source", catalog.EventKindQuery, strings.Repeat("s", 256), "sess", payload},
		{"nil payload", catalog.EventKindQuery, "src", "sess", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := log.Append(ctx, tt.kind, tt.source, tt.session, tt.payload)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if cperrors.GetCategory(err) != cperrors.ErrCategoryValidation {
				t.Errorf("expected validation category, got %s", cperrors.GetCategory(err))
			}
		})
	}
}

func TestAppend_UnserializablePayload(t *testing.T) {
	log, _ := newTestLog(t)

	_, err := log.Append(context.Background(), catalog.EventKindTaskResult, "src", "sess",
		map[string]interface{}{"fn": func() {}})
	if err == nil {
		t.Fatal("expected serialization error")
	}
	if cperrors.GetCode(err) != cperrors.CodeInvalidArgument {
		t.Errorf("code mismatch: got %s", cperrors.GetCode(err))
	}
}

func TestAppend_KindsAreIsolated(t *testing.T) {
	log, _ := newTestLog(t)
	ctx := context.Background()
	payload := map[string]interface{}{"k": 1}

	kinds := []catalog.EventKind{
		catalog.EventKindQuery,
		catalog.EventKindTaskTemplate,
		catalog.EventKindTaskResult,
	}
	for _, kind := range kinds {
		if _, err := log.Append(ctx, kind, "src-"+string(kind), "sess", payload); err != nil {
			t.Fatalf("failed to append %s event: %v", kind, err)
		}
	}

	for _, kind := range kinds {
		events, err := log.Events(ctx, kind, 10)
		if err != nil {
			t.Fatalf("failed to read %s events: %v", kind, err)
		}
		if len(events) != 1 {
			t.Fatalf("%s event count mismatch: got %d, want 1", kind, len(events))
		}
		if events[0].Source != "src-"+string(kind) {
			t.Errorf("%s source mismatch: %s", kind, events[0].Source)
		}
	}
}
