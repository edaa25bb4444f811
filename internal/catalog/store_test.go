package catalog

import (
	"context"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "catalog_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := NewStore(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testIdentifierRecord(identifier string) *IdentifierRecord {
	return &IdentifierRecord{
		Identifier:       identifier,
		City:             "1101",
		Industry:         "tc",
		Organization:     2004,
		ResourceType:     "01",
		Region:           "3301",
		AvailabilityZone: "502",
		ServiceType:      "01",
		ComputeTotal:     10,
		StorageTotal:     20,
		NetworkTotal:     30,
		CreatedAt:        time.Now(),
	}
}

func testDetailRecord(identifierID int64) *DetailRecord {
	return &DetailRecord{
		IdentifierID:        identifierID,
		PowerConsumption:    350,
		CPUPerformance:      100,
		CPUAvailable:        64,
		GPUModel:            "A100",
		GPUPerformance:      312,
		GPUMemory:           80,
		GPUAvailable:        "6/8",
		NetworkDelay:        3,
		NetworkPerformance:  100,
		NetworkIsIXP:        true,
		NetworkIPs:          "10.0.0.1,10.0.0.2",
		NetworkAvailable:    "80Gbps",
		NetworkIPsAvailable: "10.0.0.2",
		NetworkPorts:        "443,8443",
		Price:               1200,
		CreatedAt:           time.Now(),
	}
}

func TestStore_InsertIdentifiersIfAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.InsertIdentifiers(ctx, []*IdentifierRecord{
		testIdentifierRecord("1101tc200401330150201102030"),
		testIdentifierRecord("1201cp200502330250302152535"),
	})
	if err != nil {
		t.Fatalf("failed to insert identifiers: %v", err)
	}
	if !created[0] || !created[1] {
		t.Errorf("expected both rows created, got %v", created)
	}

	// Re-inserting the first identifier is a silent no-op.
	created, err = store.InsertIdentifiers(ctx, []*IdentifierRecord{
		testIdentifierRecord("1101tc200401330150201102030"),
		testIdentifierRecord("3101it200603440150301050505"),
	})
	if err != nil {
		t.Fatalf("failed to re-insert identifiers: %v", err)
	}
	if created[0] {
		t.Errorf("duplicate identifier should not be created again")
	}
	if !created[1] {
		t.Errorf("new identifier should be created")
	}

	rec, err := store.GetIdentifier(ctx, "1101tc200401330150201102030")
	if err != nil {
		t.Fatalf("failed to get identifier: %v", err)
	}
	if rec.City != "1101" || rec.Organization != 2004 || rec.NetworkTotal != 30 {
		t.Errorf("unexpected record contents: %+v", rec)
	}
}

func TestStore_ResolveIdentifier(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.ResolveIdentifier(ctx, "missing"); err != ErrIdentifierNotFound {
		t.Fatalf("expected ErrIdentifierNotFound, got %v", err)
	}

	if _, err := store.InsertIdentifiers(ctx, []*IdentifierRecord{
		testIdentifierRecord("1101tc200401330150201102030"),
	}); err != nil {
		t.Fatalf("failed to insert identifier: %v", err)
	}

	id, err := store.ResolveIdentifier(ctx, "1101tc200401330150201102030")
	if err != nil {
		t.Fatalf("failed to resolve identifier: %v", err)
	}
	if id == 0 {
		t.Errorf("expected non-zero surrogate key")
	}
}

func TestStore_InsertDetails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertIdentifiers(ctx, []*IdentifierRecord{
		testIdentifierRecord("1101tc200401330150201102030"),
	}); err != nil {
		t.Fatalf("failed to insert identifier: %v", err)
	}

	id, err := store.ResolveIdentifier(ctx, "1101tc200401330150201102030")
	if err != nil {
		t.Fatalf("failed to resolve identifier: %v", err)
	}

	if err := store.InsertDetails(ctx, []*DetailRecord{
		testDetailRecord(id),
		testDetailRecord(id),
	}); err != nil {
		t.Fatalf("failed to insert details: %v", err)
	}

	n, err := store.CountDetails(ctx)
	if err != nil {
		t.Fatalf("failed to count details: %v", err)
	}
	if n != 2 {
		t.Errorf("detail count mismatch: got %d, want 2", n)
	}
}

func TestStore_AppendAndReadEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.AppendEvent(ctx, EventKindQuery, "srcA", "sess1", `{"k":1}`)
	if err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	second, err := store.AppendEvent(ctx, EventKindQuery, "srcB", "sess2", `{"k":2}`)
	if err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	if second <= first {
		t.Errorf("event ids should be monotonic: %d then %d", first, second)
	}

	// Most recent first.
	events, err := store.Events(ctx, EventKindQuery, 10)
	if err != nil {
		t.Fatalf("failed to read events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("event count mismatch: got %d, want 2", len(events))
	}
	if events[0].Source != "srcB" || events[1].Source != "srcA" {
		t.Errorf("unexpected order: %s then %s", events[0].Source, events[1].Source)
	}
	if events[1].Payload != `{"k":1}` {
		t.Errorf("payload mismatch: got %s", events[1].Payload)
	}

	// Event tables are isolated from each other.
	templates, err := store.Events(ctx, EventKindTaskTemplate, 10)
	if err != nil {
		t.Fatalf("failed to read task template events: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("expected no task template events, got %d", len(templates))
	}
}

func TestStore_EventsAfter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := store.AppendEvent(ctx, EventKindTaskResult, "src", "sess", `{}`)
		if err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		ids = append(ids, id)
	}

	events, err := store.EventsAfter(ctx, EventKindTaskResult, ids[1], 10)
	if err != nil {
		t.Fatalf("failed to read events after cursor: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("event count mismatch: got %d, want 3", len(events))
	}
	// Oldest first for draining.
	if events[0].ID != ids[2] || events[2].ID != ids[4] {
		t.Errorf("unexpected drain order: %v", events)
	}
}

func TestStore_ArchiveCursor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.ArchiveCursor(ctx, EventKindQuery)
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if id != 0 {
		t.Errorf("fresh cursor should be zero, got %d", id)
	}

	if err := store.SetArchiveCursor(ctx, EventKindQuery, 42); err != nil {
		t.Fatalf("failed to set cursor: %v", err)
	}
	if err := store.SetArchiveCursor(ctx, EventKindQuery, 99); err != nil {
		t.Fatalf("failed to advance cursor: %v", err)
	}

	id, err = store.ArchiveCursor(ctx, EventKindQuery)
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if id != 99 {
		t.Errorf("cursor mismatch: got %d, want 99", id)
	}
}

func TestStore_UnknownEventKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.AppendEvent(ctx, EventKind("bogus"), "src", "sess", "{}"); err == nil {
		t.Errorf("expected error for unknown event kind")
	}
	if _, err := store.Events(ctx, EventKind("bogus"), 10); err == nil {
		t.Errorf("expected error for unknown event kind")
	}
}
