package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrIdentifierNotFound is returned when a detail record references an
// identifier absent from the store.
var ErrIdentifierNotFound = errors.New("catalog: identifier not found")

// EventKind selects one of the three structurally identical event tables.
type EventKind string

const (
	EventKindQuery        EventKind = "query"
	EventKindTaskTemplate EventKind = "task_template"
	EventKindTaskResult   EventKind = "task_result"
)

// EventKinds returns all event kinds in a stable order.
func EventKinds() []EventKind {
	return []EventKind{EventKindQuery, EventKindTaskTemplate, EventKindTaskResult}
}

// Valid reports whether the kind maps to an event table.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindQuery, EventKindTaskTemplate, EventKindTaskResult:
		return true
	}
	return false
}

// tableName returns the SQL table backing this kind. Kinds are a closed set;
// the value is never interpolated from caller input.
func (k EventKind) tableName() string {
	switch k {
	case EventKindQuery:
		return "query_events"
	case EventKindTaskTemplate:
		return "task_template_events"
	case EventKindTaskResult:
		return "task_result_events"
	}
	return ""
}

// IdentifierRecord is one registered unit of compute capacity. All attribute
// fields are derived from decoding the identifier string; rows are immutable
// once written.
type IdentifierRecord struct {
	ID               int64
	Identifier       string
	City             string
	Industry         string
	Organization     int
	ResourceType     string
	Region           string
	AvailabilityZone string
	ServiceType      string
	ComputeTotal     int
	StorageTotal     int
	NetworkTotal     int
	CreatedAt        time.Time
}

// DetailRecord is a priced capacity offer tied to exactly one identifier.
type DetailRecord struct {
	ID                  int64
	IdentifierID        int64
	PowerConsumption    int
	CPUPerformance      int
	CPUAvailable        int
	GPUModel            string
	GPUPerformance      int
	GPUMemory           int
	GPUAvailable        string
	NetworkDelay        int
	NetworkPerformance  int
	NetworkIsIXP        bool
	NetworkIPs          string
	NetworkAvailable    string
	NetworkIPsAvailable string
	NetworkPorts        string
	Price               int
	CreatedAt           time.Time
}

// EventRecord is one append-only log entry.
type EventRecord struct {
	ID                int64
	Source            string
	SessionIdentifier string
	Payload           string
	CreatedAt         time.Time
}

// Store is the catalog persistence boundary consumed by the ingestion
// pipeline and the event capture log.
type Store interface {
	// InsertIdentifiers writes one batch of identifier records in a single
	// transaction using insert-if-absent semantics. The returned slice has
	// one entry per input record: true if the row was created, false if an
	// identifier with that string already existed (including race losers).
	InsertIdentifiers(ctx context.Context, records []*IdentifierRecord) ([]bool, error)

	// IdentifierExists reports whether an identifier string is registered.
	IdentifierExists(ctx context.Context, identifier string) (bool, error)

	// ResolveIdentifier returns the surrogate key for an identifier string,
	// or ErrIdentifierNotFound.
	ResolveIdentifier(ctx context.Context, identifier string) (int64, error)

	// GetIdentifier retrieves a full identifier record by its string.
	GetIdentifier(ctx context.Context, identifier string) (*IdentifierRecord, error)

	// InsertDetails writes one batch of detail records in a single
	// transaction. Every record must carry a resolved IdentifierID.
	InsertDetails(ctx context.Context, records []*DetailRecord) error

	// CountDetails returns the number of stored detail records.
	CountDetails(ctx context.Context) (int64, error)

	// AppendEvent appends a single immutable event row and returns its id.
	// A nil error means the row is durably committed.
	AppendEvent(ctx context.Context, kind EventKind, source, session, payload string) (int64, error)

	// Events returns up to limit events of the given kind, most recent
	// first.
	Events(ctx context.Context, kind EventKind, limit int) ([]EventRecord, error)

	// EventsAfter returns up to limit events with id greater than afterID,
	// oldest first. Used by the archiver to drain in insertion order.
	EventsAfter(ctx context.Context, kind EventKind, afterID int64, limit int) ([]EventRecord, error)

	// ArchiveCursor returns the highest event id already archived for the
	// kind, or zero if none.
	ArchiveCursor(ctx context.Context, kind EventKind) (int64, error)

	// SetArchiveCursor advances the archive cursor for the kind.
	SetArchiveCursor(ctx context.Context, kind EventKind, lastEventID int64) error

	// Close closes the database connections.
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)
}

// NewStore opens (or creates) the catalog database at dbPath.
func NewStore(dbPath string) (*SQLiteStore, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	// Initialize schema before the read-only connection touches the file.
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	store.readDB = readDB

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// InsertIdentifiers writes one batch in a single transaction. INSERT OR
// IGNORE leans on the UNIQUE constraint so a concurrent duplicate is a
// silent no-op rather than an error; RowsAffected distinguishes created
// rows from race losers.
func (s *SQLiteStore) InsertIdentifiers(ctx context.Context, records []*IdentifierRecord) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO identifiers (
			identifier, city, industry, organization, resource_type,
			region, availability_zone, service_type,
			compute_total, storage_total, network_total, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	created := make([]bool, len(records))
	for i, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.Identifier, rec.City, rec.Industry, rec.Organization, rec.ResourceType,
			rec.Region, rec.AvailabilityZone, rec.ServiceType,
			rec.ComputeTotal, rec.StorageTotal, rec.NetworkTotal, rec.CreatedAt.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to insert identifier %q: %w", rec.Identifier, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to read rows affected: %w", err)
		}
		created[i] = n > 0
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: failed to commit transaction: %w", err)
	}

	return created, nil
}

// IdentifierExists reports whether an identifier string is registered.
func (s *SQLiteStore) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	var one int
	err := s.readDB.QueryRowContext(ctx,
		"SELECT 1 FROM identifiers WHERE identifier = ?", identifier,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: failed to check identifier: %w", err)
	}
	return true, nil
}

// ResolveIdentifier returns the surrogate key for an identifier string.
func (s *SQLiteStore) ResolveIdentifier(ctx context.Context, identifier string) (int64, error) {
	var id int64
	err := s.readDB.QueryRowContext(ctx,
		"SELECT id FROM identifiers WHERE identifier = ?", identifier,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrIdentifierNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to resolve identifier: %w", err)
	}
	return id, nil
}

// GetIdentifier retrieves a full identifier record by its string.
func (s *SQLiteStore) GetIdentifier(ctx context.Context, identifier string) (*IdentifierRecord, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, identifier, city, industry, organization, resource_type,
			region, availability_zone, service_type,
			compute_total, storage_total, network_total, created_at
		FROM identifiers
		WHERE identifier = ?`, identifier)

	var rec IdentifierRecord
	var createdAtUnix int64
	err := row.Scan(
		&rec.ID, &rec.Identifier, &rec.City, &rec.Industry, &rec.Organization,
		&rec.ResourceType, &rec.Region, &rec.AvailabilityZone, &rec.ServiceType,
		&rec.ComputeTotal, &rec.StorageTotal, &rec.NetworkTotal, &createdAtUnix,
	)
	if err == sql.ErrNoRows {
		return nil, ErrIdentifierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to get identifier: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	return &rec, nil
}

// InsertDetails writes one batch of detail records in a single transaction.
func (s *SQLiteStore) InsertDetails(ctx context.Context, records []*DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resource_details (
			identifier_id, power_consumption, cpu_performance, cpu_available,
			gpu_model, gpu_performance, gpu_memory, gpu_available,
			network_delay, network_performance, network_isixp, network_ips,
			network_available, network_ips_available, network_ports,
			price, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.IdentifierID, rec.PowerConsumption, rec.CPUPerformance, rec.CPUAvailable,
			rec.GPUModel, rec.GPUPerformance, rec.GPUMemory, rec.GPUAvailable,
			rec.NetworkDelay, rec.NetworkPerformance, rec.NetworkIsIXP, rec.NetworkIPs,
			rec.NetworkAvailable, rec.NetworkIPsAvailable, rec.NetworkPorts,
			rec.Price, rec.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("catalog: failed to insert detail for identifier_id %d: %w", rec.IdentifierID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: failed to commit transaction: %w", err)
	}

	return nil
}

// CountDetails returns the number of stored detail records.
func (s *SQLiteStore) CountDetails(ctx context.Context) (int64, error) {
	var n int64
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM resource_details").Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: failed to count details: %w", err)
	}
	return n, nil
}

// AppendEvent appends a single immutable event row.
func (s *SQLiteStore) AppendEvent(ctx context.Context, kind EventKind, source, session, payload string) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("catalog: unknown event kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT INTO %s (source, session_identifier, payload, created_at)
		VALUES (?, ?, ?, ?)`, kind.tableName())

	res, err := s.db.ExecContext(ctx, query, source, session, payload, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to append %s event: %w", kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to read event id: %w", err)
	}
	return id, nil
}

// Events returns up to limit events of the given kind, most recent first.
func (s *SQLiteStore) Events(ctx context.Context, kind EventKind, limit int) ([]EventRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("catalog: unknown event kind %q", kind)
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, source, session_identifier, payload, created_at
		FROM %s ORDER BY id DESC LIMIT ?`, kind.tableName())

	return s.scanEvents(ctx, query, limit)
}

// EventsAfter returns up to limit events with id > afterID, oldest first.
func (s *SQLiteStore) EventsAfter(ctx context.Context, kind EventKind, afterID int64, limit int) ([]EventRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("catalog: unknown event kind %q", kind)
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, source, session_identifier, payload, created_at
		FROM %s WHERE id > ? ORDER BY id ASC LIMIT ?`, kind.tableName())

	return s.scanEvents(ctx, query, afterID, limit)
}

// scanEvents runs an event query and scans all rows.
func (s *SQLiteStore) scanEvents(ctx context.Context, query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var rec EventRecord
		var createdAtUnix int64
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.SessionIdentifier, &rec.Payload, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan event: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAtUnix, 0)
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: failed to iterate events: %w", err)
	}

	return events, nil
}

// ArchiveCursor returns the highest event id already archived for the kind.
func (s *SQLiteStore) ArchiveCursor(ctx context.Context, kind EventKind) (int64, error) {
	var id int64
	err := s.readDB.QueryRowContext(ctx,
		"SELECT last_event_id FROM archive_cursors WHERE kind = ?", string(kind),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to read archive cursor: %w", err)
	}
	return id, nil
}

// SetArchiveCursor advances the archive cursor for the kind.
func (s *SQLiteStore) SetArchiveCursor(ctx context.Context, kind EventKind, lastEventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_cursors (kind, last_event_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET last_event_id = excluded.last_event_id,
			updated_at = excluded.updated_at`,
		string(kind), lastEventID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("catalog: failed to set archive cursor: %w", err)
	}
	return nil
}

// Close closes the catalog database connections.
func (s *SQLiteStore) Close() error {
	if s.readDB != nil {
		s.readDB.Close()
	}
	return s.db.Close()
}
