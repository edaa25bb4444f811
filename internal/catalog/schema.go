// Package catalog provides the SQLite-backed catalog store for registered
// identifiers, resource details, and the append-only event log.
package catalog

// Schema contains the SQL definitions for the catalog database (catalog.db).
// The catalog is the source of truth for all registered identifiers and their
// resource details; the three event tables share one structure.

// CreateIdentifiersTableSQL creates the identifiers table. The UNIQUE
// constraint on the identifier string is the authoritative guard against
// concurrent duplicate registration.
const CreateIdentifiersTableSQL = `
CREATE TABLE IF NOT EXISTS identifiers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier TEXT NOT NULL UNIQUE,
    city TEXT NOT NULL,
    industry TEXT NOT NULL,
    organization INTEGER NOT NULL,
    resource_type TEXT NOT NULL,
    region TEXT NOT NULL,
    availability_zone TEXT NOT NULL,
    service_type TEXT NOT NULL,
    compute_total INTEGER NOT NULL,
    storage_total INTEGER NOT NULL,
    network_total INTEGER NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateResourceDetailsTableSQL creates the resource details table. Details
// reference their owning identifier by surrogate key; the cascade only fires
// on manual cleanup since no delete path is exposed by the service.
const CreateResourceDetailsTableSQL = `
CREATE TABLE IF NOT EXISTS resource_details (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identifier_id INTEGER NOT NULL,
    power_consumption INTEGER NOT NULL,
    cpu_performance INTEGER NOT NULL,
    cpu_available INTEGER NOT NULL,
    gpu_model TEXT NOT NULL,
    gpu_performance INTEGER NOT NULL,
    gpu_memory INTEGER NOT NULL,
    gpu_available TEXT NOT NULL,
    network_delay INTEGER NOT NULL,
    network_performance INTEGER NOT NULL,
    network_isixp INTEGER NOT NULL,
    network_ips TEXT NOT NULL,
    network_available TEXT NOT NULL,
    network_ips_available TEXT NOT NULL,
    network_ports TEXT NOT NULL,
    price INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (identifier_id) REFERENCES identifiers(id) ON DELETE CASCADE
)`

// Event tables are structurally identical: write-once rows correlated by
// source and session, payload stored as serialized text and never parsed.

const CreateQueryEventsTableSQL = `
CREATE TABLE IF NOT EXISTS query_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    session_identifier TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

const CreateTaskTemplateEventsTableSQL = `
CREATE TABLE IF NOT EXISTS task_template_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    session_identifier TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

const CreateTaskResultEventsTableSQL = `
CREATE TABLE IF NOT EXISTS task_result_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    session_identifier TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateArchiveCursorsTableSQL creates the archiver progress table. One row
// per event kind records the highest event id already exported to object
// storage.
const CreateArchiveCursorsTableSQL = `
CREATE TABLE IF NOT EXISTS archive_cursors (
    kind TEXT PRIMARY KEY,
    last_event_id INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

// CreateIndexesSQL creates lookup indexes.
var CreateIndexesSQL = []string{
	// Index for FK resolution during detail ingestion
	`CREATE INDEX IF NOT EXISTS idx_details_identifier ON resource_details(identifier_id)`,

	// Indexes for session correlation on event read-back
	`CREATE INDEX IF NOT EXISTS idx_query_events_session ON query_events(session_identifier)`,
	`CREATE INDEX IF NOT EXISTS idx_task_template_events_session ON task_template_events(session_identifier)`,
	`CREATE INDEX IF NOT EXISTS idx_task_result_events_session ON task_result_events(session_identifier)`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateIdentifiersTableSQL,
		CreateResourceDetailsTableSQL,
		CreateQueryEventsTableSQL,
		CreateTaskTemplateEventsTableSQL,
		CreateTaskResultEventsTableSQL,
		CreateArchiveCursorsTableSQL,
	}
	statements = append(statements, CreateIndexesSQL...)
	return statements
}
