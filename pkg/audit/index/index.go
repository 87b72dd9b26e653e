// Package index provides an optional Postgres-backed secondary index over
// the audit log (spec §4.2: "index-on-open permitted but not required").
// The JSONL log stays the source of truth; this index exists only to make
// Query sub-linear by correlation_id, actor, event_type, and time range.
package index

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Index wraps a pooled Postgres connection kept in sync with the audit
// log's Append calls.
type Index struct {
	db *sql.DB
}

// Open connects to dsn, runs pending embedded migrations, and returns a
// ready Index. dsn is any connection string libpq/pgx accepts (teacher's
// pkg/database/client.go shape, adapted from Ent to plain database/sql).
func Open(ctx context.Context, dsn string) (*Index, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit/index: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit/index: ping: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit/index: postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit/index: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "audit_index", driver)
	if err != nil {
		return fmt.Errorf("audit/index: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("audit/index: apply migrations: %w", err)
	}
	return sourceDriver.Close()
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Record mirrors one already-appended entry into the index. Called by
// audit.Log.Append once the JSONL write has succeeded; a Record failure
// never fails the append, since the JSONL log is the source of truth
// (spec §4.2).
func (idx *Index) Record(entry *models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("audit/index: marshal details: %w", err)
	}
	_, err = idx.db.Exec(
		`INSERT INTO audit_entries
			(seq, entry_id, ts, event_type, actor, action, resource, resource_id, correlation_id, details, entry_hash, chain_hash)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (seq) DO NOTHING`,
		entry.Seq, entry.EntryID, entry.Timestamp, entry.EventType, entry.Actor,
		entry.Action, entry.Resource, entry.ResourceID, entry.CorrelationID,
		details, entry.EntryHash, entry.ChainHash,
	)
	if err != nil {
		return fmt.Errorf("audit/index: insert: %w", err)
	}
	return nil
}

// Query runs filter against the indexed columns, returning matches in
// ascending seq order — the same contract as audit.Log.Query, but backed
// by indexed lookups instead of a linear JSONL scan.
func (idx *Index) Query(filter audit.Filter) ([]*models.AuditEntry, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CorrelationID != "" {
		add("correlation_id = $%d", filter.CorrelationID)
	}
	if filter.Actor != "" {
		add("actor = $%d", filter.Actor)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if !filter.From.IsZero() {
		add("ts >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("ts <= $%d", filter.To)
	}

	query := "SELECT seq, entry_id, ts, event_type, actor, action, resource, resource_id, correlation_id, details, entry_hash, chain_hash FROM audit_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit/index: query: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if err := rows.Scan(&e.Seq, &e.EntryID, &e.Timestamp, &e.EventType, &e.Actor,
			&e.Action, &e.Resource, &e.ResourceID, &e.CorrelationID, &details,
			&e.EntryHash, &e.ChainHash); err != nil {
			return nil, fmt.Errorf("audit/index: scan: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("audit/index: unmarshal details: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
