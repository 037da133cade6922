package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfleet/openfleet/pkg/fleet"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the fleet.Store interface using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ fleet.Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if s.cfg.Path == ":memory:" {
		// Each pooled connection would otherwise open its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
		db.SetMaxIdleConns(s.cfg.MaxIdleConns)
		db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// serverColumns is the canonical column list for server scans.
const serverColumns = `id, owner_id, instance_type, plan_type, provider_instance_id,
	status, private_address, public_address, failure_reason, created_at, updated_at`

func scanServer(row interface{ Scan(...any) error }) (*fleet.ServerRecord, error) {
	rec := &fleet.ServerRecord{}
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.InstanceType,
		&rec.PlanType,
		&rec.ProviderInstanceID,
		&status,
		&rec.PrivateAddress,
		&rec.PublicAddress,
		&rec.FailureReason,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = fleet.Status(status)
	return rec, nil
}

// InsertServer persists a freshly created record.
func (s *SQLiteStore) InsertServer(ctx context.Context, rec *fleet.ServerRecord) error {
	query := `
		INSERT INTO servers (` + serverColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.InstanceType,
		rec.PlanType,
		rec.ProviderInstanceID,
		string(rec.Status),
		rec.PrivateAddress,
		rec.PublicAddress,
		rec.FailureReason,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert server: %w", err)
	}

	return nil
}

// GetServer retrieves a record scoped to its owner.
func (s *SQLiteStore) GetServer(ctx context.Context, ownerID, id string) (*fleet.ServerRecord, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE id = ? AND owner_id = ?`

	rec, err := scanServer(s.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", fleet.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	return rec, nil
}

// ListServers returns all records for an owner, newest first.
func (s *SQLiteStore) ListServers(ctx context.Context, ownerID string) ([]*fleet.ServerRecord, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE owner_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	return collectServers(rows)
}

// ListActiveServers returns every record with a provider instance id and a
// non-terminal status, across all owners.
func (s *SQLiteStore) ListActiveServers(ctx context.Context) ([]*fleet.ServerRecord, error) {
	query := `
		SELECT ` + serverColumns + `
		FROM servers
		WHERE provider_instance_id != ''
		  AND status NOT IN (?, ?)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(fleet.StatusTerminated), string(fleet.StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list active servers: %w", err)
	}
	defer rows.Close()

	return collectServers(rows)
}

func collectServers(rows *sql.Rows) ([]*fleet.ServerRecord, error) {
	servers := []*fleet.ServerRecord{}
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating servers: %w", err)
	}

	return servers, nil
}

// patchClauses builds the SET clause fragments for a partial update.
// updated_at is always bumped.
func patchClauses(patch fleet.ServerPatch) ([]string, []any) {
	clauses := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.ProviderInstanceID != nil {
		clauses = append(clauses, "provider_instance_id = ?")
		args = append(args, *patch.ProviderInstanceID)
	}
	if patch.PublicAddress != nil {
		clauses = append(clauses, "public_address = ?")
		args = append(args, *patch.PublicAddress)
	}
	if patch.PrivateAddress != nil {
		clauses = append(clauses, "private_address = ?")
		args = append(args, *patch.PrivateAddress)
	}
	if patch.FailureReason != nil {
		clauses = append(clauses, "failure_reason = ?")
		args = append(args, *patch.FailureReason)
	}

	return clauses, args
}

// UpdateServer applies a partial update to a record.
func (s *SQLiteStore) UpdateServer(ctx context.Context, id string, patch fleet.ServerPatch) error {
	clauses, args := patchClauses(patch)
	query := "UPDATE servers SET " + strings.Join(clauses, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", fleet.ErrNotFound, id)
	}

	return nil
}

// CompareAndSwapStatus applies patch only if the stored status still equals
// from. It reports whether the swap happened.
func (s *SQLiteStore) CompareAndSwapStatus(ctx context.Context, id string, from fleet.Status, patch fleet.ServerPatch) (bool, error) {
	if patch.Status == nil {
		return false, fmt.Errorf("compare-and-swap requires a target status")
	}

	clauses, args := patchClauses(patch)
	query := "UPDATE servers SET " + strings.Join(clauses, ", ") + " WHERE id = ? AND status = ?"
	args = append(args, id, string(from))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to swap server status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// DeleteServer removes a record. Deleting an already-removed record is a
// no-op, matching the best-effort delete semantics of the controller.
func (s *SQLiteStore) DeleteServer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

// AppendAudit appends a new audit entry.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *fleet.AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.Timestamp.UTC(),
	)

	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries, newest first, with pagination.
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, limit, offset int) ([]*fleet.AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, timestamp
		FROM audit
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*fleet.AuditEntry{}
	for rows.Next() {
		entry := &fleet.AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// CountByStatus returns the number of records per status for an owner.
// An empty ownerID counts across all owners.
func (s *SQLiteStore) CountByStatus(ctx context.Context, ownerID string) (map[fleet.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM servers WHERE (? = '' OR owner_id = ?) GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count servers: %w", err)
	}
	defer rows.Close()

	counts := make(map[fleet.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[fleet.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
