package fleet

import (
	"context"
	"time"
)

// ServerPatch is a partial update of a server record. Nil fields are left
// untouched; the store bumps updated_at on every applied patch.
type ServerPatch struct {
	Status             *Status
	ProviderInstanceID *string
	PublicAddress      *string
	PrivateAddress     *string
	FailureReason      *string
}

// AuditEntry records a mutating operation against the fleet.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g. "server.created", "server.action.stop"
	Actor     string    `json:"actor"`  // owner id, or "sweeper" for reconciliation writes
	TargetID  string    `json:"target_id"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the persistence surface the controller and sweeper depend on.
// The SQLite implementation lives in pkg/stores.
type Store interface {
	// InsertServer persists a freshly created record.
	InsertServer(ctx context.Context, rec *ServerRecord) error

	// GetServer returns the record matching (ownerID, id), or an error
	// wrapping ErrNotFound.
	GetServer(ctx context.Context, ownerID, id string) (*ServerRecord, error)

	// ListServers returns all records owned by ownerID, newest first.
	ListServers(ctx context.Context, ownerID string) ([]*ServerRecord, error)

	// ListActiveServers returns every record with a provider instance id
	// and a non-terminal status, across all owners. Used by the sweeper.
	ListActiveServers(ctx context.Context) ([]*ServerRecord, error)

	// UpdateServer applies patch to the record with the given id.
	UpdateServer(ctx context.Context, id string, patch ServerPatch) error

	// CompareAndSwapStatus applies patch (which must set Status) only if
	// the stored status still equals from. It reports whether the swap
	// happened; a false result with nil error means the record changed
	// underneath the caller or no longer exists.
	CompareAndSwapStatus(ctx context.Context, id string, from Status, patch ServerPatch) (bool, error)

	// DeleteServer removes the record unconditionally.
	DeleteServer(ctx context.Context, id string) error

	// CountByStatus returns the number of records per status for an owner.
	// An empty ownerID counts across all owners.
	CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error)

	// AppendAudit records a mutating operation.
	AppendAudit(ctx context.Context, entry *AuditEntry) error
}
