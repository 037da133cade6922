package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfleet/openfleet/pkg/fleet"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func testRecord(id, ownerID string) *fleet.ServerRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &fleet.ServerRecord{
		ID:           id,
		OwnerID:      ownerID,
		InstanceType: "standard",
		PlanType:     "standard",
		Status:       fleet.StatusProvisioning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s fleet.Status) *fleet.Status { return &s }

func TestInsertAndGetServer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("srv-1", "owner-1")
	if err := store.InsertServer(ctx, rec); err != nil {
		t.Fatalf("failed to insert server: %v", err)
	}

	got, err := store.GetServer(ctx, "owner-1", "srv-1")
	if err != nil {
		t.Fatalf("failed to get server: %v", err)
	}

	if got.ID != rec.ID {
		t.Errorf("expected ID %q, got %q", rec.ID, got.ID)
	}
	if got.Status != fleet.StatusProvisioning {
		t.Errorf("expected status %q, got %q", fleet.StatusProvisioning, got.Status)
	}
	if got.InstanceType != "standard" {
		t.Errorf("expected instance type %q, got %q", "standard", got.InstanceType)
	}
}

func TestGetServerOwnerScoping(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.InsertServer(ctx, testRecord("srv-1", "owner-1")); err != nil {
		t.Fatalf("failed to insert server: %v", err)
	}

	_, err := store.GetServer(ctx, "owner-2", "srv-1")
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong owner, got %v", err)
	}
}

func TestGetServerNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetServer(context.Background(), "owner-1", "missing")
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListServersOrdering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	older := testRecord("srv-old", "owner-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := testRecord("srv-new", "owner-1")
	other := testRecord("srv-other", "owner-2")

	for _, rec := range []*fleet.ServerRecord{older, newer, other} {
		if err := store.InsertServer(ctx, rec); err != nil {
			t.Fatalf("failed to insert server: %v", err)
		}
	}

	servers, err := store.ListServers(ctx, "owner-1")
	if err != nil {
		t.Fatalf("failed to list servers: %v", err)
	}

	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].ID != "srv-new" || servers[1].ID != "srv-old" {
		t.Errorf("expected newest-first ordering, got %q then %q", servers[0].ID, servers[1].ID)
	}
}

func TestListActiveServersFiltering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	active := testRecord("srv-active", "owner-1")
	active.ProviderInstanceID = "100"
	active.Status = fleet.StatusRunning

	unprovisioned := testRecord("srv-unprov", "owner-1")

	terminated := testRecord("srv-dead", "owner-2")
	terminated.ProviderInstanceID = "101"
	terminated.Status = fleet.StatusTerminated

	failed := testRecord("srv-failed", "owner-2")
	failed.ProviderInstanceID = "102"
	failed.Status = fleet.StatusFailed

	for _, rec := range []*fleet.ServerRecord{active, unprovisioned, terminated, failed} {
		if err := store.InsertServer(ctx, rec); err != nil {
			t.Fatalf("failed to insert server: %v", err)
		}
	}

	servers, err := store.ListActiveServers(ctx)
	if err != nil {
		t.Fatalf("failed to list active servers: %v", err)
	}

	if len(servers) != 1 {
		t.Fatalf("expected 1 active server, got %d", len(servers))
	}
	if servers[0].ID != "srv-active" {
		t.Errorf("expected srv-active, got %q", servers[0].ID)
	}
}

func TestUpdateServerPatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("srv-1", "owner-1")
	if err := store.InsertServer(ctx, rec); err != nil {
		t.Fatalf("failed to insert server: %v", err)
	}

	patch := fleet.ServerPatch{
		Status:             statusPtr(fleet.StatusPending),
		ProviderInstanceID: strPtr("200"),
		PublicAddress:      strPtr("203.0.113.10"),
	}
	if err := store.UpdateServer(ctx, "srv-1", patch); err != nil {
		t.Fatalf("failed to update server: %v", err)
	}

	got, err := store.GetServer(ctx, "owner-1", "srv-1")
	if err != nil {
		t.Fatalf("failed to get server: %v", err)
	}

	if got.Status != fleet.StatusPending {
		t.Errorf("expected status pending, got %q", got.Status)
	}
	if got.ProviderInstanceID != "200" {
		t.Errorf("expected provider instance id 200, got %q", got.ProviderInstanceID)
	}
	if got.PublicAddress != "203.0.113.10" {
		t.Errorf("expected public address to be set, got %q", got.PublicAddress)
	}
	// Unpatched fields stay put.
	if got.InstanceType != "standard" {
		t.Errorf("expected instance type untouched, got %q", got.InstanceType)
	}
	if !got.UpdatedAt.After(rec.UpdatedAt) {
		t.Errorf("expected updated_at to advance past %v, got %v", rec.UpdatedAt, got.UpdatedAt)
	}
}

func TestUpdateServerNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateServer(context.Background(), "missing", fleet.ServerPatch{
		Status: statusPtr(fleet.StatusRunning),
	})
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareAndSwapStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("srv-1", "owner-1")
	rec.Status = fleet.StatusRunning
	if err := store.InsertServer(ctx, rec); err != nil {
		t.Fatalf("failed to insert server: %v", err)
	}

	swapped, err := store.CompareAndSwapStatus(ctx, "srv-1", fleet.StatusRunning, fleet.ServerPatch{
		Status: statusPtr(fleet.StatusStopping),
	})
	if err != nil {
		t.Fatalf("failed to swap status: %v", err)
	}
	if !swapped {
		t.Fatal("expected swap from running to succeed")
	}

	// A second swap from the old status must lose.
	swapped, err = store.CompareAndSwapStatus(ctx, "srv-1", fleet.StatusRunning, fleet.ServerPatch{
		Status: statusPtr(fleet.StatusRebooting),
	})
	if err != nil {
		t.Fatalf("failed to attempt second swap: %v", err)
	}
	if swapped {
		t.Fatal("expected swap from stale status to fail")
	}

	got, err := store.GetServer(ctx, "owner-1", "srv-1")
	if err != nil {
		t.Fatalf("failed to get server: %v", err)
	}
	if got.Status != fleet.StatusStopping {
		t.Errorf("expected status stopping, got %q", got.Status)
	}
}

func TestCompareAndSwapRequiresStatus(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.CompareAndSwapStatus(context.Background(), "srv-1", fleet.StatusRunning, fleet.ServerPatch{
		PublicAddress: strPtr("203.0.113.10"),
	})
	if err == nil {
		t.Fatal("expected error for patch without status")
	}
}

func TestDeleteServerIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.InsertServer(ctx, testRecord("srv-1", "owner-1")); err != nil {
		t.Fatalf("failed to insert server: %v", err)
	}

	if err := store.DeleteServer(ctx, "srv-1"); err != nil {
		t.Fatalf("failed to delete server: %v", err)
	}

	// Deleting again is a no-op.
	if err := store.DeleteServer(ctx, "srv-1"); err != nil {
		t.Fatalf("expected repeat delete to succeed, got %v", err)
	}

	_, err := store.GetServer(ctx, "owner-1", "srv-1")
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAppendAndListAudit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	entries := []*fleet.AuditEntry{
		{Action: "server.created", Actor: "owner-1", TargetID: "srv-1", Timestamp: base.Add(-2 * time.Minute)},
		{Action: "server.action.stop", Actor: "owner-1", TargetID: "srv-1", Timestamp: base.Add(-time.Minute)},
		{Action: "server.deleted", Actor: "owner-1", TargetID: "srv-1", Timestamp: base},
	}

	for _, entry := range entries {
		if err := store.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("failed to append audit entry: %v", err)
		}
		if entry.ID == 0 {
			t.Error("expected audit entry ID to be assigned")
		}
	}

	got, err := store.ListAuditEntries(ctx, 2, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "server.deleted" {
		t.Errorf("expected newest entry first, got %q", got[0].Action)
	}
}

func TestCountByStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	running := testRecord("srv-1", "owner-1")
	running.Status = fleet.StatusRunning
	stopped := testRecord("srv-2", "owner-1")
	stopped.Status = fleet.StatusStopped
	other := testRecord("srv-3", "owner-2")
	other.Status = fleet.StatusRunning

	for _, rec := range []*fleet.ServerRecord{running, stopped, other} {
		if err := store.InsertServer(ctx, rec); err != nil {
			t.Fatalf("failed to insert server: %v", err)
		}
	}

	counts, err := store.CountByStatus(ctx, "owner-1")
	if err != nil {
		t.Fatalf("failed to count by status: %v", err)
	}

	if counts[fleet.StatusRunning] != 1 || counts[fleet.StatusStopped] != 1 {
		t.Errorf("unexpected owner counts: %v", counts)
	}

	all, err := store.CountByStatus(ctx, "")
	if err != nil {
		t.Fatalf("failed to count all: %v", err)
	}
	if all[fleet.StatusRunning] != 2 {
		t.Errorf("expected 2 running across owners, got %d", all[fleet.StatusRunning])
	}
}
