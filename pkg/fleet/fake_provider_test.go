package fleet_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/openfleet/openfleet/pkg/fleet"
	"github.com/openfleet/openfleet/pkg/provider"
	"github.com/openfleet/openfleet/pkg/stores"
)

// fakeProvider is an in-memory provider.Client. Created instances come up
// as running on the next describe unless holdBoot is set.
type fakeProvider struct {
	mu        sync.Mutex
	nextID    int64
	instances map[string]*fakeInstance

	holdBoot bool

	createErr      error
	actionErr      error
	terminateErr   error
	describeErr    error
	describeErrFor map[string]error

	createCalls    int
	terminateCalls int
}

type fakeInstance struct {
	state   provider.InstanceState
	public  string
	private string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		instances:      make(map[string]*fakeInstance),
		describeErrFor: make(map[string]error),
	}
}

// addInstance seeds an instance directly, for records inserted via the
// store rather than through the controller.
func (f *fakeProvider) addInstance(id string, state provider.InstanceState, public string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[id] = &fakeInstance{state: state, public: public, private: "10.0.0.9"}
}

func (f *fakeProvider) removeInstance(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
}

func (f *fakeProvider) setState(id string, state provider.InstanceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.instances[id]; ok {
		inst.state = state
	}
}

func (f *fakeProvider) Create(_ context.Context, _ provider.CreateSpec) (*provider.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.nextID++
	id := strconv.FormatInt(f.nextID, 10)

	state := provider.StateRunning
	if f.holdBoot {
		state = provider.StatePending
	}
	f.instances[id] = &fakeInstance{
		state:   state,
		public:  "203.0.113." + id,
		private: "10.0.0." + id,
	}

	return &provider.CreateResult{
		InstanceID:     id,
		State:          provider.StatePending,
		PrivateAddress: "10.0.0." + id,
	}, nil
}

func (f *fakeProvider) Describe(_ context.Context, instanceID string) (*provider.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if err, ok := f.describeErrFor[instanceID]; ok {
		return nil, err
	}

	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, "describe", instanceID,
			fmt.Errorf("no such instance"))
	}

	return &provider.Instance{
		ID:             instanceID,
		State:          inst.state,
		PublicAddress:  inst.public,
		PrivateAddress: inst.private,
		ServerType:     "cpx21",
		LaunchTime:     time.Now(),
		Zone:           "nbg1-dc3",
	}, nil
}

func (f *fakeProvider) DescribeHealth(ctx context.Context, instanceID string) (*provider.Health, error) {
	inst, err := f.Describe(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &provider.Health{
		State:        inst.State,
		ChecksPassed: inst.State == provider.StateRunning,
	}, nil
}

func (f *fakeProvider) Start(_ context.Context, instanceID string) (*provider.ActionResult, error) {
	return f.applyAction(instanceID, "start", provider.StateRunning, provider.StateStarting)
}

func (f *fakeProvider) Stop(_ context.Context, instanceID string) (*provider.ActionResult, error) {
	return f.applyAction(instanceID, "stop", provider.StateStopped, provider.StateStopping)
}

func (f *fakeProvider) Reboot(_ context.Context, instanceID string) (*provider.ActionResult, error) {
	return f.applyAction(instanceID, "reboot", provider.StateRunning, provider.StateRebooting)
}

// applyAction settles the instance into its end state immediately; the
// transitional state is only reported back, matching how the real API
// acknowledges commands.
func (f *fakeProvider) applyAction(instanceID, op string, end, transitional provider.InstanceState) (*provider.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.actionErr != nil {
		return nil, f.actionErr
	}

	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, provider.NewError(provider.KindNotFound, op, instanceID,
			fmt.Errorf("no such instance"))
	}

	inst.state = end
	return &provider.ActionResult{State: transitional}, nil
}

func (f *fakeProvider) Terminate(_ context.Context, instanceID string) (*provider.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.terminateCalls++
	if f.terminateErr != nil {
		return nil, f.terminateErr
	}

	delete(f.instances, instanceID)
	return &provider.ActionResult{State: provider.StateTerminating}, nil
}

var _ provider.Client = (*fakeProvider)(nil)

func newTestStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
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

func newTestController(t *testing.T, store *stores.SQLiteStore, fp *fakeProvider) *fleet.Controller {
	t.Helper()

	ctrl, err := fleet.NewController(fleet.ControllerOptions{
		Store:                 store,
		Provider:              fp,
		Catalog:               fleet.DefaultCatalog(),
		Location:              "nbg1",
		Image:                 "ubuntu-24.04",
		ProviderTimeout:       2 * time.Second,
		ProvisionPollInterval: 5 * time.Millisecond,
		ProvisionTimeout:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	return ctrl
}

// insertRecord seeds a provisioned record in the store and its backing
// instance in the fake provider.
func insertRecord(t *testing.T, store *stores.SQLiteStore, fp *fakeProvider, id, ownerID string, status fleet.Status, state provider.InstanceState) *fleet.ServerRecord {
	t.Helper()

	now := time.Now().UTC()
	rec := &fleet.ServerRecord{
		ID:                 id,
		OwnerID:            ownerID,
		InstanceType:       "standard",
		PlanType:           "standard",
		ProviderInstanceID: "i-" + id,
		Status:             status,
		PublicAddress:      "203.0.113.50",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := store.InsertServer(context.Background(), rec); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}

	if fp != nil {
		fp.addInstance(rec.ProviderInstanceID, state, rec.PublicAddress)
	}

	return rec
}
