package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfleet/openfleet/pkg/provider"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// EventSink receives lifecycle events. The NATS publisher in pkg/events
// implements it; a no-op sink is used when eventing is disabled.
type EventSink interface {
	ServerCreated(rec *ServerRecord)
	ServerStatusChanged(rec *ServerRecord, status Status, detail string)
	ServerDeleted(rec *ServerRecord)
	DriftCorrected(recordID string, status Status, detail string)
}

// nopSink drops all events.
type nopSink struct{}

func (nopSink) ServerCreated(*ServerRecord)                       {}
func (nopSink) ServerStatusChanged(*ServerRecord, Status, string) {}
func (nopSink) ServerDeleted(*ServerRecord)                       {}
func (nopSink) DriftCorrected(string, Status, string)             {}

// ControllerOptions configures a Controller. Store, Provider, and Catalog
// are required; everything else has working defaults.
type ControllerOptions struct {
	Store    Store
	Provider provider.Client
	Catalog  *Catalog

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Events  EventSink

	// Location and Image are passed through to provider create calls.
	Location string
	Image    string

	// ProviderTimeout bounds every provider call. Default 30s.
	ProviderTimeout time.Duration

	// ProvisionPollInterval and ProvisionTimeout control how the async
	// create tail polls for the instance to come up.
	ProvisionPollInterval time.Duration
	ProvisionTimeout      time.Duration
}

// Controller owns the server lifecycle: create, control actions, delete,
// and the read path. All mutating operations on one record are serialized
// through a per-record lock, and every status write is a compare-and-swap
// against the status the decision was made on.
type Controller struct {
	store    Store
	provider provider.Client
	catalog  *Catalog

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  EventSink

	location string
	image    string

	providerTimeout time.Duration
	pollInterval    time.Duration
	provisionWindow time.Duration

	locks     recordLocks
	projector *Projector

	wg sync.WaitGroup
}

// NewController creates a lifecycle controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Store == nil || opts.Provider == nil || opts.Catalog == nil {
		return nil, fmt.Errorf("store, provider, and catalog are required")
	}

	if opts.Logger == nil {
		opts.Logger = telemetry.NopLogger()
	}
	if opts.Metrics == nil {
		m, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
		if err != nil {
			return nil, err
		}
		opts.Metrics = m
	}
	if opts.Tracer == nil {
		t, err := telemetry.NewTracer(telemetry.TracingConfig{}, "openfleet", "", "")
		if err != nil {
			return nil, err
		}
		opts.Tracer = t
	}
	if opts.Events == nil {
		opts.Events = nopSink{}
	}
	if opts.ProviderTimeout == 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.ProvisionPollInterval == 0 {
		opts.ProvisionPollInterval = 10 * time.Second
	}
	if opts.ProvisionTimeout == 0 {
		opts.ProvisionTimeout = 10 * time.Minute
	}

	c := &Controller{
		store:           opts.Store,
		provider:        opts.Provider,
		catalog:         opts.Catalog,
		logger:          opts.Logger.NewComponentLogger("controller"),
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
		events:          opts.Events,
		location:        opts.Location,
		image:           opts.Image,
		providerTimeout: opts.ProviderTimeout,
		pollInterval:    opts.ProvisionPollInterval,
		provisionWindow: opts.ProvisionTimeout,
	}
	c.projector = &Projector{
		provider: opts.Provider,
		logger:   opts.Logger.NewComponentLogger("projector"),
		metrics:  opts.Metrics,
		timeout:  opts.ProviderTimeout,
	}

	return c, nil
}

// CreateServer creates a new server record and starts provisioning it.
// The record is returned immediately in status provisioning; the provider
// create call runs asynchronously and resolves the record to a live status
// or to failed. An empty planType defaults to the instance type name.
func (c *Controller) CreateServer(ctx context.Context, ownerID, instanceType, planType string) (*ServerRecord, error) {
	spec, ok := c.catalog.Lookup(instanceType)
	if !ok {
		// The raw type string is user input; the label set must stay bounded.
		c.metrics.RecordServerCreated("unknown", "rejected")
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstanceType, instanceType)
	}

	if planType == "" {
		planType = spec.Name
	}

	now := time.Now().UTC()
	rec := &ServerRecord{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		InstanceType: spec.Name,
		PlanType:     planType,
		Status:       StatusProvisioning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.store.InsertServer(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist server record: %w", err)
	}

	c.audit(ctx, "server.created", ownerID, rec.ID, spec.Name)
	c.events.ServerCreated(rec)
	c.metrics.RecordServerCreated(spec.Name, "accepted")
	c.logger.WithRecordID(rec.ID).WithOwnerID(ownerID).
		WithField("instance_type", spec.Name).Info("server create accepted")

	c.wg.Add(1)
	go c.provision(rec.Clone(), spec)

	return rec, nil
}

// provision is the async create tail. It runs detached from the request
// context and always leaves the record in a provider-backed status or in
// failed.
func (c *Controller) provision(rec *ServerRecord, spec InstanceSpec) {
	defer c.wg.Done()

	ctx := context.Background()
	logger := c.logger.WithRecordID(rec.ID)

	userData, err := RenderBootstrap(BootstrapParams{
		OwnerID:  rec.OwnerID,
		RecordID: rec.ID,
		PlanType: rec.PlanType,
	})
	if err != nil {
		c.failProvision(ctx, rec, spec, StatusProvisioning, fmt.Sprintf("bootstrap render failed: %v", err))
		return
	}

	createSpec := provider.CreateSpec{
		Name:       "srv-" + rec.ID,
		ServerType: spec.ProviderType,
		Image:      c.image,
		Location:   c.location,
		Bootstrap:  userData,
		Labels: map[string]string{
			"managed-by": "openfleet",
			"owner":      rec.OwnerID,
			"record":     rec.ID,
		},
	}

	var result *provider.CreateResult
	err = c.callProvider(ctx, "create", "", func(ctx context.Context) error {
		var callErr error
		result, callErr = c.provider.Create(ctx, createSpec)
		return callErr
	})
	if err != nil {
		logger.WithError(err).Error("provider create failed")
		c.failProvision(ctx, rec, spec, StatusProvisioning, err.Error())
		return
	}

	status, ok := FromInstanceState(result.State)
	if !ok {
		status = StatusPending
	}

	patch := ServerPatch{
		Status:             &status,
		ProviderInstanceID: &result.InstanceID,
	}
	if result.PrivateAddress != "" {
		patch.PrivateAddress = &result.PrivateAddress
	}

	swapped, err := c.store.CompareAndSwapStatus(ctx, rec.ID, StatusProvisioning, patch)
	if err != nil {
		logger.WithError(err).Error("failed to persist provider instance")
		return
	}
	if !swapped {
		// The record was deleted while the create call was in flight.
		// Tear the orphan instance down.
		logger.WithInstanceID(result.InstanceID).Warn("record gone after provisioning, terminating orphan")
		_ = c.callProvider(ctx, "terminate", result.InstanceID, func(ctx context.Context) error {
			_, callErr := c.provider.Terminate(ctx, result.InstanceID)
			return callErr
		})
		return
	}

	rec.Status = status
	rec.ProviderInstanceID = result.InstanceID
	c.events.ServerStatusChanged(rec, status, "provider accepted create")
	logger.WithInstanceID(result.InstanceID).Info("provider accepted create")

	c.waitForRunning(ctx, rec, spec, status)
}

// waitForRunning polls the provider until the fresh instance reports
// running, then settles the record. On poll timeout the record is left in
// its transitional status for the sweeper to converge.
func (c *Controller) waitForRunning(ctx context.Context, rec *ServerRecord, spec InstanceSpec, current Status) {
	logger := c.logger.WithRecordID(rec.ID).WithInstanceID(rec.ProviderInstanceID)

	deadline := time.Now().Add(c.provisionWindow)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		<-ticker.C

		var inst *provider.Instance
		err := c.callProvider(ctx, "describe", rec.ProviderInstanceID, func(ctx context.Context) error {
			var callErr error
			inst, callErr = c.provider.Describe(ctx, rec.ProviderInstanceID)
			return callErr
		})
		if provider.IsNotFound(err) {
			c.failProvision(ctx, rec, spec, current, "instance disappeared during provisioning")
			return
		}
		if err != nil {
			logger.WithError(err).Warn("describe failed while provisioning, will retry")
			continue
		}

		if inst.State != provider.StateRunning {
			continue
		}

		running := StatusRunning
		patch := ServerPatch{Status: &running}
		if inst.PublicAddress != "" {
			patch.PublicAddress = &inst.PublicAddress
		}
		if inst.PrivateAddress != "" {
			patch.PrivateAddress = &inst.PrivateAddress
		}

		swapped, err := c.store.CompareAndSwapStatus(ctx, rec.ID, current, patch)
		if err != nil {
			logger.WithError(err).Error("failed to mark server running")
			return
		}
		if swapped {
			rec.Status = running
			c.events.ServerStatusChanged(rec, running, "instance came up")
			c.metrics.RecordServerCreated(spec.Name, "provisioned")
			logger.Info("server is running")
		}
		// If the swap lost, another writer (user action or sweeper)
		// owns the record now.
		return
	}

	logger.Warn("instance did not reach running before the provisioning window closed")
}

// failProvision moves a record from its current provisioning-path status
// to failed, preserving the reason for user display. The swap is against
// from, which is provisioning before the create call resolves and the
// provider-reported status afterwards.
func (c *Controller) failProvision(ctx context.Context, rec *ServerRecord, spec InstanceSpec, from Status, reason string) {
	failed := StatusFailed
	swapped, err := c.store.CompareAndSwapStatus(ctx, rec.ID, from, ServerPatch{
		Status:        &failed,
		FailureReason: &reason,
	})
	if err != nil {
		c.logger.WithRecordID(rec.ID).WithError(err).Error("failed to mark server failed")
		return
	}
	if !swapped {
		return
	}

	rec.Status = failed
	rec.FailureReason = reason
	c.audit(ctx, "server.failed", "system", rec.ID, reason)
	c.events.ServerStatusChanged(rec, failed, reason)
	c.metrics.RecordServerCreated(spec.Name, "failed")
}

// ApplyAction applies a start, stop, or reboot to a server. The action is
// validated against the transition table before the provider is called;
// nothing is written unless the provider accepts the command.
func (c *Controller) ApplyAction(ctx context.Context, ownerID, id string, action Action) (*ServerRecord, error) {
	c.locks.lock(id)
	defer c.locks.unlock(id)

	rec, err := c.store.GetServer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if rec.ProviderInstanceID == "" {
		c.metrics.RecordActionApplied(string(action), "rejected")
		return nil, fmt.Errorf("%w: %s", ErrNotProvisioned, id)
	}

	if satisfiedAlready(rec.Status, action) {
		c.metrics.RecordActionApplied(string(action), "noop")
		c.logger.WithRecordID(id).WithField("action", string(action)).
			Debug("action already satisfied")
		return rec.Clone(), nil
	}

	next, ok := NextStatus(rec.Status, action)
	if !ok {
		c.metrics.RecordActionApplied(string(action), "rejected")
		return nil, invalidTransition(rec.Status, action)
	}

	err = c.callProvider(ctx, string(action), rec.ProviderInstanceID, func(ctx context.Context) error {
		var callErr error
		switch action {
		case ActionStart:
			_, callErr = c.provider.Start(ctx, rec.ProviderInstanceID)
		case ActionStop:
			_, callErr = c.provider.Stop(ctx, rec.ProviderInstanceID)
		case ActionReboot:
			_, callErr = c.provider.Reboot(ctx, rec.ProviderInstanceID)
		}
		return callErr
	})
	if err != nil {
		c.metrics.RecordActionApplied(string(action), "provider_error")
		return nil, fmt.Errorf("provider rejected %s: %w", action, err)
	}

	swapped, err := c.store.CompareAndSwapStatus(ctx, id, rec.Status, ServerPatch{Status: &next})
	if err != nil {
		return nil, err
	}
	if !swapped {
		// The record moved underneath us despite the lock, e.g. a sweeper
		// correction landed between read and write. The provider command
		// was already issued; report the conflict.
		c.metrics.RecordActionApplied(string(action), "conflict")
		return nil, invalidTransition(rec.Status, action)
	}

	rec.Status = next
	c.audit(ctx, "server.action."+string(action), ownerID, id, "")
	c.events.ServerStatusChanged(rec, next, "user action "+string(action))
	c.metrics.RecordActionApplied(string(action), "accepted")
	c.logger.WithRecordID(id).WithOwnerID(ownerID).
		WithField("action", string(action)).Info("action applied")

	return rec.Clone(), nil
}

// DeleteServer tears a server down. The provider terminate is best effort;
// the record is removed even when the provider call fails, so a user can
// always free the slot. Orphaned instances are caught by support tooling
// off the audit trail.
func (c *Controller) DeleteServer(ctx context.Context, ownerID, id string) error {
	c.locks.lock(id)
	locked := true
	defer func() {
		if locked {
			c.locks.unlock(id)
		}
	}()

	rec, err := c.store.GetServer(ctx, ownerID, id)
	if err != nil {
		return err
	}

	// Terminal records have no live instance to tear down; skip the
	// transitional write and go straight to removal.
	if !rec.Status.Terminal() {
		terminating := StatusTerminating
		if err := c.store.UpdateServer(ctx, id, ServerPatch{Status: &terminating}); err != nil {
			return err
		}

		if rec.ProviderInstanceID != "" {
			err := c.callProvider(ctx, "terminate", rec.ProviderInstanceID, func(ctx context.Context) error {
				_, callErr := c.provider.Terminate(ctx, rec.ProviderInstanceID)
				return callErr
			})
			if err != nil && !provider.IsNotFound(err) {
				c.logger.WithRecordID(id).WithInstanceID(rec.ProviderInstanceID).
					WithError(err).Error("provider terminate failed, deleting record anyway")
				c.audit(ctx, "server.terminate_failed", ownerID, id, err.Error())
			}
		}
	}

	if err := c.store.DeleteServer(ctx, id); err != nil {
		return err
	}

	c.audit(ctx, "server.deleted", ownerID, id, "")
	c.events.ServerDeleted(rec)
	c.logger.WithRecordID(id).WithOwnerID(ownerID).Info("server deleted")

	c.locks.unlock(id)
	locked = false
	c.locks.forget(id)

	return nil
}

// GetServer returns one record with live provider state merged in.
func (c *Controller) GetServer(ctx context.Context, ownerID, id string) (*ServerRecord, error) {
	rec, err := c.store.GetServer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return c.projector.Project(ctx, rec), nil
}

// ListServers returns all of an owner's records with live provider state
// merged in.
func (c *Controller) ListServers(ctx context.Context, ownerID string) ([]*ServerRecord, error) {
	recs, err := c.store.ListServers(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]*ServerRecord, len(recs))
	for i, rec := range recs {
		out[i] = c.projector.Project(ctx, rec)
	}
	return out, nil
}

// Stats summarizes an owner's fleet.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// Stats returns record counts for an owner. An empty ownerID counts the
// whole fleet.
func (c *Controller) Stats(ctx context.Context, ownerID string) (*Stats, error) {
	counts, err := c.store.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &Stats{Total: total, ByStatus: counts}, nil
}

// Catalog exposes the instance type catalog for display.
func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// Wait blocks until all in-flight provisioning tails finish. Used on
// shutdown and in tests.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// callProvider runs fn under the provider timeout with tracing and metrics.
func (c *Controller) callProvider(ctx context.Context, op, instanceID string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.providerTimeout)
	defer cancel()

	ctx, span := c.tracer.StartProviderSpan(ctx, op, instanceID)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordProviderCall(op, time.Since(start))

	if err != nil {
		c.metrics.RecordProviderError(op, string(provider.KindOf(err)))
		telemetry.RecordError(span, err)
	}
	return err
}

// audit appends an audit entry. Audit failures are logged, never surfaced;
// the primary operation has already happened.
func (c *Controller) audit(ctx context.Context, action, actor, targetID, details string) {
	entry := &AuditEntry{
		Action:    action,
		Actor:     actor,
		TargetID:  targetID,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := c.store.AppendAudit(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WithError(err).WithField("action", action).Warn("failed to append audit entry")
	}
}
