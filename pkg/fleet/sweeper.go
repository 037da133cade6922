package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/openfleet/openfleet/pkg/provider"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// SweeperOptions configures a Sweeper. Store and Provider are required.
type SweeperOptions struct {
	Store    Store
	Provider provider.Client

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Events  EventSink

	// Interval between sweep passes. Default 5 minutes.
	Interval time.Duration

	// ProviderTimeout bounds each provider call within a pass. Default 30s.
	ProviderTimeout time.Duration
}

// Sweeper periodically reconciles stored records against provider truth.
// It corrects status drift from out-of-band changes (console reboots,
// provider-side crashes), refreshes addresses, and retires records whose
// instances vanished. All of its writes are compare-and-swaps, so it never
// tramples a concurrent user action.
type Sweeper struct {
	store    Store
	provider provider.Client

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  EventSink

	interval        time.Duration
	providerTimeout time.Duration
}

// NewSweeper creates a reconciliation sweeper.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Store == nil || opts.Provider == nil {
		return nil, fmt.Errorf("store and provider are required")
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
	if opts.Interval == 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.ProviderTimeout == 0 {
		opts.ProviderTimeout = 30 * time.Second
	}

	return &Sweeper{
		store:           opts.Store,
		provider:        opts.Provider,
		logger:          opts.Logger.NewComponentLogger("sweeper"),
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
		events:          opts.Events,
		interval:        opts.Interval,
		providerTimeout: opts.ProviderTimeout,
	}, nil
}

// Start runs sweep passes on the configured interval until ctx is
// cancelled. A pass runs immediately on startup.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Error("sweep pass failed")
		}

		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Run executes one sweep pass and returns the number of records corrected.
// One unreachable record never blocks the rest of the pass; only failures
// that invalidate the whole pass (store errors, rejected credentials)
// abort it.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	ctx, span := s.tracer.StartSweepSpan(ctx)
	defer span.End()

	start := time.Now()

	records, err := s.store.ListActiveServers(ctx)
	if err != nil {
		s.metrics.RecordSweep("error", time.Since(start))
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list active servers: %w", err)
	}

	corrected := 0
	for _, rec := range records {
		n, err := s.reconcile(ctx, rec)
		corrected += n
		if err != nil {
			if provider.IsUnauthorized(err) {
				// Bad credentials fail every call; finishing the pass
				// would just hammer the API.
				s.metrics.RecordSweep("unauthorized", time.Since(start))
				telemetry.RecordError(span, err)
				return corrected, fmt.Errorf("provider rejected credentials: %w", err)
			}
			s.logger.WithRecordID(rec.ID).WithError(err).Warn("failed to reconcile record")
		}
		if ctx.Err() != nil {
			s.metrics.RecordSweep("cancelled", time.Since(start))
			return corrected, ctx.Err()
		}
	}

	s.refreshStatusGauge(ctx)
	s.metrics.RecordSweep("ok", time.Since(start))
	s.logger.WithField("records", len(records)).
		WithField("corrected", corrected).Debug("sweep pass complete")

	return corrected, nil
}

// reconcile compares one record against provider truth and corrects drift.
// Returns the number of corrections applied (0 or 1).
func (s *Sweeper) reconcile(ctx context.Context, rec *ServerRecord) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	start := time.Now()
	inst, err := s.provider.Describe(callCtx, rec.ProviderInstanceID)
	s.metrics.RecordProviderCall("describe", time.Since(start))

	if provider.IsNotFound(err) {
		return s.retireVanished(ctx, rec)
	}
	if err != nil {
		s.metrics.RecordProviderError("describe", string(provider.KindOf(err)))
		return 0, err
	}

	status, ok := FromInstanceState(inst.State)
	if !ok {
		// An unmapped provider state is left alone rather than guessed at.
		s.logger.WithRecordID(rec.ID).
			WithField("state", string(inst.State)).Warn("unrecognized provider state")
		return 0, nil
	}

	if status != rec.Status {
		return s.correctStatus(ctx, rec, status, inst)
	}

	return s.refreshAddresses(ctx, rec, inst)
}

// retireVanished marks a record terminated after its instance disappeared
// from the provider.
func (s *Sweeper) retireVanished(ctx context.Context, rec *ServerRecord) (int, error) {
	terminated := StatusTerminated
	reason := "instance no longer exists at provider"

	swapped, err := s.store.CompareAndSwapStatus(ctx, rec.ID, rec.Status, ServerPatch{
		Status:        &terminated,
		FailureReason: &reason,
	})
	if err != nil || !swapped {
		return 0, err
	}

	s.metrics.RecordDriftCorrection("vanished")
	s.events.DriftCorrected(rec.ID, terminated, reason)
	s.audit(ctx, rec.ID, fmt.Sprintf("%s -> %s (%s)", rec.Status, terminated, reason))
	s.logger.WithRecordID(rec.ID).WithInstanceID(rec.ProviderInstanceID).
		Warn("instance vanished, record terminated")

	return 1, nil
}

// correctStatus writes the provider-observed status over stale local state.
func (s *Sweeper) correctStatus(ctx context.Context, rec *ServerRecord, status Status, inst *provider.Instance) (int, error) {
	patch := ServerPatch{Status: &status}
	if inst.PublicAddress != "" && inst.PublicAddress != rec.PublicAddress {
		patch.PublicAddress = &inst.PublicAddress
	}
	if inst.PrivateAddress != "" && inst.PrivateAddress != rec.PrivateAddress {
		patch.PrivateAddress = &inst.PrivateAddress
	}

	swapped, err := s.store.CompareAndSwapStatus(ctx, rec.ID, rec.Status, patch)
	if err != nil || !swapped {
		// A lost swap means a user action landed first; its transitional
		// status will be checked again next pass.
		return 0, err
	}

	s.metrics.RecordDriftCorrection("status")
	s.events.DriftCorrected(rec.ID, status, "provider state drift")
	s.audit(ctx, rec.ID, fmt.Sprintf("%s -> %s", rec.Status, status))
	s.logger.WithRecordID(rec.ID).
		WithField("from", string(rec.Status)).
		WithField("to", string(status)).Info("status drift corrected")

	return 1, nil
}

// refreshAddresses updates stored addresses that drifted without a status
// change.
func (s *Sweeper) refreshAddresses(ctx context.Context, rec *ServerRecord, inst *provider.Instance) (int, error) {
	patch := ServerPatch{}
	if inst.PublicAddress != "" && inst.PublicAddress != rec.PublicAddress {
		patch.PublicAddress = &inst.PublicAddress
	}
	if inst.PrivateAddress != "" && inst.PrivateAddress != rec.PrivateAddress {
		patch.PrivateAddress = &inst.PrivateAddress
	}
	if patch.PublicAddress == nil && patch.PrivateAddress == nil {
		return 0, nil
	}

	if err := s.store.UpdateServer(ctx, rec.ID, patch); err != nil {
		return 0, err
	}

	s.metrics.RecordDriftCorrection("address")
	s.logger.WithRecordID(rec.ID).Info("addresses refreshed")

	return 1, nil
}

func (s *Sweeper) refreshStatusGauge(ctx context.Context) {
	counts, err := s.store.CountByStatus(ctx, "")
	if err != nil {
		s.logger.WithError(err).Warn("failed to refresh status gauge")
		return
	}
	for status := range allStatuses {
		s.metrics.SetServersByStatus(string(status), float64(counts[status]))
	}
}

func (s *Sweeper) audit(ctx context.Context, targetID, details string) {
	entry := &AuditEntry{
		Action:    "sweep.corrected",
		Actor:     "sweeper",
		TargetID:  targetID,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("failed to append audit entry")
	}
}
