package fleet

import (
	"context"
	"time"

	"github.com/openfleet/openfleet/pkg/provider"
	"github.com/openfleet/openfleet/pkg/telemetry"
)

// Projector merges live provider state into stored records on the read
// path. It never writes anything back; persistent convergence is the
// sweeper's job.
type Projector struct {
	provider provider.Client
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	timeout  time.Duration
}

// Project returns a copy of rec enriched with the provider's current view.
// Records without a provider instance, terminal records, and records the
// provider cannot be reached for are returned as stored.
func (p *Projector) Project(ctx context.Context, rec *ServerRecord) *ServerRecord {
	out := rec.Clone()

	if rec.ProviderInstanceID == "" || rec.Status.Terminal() {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	inst, err := p.provider.Describe(ctx, rec.ProviderInstanceID)
	p.metrics.RecordProviderCall("describe", time.Since(start))
	if err != nil {
		p.metrics.RecordProviderError("describe", string(provider.KindOf(err)))
		p.logger.WithRecordID(rec.ID).WithError(err).Debug("describe failed, serving stored state")
		return out
	}

	if status, ok := FromInstanceState(inst.State); ok {
		out.Status = status
	}
	if inst.PublicAddress != "" {
		out.PublicAddress = inst.PublicAddress
	}
	if inst.PrivateAddress != "" {
		out.PrivateAddress = inst.PrivateAddress
	}

	start = time.Now()
	health, err := p.provider.DescribeHealth(ctx, rec.ProviderInstanceID)
	p.metrics.RecordProviderCall("describe_health", time.Since(start))
	if err != nil {
		p.metrics.RecordProviderError("describe_health", string(provider.KindOf(err)))
		p.logger.WithRecordID(rec.ID).WithError(err).Debug("health lookup failed")
		return out
	}
	out.Health = health

	return out
}
