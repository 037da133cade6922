// Package telemetry provides observability instrumentation for OpenFleet.
//
// It bundles structured logging (zerolog), Prometheus metrics, and
// OpenTelemetry tracing behind small wrappers the rest of the codebase
// depends on.
//
// # Logging
//
// Component loggers carry stable fields through an operation:
//
//	logger := base.NewComponentLogger("sweeper")
//	logger = logger.WithRecordID(rec.ID).WithInstanceID(rec.ProviderInstanceID)
//	logger.Info("status drift corrected")
//
// # Metrics
//
// Metrics are registered on a private registry and exposed at
// /metrics (default :9090). Key series:
//
//   - openfleet_servers_created_total{instance_type,outcome}
//   - openfleet_actions_applied_total{action,outcome}
//   - openfleet_servers_by_status{status}
//   - openfleet_provider_calls_total{operation}
//   - openfleet_provider_errors_total{operation,kind}
//   - openfleet_sweeps_total{outcome}
//   - openfleet_drift_corrections_total{kind}
//
// # Tracing
//
// Spans cover sweep passes and individual provider calls. With tracing
// disabled spans are still created against a no-op provider, so callers
// never branch on configuration.
package telemetry
