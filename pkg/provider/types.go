package provider

import (
	"context"
	"time"
)

// InstanceState is the normalized state of a provider-side instance.
// Implementations map their native status vocabulary onto this closed set.
type InstanceState string

const (
	StatePending     InstanceState = "pending"
	StateStarting    InstanceState = "starting"
	StateRunning     InstanceState = "running"
	StateStopping    InstanceState = "stopping"
	StateStopped     InstanceState = "stopped"
	StateRebooting   InstanceState = "rebooting"
	StateTerminating InstanceState = "terminating"
	StateTerminated  InstanceState = "terminated"
	StateUnknown     InstanceState = "unknown"
)

// CreateSpec describes the instance to launch. Bootstrap is an opaque payload
// the provider executes on first boot; the controller never inspects it.
type CreateSpec struct {
	Name       string
	ServerType string
	Image      string
	Location   string
	Bootstrap  string
	Labels     map[string]string
}

// CreateResult is returned by Create once the provider accepts the request.
// PrivateAddress may be empty if the provider assigns it asynchronously.
type CreateResult struct {
	InstanceID     string
	State          InstanceState
	PrivateAddress string
}

// Instance is the provider's ground-truth view of a running instance.
type Instance struct {
	ID             string
	State          InstanceState
	PublicAddress  string
	PrivateAddress string
	ServerType     string
	LaunchTime     time.Time
	Zone           string
}

// Health reports the provider's instance health checks. For freshly created
// instances with no health data yet, implementations return ChecksPassed=false
// and State=StatePending rather than an error.
type Health struct {
	State        InstanceState
	ChecksPassed bool
}

// ActionResult carries the transitional state the provider reports after
// accepting a start/stop/reboot/terminate command. The action itself is
// applied asynchronously on the provider side.
type ActionResult struct {
	State InstanceState
}

// Client is the narrow compute-API surface the lifecycle controller drives.
// All calls must honor ctx deadlines; a deadline expiry is reported as a
// KindUnavailable error so callers treat it as retryable.
type Client interface {
	Create(ctx context.Context, spec CreateSpec) (*CreateResult, error)
	Describe(ctx context.Context, instanceID string) (*Instance, error)
	DescribeHealth(ctx context.Context, instanceID string) (*Health, error)
	Start(ctx context.Context, instanceID string) (*ActionResult, error)
	Stop(ctx context.Context, instanceID string) (*ActionResult, error)
	Reboot(ctx context.Context, instanceID string) (*ActionResult, error)
	Terminate(ctx context.Context, instanceID string) (*ActionResult, error)
}
