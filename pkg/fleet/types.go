package fleet

import (
	"time"

	"github.com/openfleet/openfleet/pkg/provider"
)

// Status is the lifecycle state of a server record. It is a closed set;
// nothing outside this package writes raw status strings.
type Status string

const (
	// StatusProvisioning is the initial state: the record exists but the
	// provider create call has not resolved yet.
	StatusProvisioning Status = "provisioning"

	// StatusPending means the provider accepted the create request and is
	// still bringing the instance up.
	StatusPending Status = "pending"

	StatusRunning     Status = "running"
	StatusStopping    Status = "stopping"
	StatusStopped     Status = "stopped"
	StatusStarting    Status = "starting"
	StatusRebooting   Status = "rebooting"
	StatusTerminating Status = "terminating"

	// StatusTerminated and StatusFailed are terminal: such records are
	// never queried against the provider again.
	StatusTerminated Status = "terminated"
	StatusFailed     Status = "failed"
)

// allStatuses enumerates the closed status set for validation.
var allStatuses = map[Status]struct{}{
	StatusProvisioning: {},
	StatusPending:      {},
	StatusRunning:      {},
	StatusStopping:     {},
	StatusStopped:      {},
	StatusStarting:     {},
	StatusRebooting:    {},
	StatusTerminating:  {},
	StatusTerminated:   {},
	StatusFailed:       {},
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	_, ok := allStatuses[s]
	return ok
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusTerminated || s == StatusFailed
}

// Action is a user-initiated control command on a provisioned server.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionReboot Action = "reboot"
)

// ParseAction validates a raw action string.
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionStart, ActionStop, ActionReboot:
		return Action(raw), true
	default:
		return "", false
	}
}

// actionEdges is the command transition table: for each current status, the
// actions that have an outgoing edge and the transitional status they lead
// to. Any (status, action) pair absent here is an invalid transition.
var actionEdges = map[Status]map[Action]Status{
	StatusRunning: {
		ActionStop:   StatusStopping,
		ActionReboot: StatusRebooting,
	},
	StatusStopped: {
		ActionStart: StatusStarting,
	},
}

// satisfiedAlready reports whether action is a repeat of one already in
// flight or completed: stopping a stopping/stopped server, starting a
// starting server, rebooting a rebooting server. Such repeats are no-ops,
// not invalid transitions.
func satisfiedAlready(current Status, action Action) bool {
	switch action {
	case ActionStop:
		return current == StatusStopping || current == StatusStopped
	case ActionStart:
		return current == StatusStarting
	case ActionReboot:
		return current == StatusRebooting
	}
	return false
}

// NextStatus returns the transitional status reached by applying action from
// the current status, or false if the transition table has no such edge.
func NextStatus(current Status, action Action) (Status, bool) {
	edges, ok := actionEdges[current]
	if !ok {
		return "", false
	}
	next, ok := edges[action]
	return next, ok
}

// FromInstanceState maps a provider-reported instance state onto a record
// status. Provider truth uses the same vocabulary minus the local-only
// states (provisioning, failed).
func FromInstanceState(state provider.InstanceState) (Status, bool) {
	switch state {
	case provider.StatePending:
		return StatusPending, true
	case provider.StateStarting:
		return StatusStarting, true
	case provider.StateRunning:
		return StatusRunning, true
	case provider.StateStopping:
		return StatusStopping, true
	case provider.StateStopped:
		return StatusStopped, true
	case provider.StateRebooting:
		return StatusRebooting, true
	case provider.StateTerminating:
		return StatusTerminating, true
	case provider.StateTerminated:
		return StatusTerminated, true
	default:
		return "", false
	}
}

// ServerRecord is the persisted representation of a user's server lease.
type ServerRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// InstanceType names a catalog entry; immutable after creation.
	InstanceType string `json:"instance_type"`

	// PlanType is a display/billing label correlated with InstanceType.
	// It has no effect on lifecycle behavior.
	PlanType string `json:"plan_type"`

	// ProviderInstanceID is set once the provider accepts the create
	// request and is never rewritten afterwards.
	ProviderInstanceID string `json:"provider_instance_id,omitempty"`

	Status Status `json:"status"`

	PrivateAddress string `json:"private_address,omitempty"`
	PublicAddress  string `json:"public_address,omitempty"`

	// FailureReason preserves the provider error for user display when
	// Status is StatusFailed.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Health carries live provider health data on the read path only;
	// it is never persisted.
	Health *provider.Health `json:"health,omitempty"`
}

// Clone returns a copy of the record safe to mutate on the read path.
func (r *ServerRecord) Clone() *ServerRecord {
	cp := *r
	if r.Health != nil {
		h := *r.Health
		cp.Health = &h
	}
	return &cp
}
