package hetzner

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/openfleet/openfleet/pkg/provider"
)

// mapStatus translates the API's server status vocabulary onto the
// normalized instance states. Migrating servers stay reachable, so they
// count as running; a rebuild wipes the disk and behaves like a fresh
// boot.
func mapStatus(status hcloud.ServerStatus) provider.InstanceState {
	switch status {
	case hcloud.ServerStatusInitializing:
		return provider.StatePending
	case hcloud.ServerStatusStarting:
		return provider.StateStarting
	case hcloud.ServerStatusRunning:
		return provider.StateRunning
	case hcloud.ServerStatusStopping:
		return provider.StateStopping
	case hcloud.ServerStatusOff:
		return provider.StateStopped
	case hcloud.ServerStatusDeleting:
		return provider.StateTerminating
	case hcloud.ServerStatusMigrating:
		return provider.StateRunning
	case hcloud.ServerStatusRebuilding:
		return provider.StatePending
	default:
		return provider.StateUnknown
	}
}
