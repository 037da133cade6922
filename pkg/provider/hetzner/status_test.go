package hetzner

import (
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/openfleet/openfleet/pkg/provider"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		status hcloud.ServerStatus
		want   provider.InstanceState
	}{
		{hcloud.ServerStatusInitializing, provider.StatePending},
		{hcloud.ServerStatusStarting, provider.StateStarting},
		{hcloud.ServerStatusRunning, provider.StateRunning},
		{hcloud.ServerStatusStopping, provider.StateStopping},
		{hcloud.ServerStatusOff, provider.StateStopped},
		{hcloud.ServerStatusDeleting, provider.StateTerminating},
		{hcloud.ServerStatusMigrating, provider.StateRunning},
		{hcloud.ServerStatusRebuilding, provider.StatePending},
		{hcloud.ServerStatusUnknown, provider.StateUnknown},
	}

	for _, tc := range cases {
		if got := mapStatus(tc.status); got != tc.want {
			t.Errorf("mapStatus(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestClassifyAPIErrors(t *testing.T) {
	cases := []struct {
		name string
		code hcloud.ErrorCode
		want provider.Kind
	}{
		{"not found", hcloud.ErrorCodeNotFound, provider.KindNotFound},
		{"unauthorized", hcloud.ErrorCodeUnauthorized, provider.KindUnauthorized},
		{"rate limited", hcloud.ErrorCodeRateLimitExceeded, provider.KindThrottled},
		{"conflict", hcloud.ErrorCodeConflict, provider.KindUnavailable},
		{"locked", hcloud.ErrorCodeLocked, provider.KindUnavailable},
		{"unmapped", hcloud.ErrorCodeInvalidInput, provider.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("describe", "42", hcloud.Error{Code: tc.code, Message: tc.name})
			if got := provider.KindOf(err); got != tc.want {
				t.Errorf("classify(%q) kind = %q, want %q", tc.code, got, tc.want)
			}
		})
	}
}

func TestClassifyNetworkError(t *testing.T) {
	err := classify("describe", "42", errTimeout{})
	if got := provider.KindOf(err); got != provider.KindUnavailable {
		t.Errorf("expected network errors to classify as unavailable, got %q", got)
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "dial tcp: i/o timeout" }
