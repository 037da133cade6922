package fleet

import (
	"testing"

	"github.com/openfleet/openfleet/pkg/provider"
)

func TestStatusValid(t *testing.T) {
	for status := range allStatuses {
		if !status.Valid() {
			t.Errorf("expected %q to be valid", status)
		}
	}

	if Status("destroyed").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusTerminated: true,
		StatusFailed:     true,
	}

	for status := range allStatuses {
		if got := status.Terminal(); got != terminal[status] {
			t.Errorf("Terminal(%q) = %v, want %v", status, got, terminal[status])
		}
	}
}

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"start", "stop", "reboot"} {
		if _, ok := ParseAction(raw); !ok {
			t.Errorf("expected %q to parse", raw)
		}
	}

	for _, raw := range []string{"", "restart", "terminate", "STOP"} {
		if _, ok := ParseAction(raw); ok {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestNextStatus(t *testing.T) {
	cases := []struct {
		current Status
		action  Action
		want    Status
		ok      bool
	}{
		{StatusRunning, ActionStop, StatusStopping, true},
		{StatusRunning, ActionReboot, StatusRebooting, true},
		{StatusStopped, ActionStart, StatusStarting, true},

		{StatusRunning, ActionStart, "", false},
		{StatusStopped, ActionStop, "", false},
		{StatusStopped, ActionReboot, "", false},
		{StatusStopping, ActionStop, "", false},
		{StatusStopping, ActionStart, "", false},
		{StatusStarting, ActionStart, "", false},
		{StatusRebooting, ActionReboot, "", false},
		{StatusProvisioning, ActionStop, "", false},
		{StatusPending, ActionStop, "", false},
		{StatusTerminating, ActionStart, "", false},
		{StatusTerminated, ActionStart, "", false},
		{StatusFailed, ActionStart, "", false},
	}

	for _, tc := range cases {
		got, ok := NextStatus(tc.current, tc.action)
		if ok != tc.ok || got != tc.want {
			t.Errorf("NextStatus(%q, %q) = (%q, %v), want (%q, %v)",
				tc.current, tc.action, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSatisfiedAlready(t *testing.T) {
	cases := []struct {
		current Status
		action  Action
		want    bool
	}{
		{StatusStopping, ActionStop, true},
		{StatusStopped, ActionStop, true},
		{StatusStarting, ActionStart, true},
		{StatusRebooting, ActionReboot, true},

		{StatusRunning, ActionStop, false},
		{StatusRunning, ActionStart, false},
		{StatusRunning, ActionReboot, false},
		{StatusStopped, ActionStart, false},
		{StatusStopping, ActionStart, false},
	}

	for _, tc := range cases {
		if got := satisfiedAlready(tc.current, tc.action); got != tc.want {
			t.Errorf("satisfiedAlready(%q, %q) = %v, want %v",
				tc.current, tc.action, got, tc.want)
		}
	}
}

func TestFromInstanceState(t *testing.T) {
	cases := []struct {
		state provider.InstanceState
		want  Status
		ok    bool
	}{
		{provider.StatePending, StatusPending, true},
		{provider.StateStarting, StatusStarting, true},
		{provider.StateRunning, StatusRunning, true},
		{provider.StateStopping, StatusStopping, true},
		{provider.StateStopped, StatusStopped, true},
		{provider.StateRebooting, StatusRebooting, true},
		{provider.StateTerminating, StatusTerminating, true},
		{provider.StateTerminated, StatusTerminated, true},
		{provider.StateUnknown, "", false},
	}

	for _, tc := range cases {
		got, ok := FromInstanceState(tc.state)
		if ok != tc.ok || got != tc.want {
			t.Errorf("FromInstanceState(%q) = (%q, %v), want (%q, %v)",
				tc.state, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rec := &ServerRecord{
		ID:     "srv-1",
		Status: StatusRunning,
		Health: &provider.Health{State: provider.StateRunning, ChecksPassed: true},
	}

	cp := rec.Clone()
	cp.Status = StatusStopped
	cp.Health.ChecksPassed = false

	if rec.Status != StatusRunning {
		t.Error("clone mutation leaked into original status")
	}
	if !rec.Health.ChecksPassed {
		t.Error("clone mutation leaked into original health")
	}
}
