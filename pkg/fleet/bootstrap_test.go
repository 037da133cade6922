package fleet

import (
	"strings"
	"testing"
)

func TestRenderBootstrap(t *testing.T) {
	script, err := RenderBootstrap(BootstrapParams{
		OwnerID:  "owner-1",
		RecordID: "srv-1",
		PlanType: "standard",
	})
	if err != nil {
		t.Fatalf("failed to render bootstrap: %v", err)
	}

	if !strings.HasPrefix(script, "#!/bin/bash") {
		t.Error("expected a bash script")
	}
	for _, want := range []string{"owner-1", "srv-1", "standard", "get.docker.com", "ufw"} {
		if !strings.Contains(script, want) {
			t.Errorf("expected script to contain %q", want)
		}
	}
}

func TestRenderBootstrapRequiresIDs(t *testing.T) {
	if _, err := RenderBootstrap(BootstrapParams{OwnerID: "owner-1"}); err == nil {
		t.Error("expected error without record id")
	}
	if _, err := RenderBootstrap(BootstrapParams{RecordID: "srv-1"}); err == nil {
		t.Error("expected error without owner id")
	}
}
