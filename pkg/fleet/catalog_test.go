package fleet

import "testing"

func TestDefaultCatalogTiers(t *testing.T) {
	catalog := DefaultCatalog()

	for _, name := range []string{"small", "standard", "professional", "business"} {
		spec, ok := catalog.Lookup(name)
		if !ok {
			t.Errorf("expected catalog entry %q", name)
			continue
		}
		if spec.ProviderType == "" {
			t.Errorf("entry %q has no provider type", name)
		}
		if spec.MonthlyCost <= 0 {
			t.Errorf("entry %q has no price", name)
		}
	}

	if _, ok := catalog.Lookup("mega"); ok {
		t.Error("expected unknown entry to miss")
	}
}

func TestSpecsSortedByCost(t *testing.T) {
	specs := DefaultCatalog().Specs()

	for i := 1; i < len(specs); i++ {
		if specs[i].MonthlyCost < specs[i-1].MonthlyCost {
			t.Errorf("specs not sorted by cost: %q (%v) before %q (%v)",
				specs[i-1].Name, specs[i-1].MonthlyCost, specs[i].Name, specs[i].MonthlyCost)
		}
	}
}

func TestCatalogDuplicatesLastWins(t *testing.T) {
	catalog := NewCatalog([]InstanceSpec{
		{Name: "small", ProviderType: "cpx11", CPU: 2, RAMGB: 2, StorageGB: 40, MonthlyCost: 10},
		{Name: "small", ProviderType: "cx22", CPU: 2, RAMGB: 4, StorageGB: 40, MonthlyCost: 12},
	})

	spec, ok := catalog.Lookup("small")
	if !ok {
		t.Fatal("expected entry")
	}
	if spec.ProviderType != "cx22" {
		t.Errorf("expected later duplicate to win, got %q", spec.ProviderType)
	}
}
