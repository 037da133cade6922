package fleet

import "sort"

// InstanceSpec describes one entry of the instance-type catalog.
type InstanceSpec struct {
	// Name is the catalog key users request, e.g. "small".
	Name string `json:"name" yaml:"name" validate:"required"`

	// ProviderType is the provider's server-type name backing this entry.
	ProviderType string `json:"provider_type" yaml:"provider_type" validate:"required"`

	CPU         int     `json:"cpu" yaml:"cpu" validate:"gt=0"`
	RAMGB       float64 `json:"ram_gb" yaml:"ram_gb" validate:"gt=0"`
	StorageGB   int     `json:"storage_gb" yaml:"storage_gb" validate:"gt=0"`
	MonthlyCost float64 `json:"monthly_cost" yaml:"monthly_cost" validate:"gte=0"`
}

// Catalog is the fixed instance-type table, injected at startup.
type Catalog struct {
	specs map[string]InstanceSpec
}

// NewCatalog builds a catalog from the given specs. Later duplicates of the
// same name win, matching config-file override semantics.
func NewCatalog(specs []InstanceSpec) *Catalog {
	m := make(map[string]InstanceSpec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return &Catalog{specs: m}
}

// Lookup returns the spec for an instance type name.
func (c *Catalog) Lookup(name string) (InstanceSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Specs returns all entries sorted by monthly cost, then name.
func (c *Catalog) Specs() []InstanceSpec {
	out := make([]InstanceSpec, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyCost != out[j].MonthlyCost {
			return out[i].MonthlyCost < out[j].MonthlyCost
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DefaultCatalog mirrors the four pricing tiers of the hosted product,
// mapped onto shared-vCPU provider types.
func DefaultCatalog() *Catalog {
	return NewCatalog([]InstanceSpec{
		{Name: "small", ProviderType: "cpx11", CPU: 2, RAMGB: 2, StorageGB: 40, MonthlyCost: 14.99},
		{Name: "standard", ProviderType: "cpx21", CPU: 3, RAMGB: 4, StorageGB: 80, MonthlyCost: 29.99},
		{Name: "professional", ProviderType: "cpx31", CPU: 4, RAMGB: 8, StorageGB: 160, MonthlyCost: 59.99},
		{Name: "business", ProviderType: "cpx41", CPU: 8, RAMGB: 16, StorageGB: 240, MonthlyCost: 99.99},
	})
}
