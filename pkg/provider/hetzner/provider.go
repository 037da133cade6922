// Package hetzner implements the provider.Client interface against the
// Hetzner Cloud API.
package hetzner

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/openfleet/openfleet/pkg/provider"
)

// Provider drives a Hetzner Cloud project.
type Provider struct {
	client *hcloud.Client
}

var _ provider.Client = (*Provider)(nil)

// New creates a Provider authenticated with the given API token.
func New(token string, opts ...hcloud.ClientOption) *Provider {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("openfleet", "0.1.0"),
		hcloud.WithToken(token),
	}
	return &Provider{
		client: hcloud.NewClient(append(defaults, opts...)...),
	}
}

// Create launches a new server. The instance comes up asynchronously; the
// returned state reflects the point-in-time status the API reported.
func (p *Provider) Create(ctx context.Context, spec provider.CreateSpec) (*provider.CreateResult, error) {
	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.ServerType},
		Image:      &hcloud.Image{Name: spec.Image},
		UserData:   spec.Bootstrap,
		Labels:     spec.Labels,
	}
	if spec.Location != "" {
		opts.Location = &hcloud.Location{Name: spec.Location}
	}

	result, _, err := p.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, classify("create", "", err)
	}

	res := &provider.CreateResult{
		InstanceID: strconv.FormatInt(result.Server.ID, 10),
		State:      mapStatus(result.Server.Status),
	}
	if len(result.Server.PrivateNet) > 0 && result.Server.PrivateNet[0].IP != nil {
		res.PrivateAddress = result.Server.PrivateNet[0].IP.String()
	}

	return res, nil
}

// Describe returns the current provider view of an instance.
func (p *Provider) Describe(ctx context.Context, instanceID string) (*provider.Instance, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, provider.NewError(provider.KindNotFound, "describe", instanceID, err)
	}

	server, _, err := p.client.Server.GetByID(ctx, id)
	if err != nil {
		return nil, classify("describe", instanceID, err)
	}
	if server == nil {
		return nil, provider.NewError(provider.KindNotFound, "describe", instanceID,
			fmt.Errorf("instance %s does not exist", instanceID))
	}

	inst := &provider.Instance{
		ID:         instanceID,
		State:      mapStatus(server.Status),
		LaunchTime: server.Created,
	}
	if !server.PublicNet.IPv4.IsUnspecified() {
		inst.PublicAddress = server.PublicNet.IPv4.IP.String()
	}
	if len(server.PrivateNet) > 0 && server.PrivateNet[0].IP != nil {
		inst.PrivateAddress = server.PrivateNet[0].IP.String()
	}
	if server.ServerType != nil {
		inst.ServerType = server.ServerType.Name
	}
	if server.Datacenter != nil {
		inst.Zone = server.Datacenter.Name
	}

	return inst, nil
}

// DescribeHealth derives health from the instance status. The API has no
// separate health-check endpoint; a running server counts as passing.
func (p *Provider) DescribeHealth(ctx context.Context, instanceID string) (*provider.Health, error) {
	inst, err := p.Describe(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	return &provider.Health{
		State:        inst.State,
		ChecksPassed: inst.State == provider.StateRunning,
	}, nil
}

// Start powers on a stopped instance.
func (p *Provider) Start(ctx context.Context, instanceID string) (*provider.ActionResult, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, provider.NewError(provider.KindNotFound, "start", instanceID, err)
	}

	_, _, err = p.client.Server.Poweron(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return nil, classify("start", instanceID, err)
	}

	return &provider.ActionResult{State: provider.StateStarting}, nil
}

// Stop powers off a running instance. This is a hard power-off; the
// controller models the graceful path with its own transitional status.
func (p *Provider) Stop(ctx context.Context, instanceID string) (*provider.ActionResult, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, provider.NewError(provider.KindNotFound, "stop", instanceID, err)
	}

	_, _, err = p.client.Server.Poweroff(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return nil, classify("stop", instanceID, err)
	}

	return &provider.ActionResult{State: provider.StateStopping}, nil
}

// Reboot issues a reboot.
func (p *Provider) Reboot(ctx context.Context, instanceID string) (*provider.ActionResult, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, provider.NewError(provider.KindNotFound, "reboot", instanceID, err)
	}

	_, _, err = p.client.Server.Reboot(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return nil, classify("reboot", instanceID, err)
	}

	return &provider.ActionResult{State: provider.StateRebooting}, nil
}

// Terminate deletes the instance.
func (p *Provider) Terminate(ctx context.Context, instanceID string) (*provider.ActionResult, error) {
	id, err := parseID(instanceID)
	if err != nil {
		return nil, provider.NewError(provider.KindNotFound, "terminate", instanceID, err)
	}

	_, _, err = p.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: id})
	if err != nil {
		return nil, classify("terminate", instanceID, err)
	}

	return &provider.ActionResult{State: provider.StateTerminating}, nil
}

func parseID(instanceID string) (int64, error) {
	id, err := strconv.ParseInt(instanceID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid instance id %q: %w", instanceID, err)
	}
	return id, nil
}

// classify maps an hcloud API error onto the provider error taxonomy.
// Errors that are not API errors (network failures, timeouts) are treated
// as transient.
func classify(op, instanceID string, err error) error {
	var apiErr hcloud.Error
	if !errors.As(err, &apiErr) {
		return provider.NewError(provider.KindUnavailable, op, instanceID, err)
	}

	switch {
	case hcloud.IsError(err, hcloud.ErrorCodeNotFound):
		return provider.NewError(provider.KindNotFound, op, instanceID, err)
	case hcloud.IsError(err, hcloud.ErrorCodeUnauthorized):
		return provider.NewError(provider.KindUnauthorized, op, instanceID, err)
	case hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded):
		return provider.NewError(provider.KindThrottled, op, instanceID, err)
	case hcloud.IsError(err, hcloud.ErrorCodeConflict), hcloud.IsError(err, hcloud.ErrorCodeLocked):
		return provider.NewError(provider.KindUnavailable, op, instanceID, err)
	default:
		return provider.NewError(provider.KindUnknown, op, instanceID, err)
	}
}
