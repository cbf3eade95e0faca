// Package stub provides a trivial in-process microvm.Provider for tests and
// environments without a hypervisor: it runs the boundary check the real
// providers run, then returns the program text itself as the result value
// rather than actually interpreting it.
package stub

import (
	"context"
	"time"

	"github.com/mandubian/ccos-sub004/microvm"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Provider is a no-op execute_program implementation sharing the same
// contract and boundary check as every other provider.
type Provider struct {
	initialized bool
	// Now lets tests fix the clock; defaults to time.Now.
	Now func() time.Time
}

var _ microvm.Provider = (*Provider)(nil)

// New returns an uninitialized stub Provider.
func New() *Provider {
	return &Provider{Now: time.Now}
}

// Initialize implements microvm.Provider.
func (p *Provider) Initialize(context.Context) error {
	p.initialized = true
	return nil
}

// Execute implements microvm.Provider. It performs the boundary check and
// otherwise echoes the program text as a string Value, with zeroed
// resource usage.
func (p *Provider) Execute(_ context.Context, ec microvm.ExecutionContext) (microvm.ExecutionResult, error) {
	if verr := microvm.CheckCapabilityPermission(ec); verr != nil {
		return microvm.ExecutionResult{}, verr
	}
	start := p.now()
	return microvm.ExecutionResult{
		Value: value.String(ec.Program),
		Metadata: microvm.UsageMetadata{
			Duration: p.now().Sub(start),
		},
	}, nil
}

// Cleanup implements microvm.Provider.
func (p *Provider) Cleanup(context.Context) error {
	p.initialized = false
	return nil
}

// ConfigSchema implements microvm.Provider; the stub takes no configuration.
func (p *Provider) ConfigSchema() *value.Type {
	return value.MapOf(nil, nil)
}

func (p *Provider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
