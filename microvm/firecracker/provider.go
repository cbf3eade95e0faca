package firecracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mandubian/ccos-sub004/microvm"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Provider is a microvm.Provider backed by the Firecracker hypervisor. Each
// Execute call acquires a VM from the pool (a fresh boot or a warm reuse),
// injects the program and positional args, runs it to completion or
// timeout, parses its output from the serial console, and returns the VM
// to the pool (or tears it down if it failed its health check).
type Provider struct {
	cfg  Config
	mu   sync.Mutex
	pool *pool
	init bool
}

var _ microvm.Provider = (*Provider)(nil)

// New returns an uninitialized Firecracker-backed Provider.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Initialize implements microvm.Provider.
func (p *Provider) Initialize(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool = newPool(p.cfg)
	p.init = true
	return nil
}

// Execute implements microvm.Provider.
func (p *Provider) Execute(ctx context.Context, ec microvm.ExecutionContext) (microvm.ExecutionResult, error) {
	if verr := microvm.CheckCapabilityPermission(ec); verr != nil {
		return microvm.ExecutionResult{}, verr
	}
	p.mu.Lock()
	initialized := p.init
	pl := p.pool
	p.mu.Unlock()
	if !initialized {
		return microvm.ExecutionResult{}, value.New(value.KindResource, "firecracker provider not initialized")
	}

	timeout := p.cfg.ExecutionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argsJSON, err := marshalArgs(ec.Args)
	if err != nil {
		return microvm.ExecutionResult{}, value.New(value.KindType, "marshal microvm args: %v", err)
	}

	v := pl.acquire()
	start := time.Now()
	if err := v.start(runCtx, ec.Program, argsJSON, string(ec.Language)); err != nil {
		v.usage.markViolation()
		pl.release(ctx, v)
		return microvm.ExecutionResult{}, value.New(value.KindResource, "start microvm: %v", err)
	}

	stdout, waitErr := waitForOutput(runCtx, v)
	duration := time.Since(start)
	v.poweroff(ctx, poweroffGrace)
	v.sampleUsage()
	memMB, cpuTime, _ := v.usage.snapshot()
	pl.release(ctx, v)

	if waitErr != nil {
		return microvm.ExecutionResult{}, value.New(value.KindTimeout, "microvm execution: %v", waitErr)
	}

	output := parseVMOutput(stdout)
	return microvm.ExecutionResult{
		Value: value.String(output),
		Metadata: microvm.UsageMetadata{
			Duration:     duration,
			MemoryUsedMB: memMB,
			CPUTime:      cpuTime,
		},
	}, nil
}

// Cleanup implements microvm.Provider.
func (p *Provider) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.closeAll(ctx)
	}
	p.init = false
	return nil
}

// ConfigSchema implements microvm.Provider.
func (p *Provider) ConfigSchema() *value.Type {
	return value.MapOf([]value.MapField{
		{Key: "vcpu_count", Type: value.Prim(value.PrimInt)},
		{Key: "memory_size_mb", Type: value.Prim(value.PrimInt)},
		{Key: "execution_timeout_ms", Type: value.Prim(value.PrimInt)},
	}, nil)
}

func marshalArgs(args []value.Value) (string, error) {
	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = value.Print(a)
	}
	buf, err := json.Marshal(rendered)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// waitForOutput reads the VM process's stdout until it sees the end-of-
// output marker, the process exits, or the context is cancelled.
func waitForOutput(ctx context.Context, v *vm) (string, error) {
	if v.cmd == nil {
		return "", fmt.Errorf("vm process not started")
	}
	stdout, err := v.cmd.StdoutPipe()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&buf, stdout)
		done <- copyErr
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			killProcess(v.cmd)
			return buf.String(), ctx.Err()
		case <-done:
			return buf.String(), nil
		case <-ticker.C:
			if bytes.Contains(buf.Bytes(), []byte(outputEndMarker)) {
				return buf.String(), nil
			}
		}
	}
}

func killProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
