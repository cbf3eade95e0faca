package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mandubian/ccos-sub004/ccos/marketplace"
	"github.com/mandubian/ccos-sub004/ccos/policy"
	"github.com/mandubian/ccos-sub004/microvm"
	"github.com/mandubian/ccos-sub004/rtfs/eval"
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// LocalCapability is a capability implemented as an in-process closure,
// registered with the Dispatcher out of band from the marketplace (the
// marketplace only carries the ProviderLocal tag plus a name).
type LocalCapability func(ctx context.Context, args value.Value) (value.Value, *value.Error)

// Dispatcher brokers every `(call :id args)` site per 4.J: it checks
// admissibility under the runtime context's mode, validates args against
// the manifest's input schema, dispatches by provider kind, then validates
// the result against the output schema. It implements eval.Dispatcher so
// an Evaluator can be constructed directly over it.
type Dispatcher struct {
	Market  *marketplace.Marketplace
	Context policy.Context

	Locals   map[string]LocalCapability
	MCP      map[string]marketplace.MCPSession
	HTTP     *http.Client
	MicroVMs map[string]microvm.Provider
}

var _ eval.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher with empty provider registries; callers
// populate Locals/MCP/MicroVMs as needed before first use.
func NewDispatcher(market *marketplace.Marketplace, rtctx policy.Context) *Dispatcher {
	return &Dispatcher{
		Market:   market,
		Context:  rtctx,
		Locals:   map[string]LocalCapability{},
		MCP:      map[string]marketplace.MCPSession{},
		MicroVMs: map[string]microvm.Provider{},
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Dispatch implements eval.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, capabilityID string, args value.Value) (value.Value, *value.Error) {
	if err := d.Context.Admit(capabilityID); err != nil {
		return value.Value{}, err
	}
	manifest, err := d.Market.Get(ctx, capabilityID)
	if err != nil {
		return value.Value{}, value.New(value.KindCapability, "lookup capability %q: %v", capabilityID, err)
	}
	if manifest == nil {
		return value.Value{}, value.New(value.KindCapability, "capability %q is not registered", capabilityID)
	}
	if verr := validateAgainstSchema(manifest.InputSchema, args); verr != nil {
		return value.Value{}, verr.WithHint(fmt.Sprintf("invalid arguments for capability %q", capabilityID))
	}

	result, derr := d.invokeWithRetry(ctx, *manifest, args)
	if derr != nil {
		return value.Value{}, derr
	}

	if verr := validateAgainstSchema(manifest.OutputSchema, result); verr != nil {
		return value.Value{}, verr.WithHint(fmt.Sprintf("invalid result from capability %q", capabilityID))
	}
	return result, nil
}

// invokeWithRetry calls invoke, making up to m.Retry.MaxAttempts attempts in
// all when a manifest declares a retry policy. Retries are paced by a rate.Limiter
// rather than a raw sleep loop so BackoffMS behaves as a steady interval
// even if a caller shares the Dispatcher across concurrent goroutines
// dispatching the same capability.
func (d *Dispatcher) invokeWithRetry(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	result, derr := d.invoke(ctx, m, args)
	if derr == nil || m.Retry == nil || m.Retry.MaxAttempts <= 1 {
		return result, derr
	}

	backoff := time.Duration(m.Retry.BackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(backoff), 1)
	limiter.Allow() // consume the initial burst so the first retry still waits a full interval

	for attempt := 2; attempt <= m.Retry.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return value.Value{}, value.New(value.KindCapability, "retry backoff for %q: %v", m.ID, err)
		}
		result, derr = d.invoke(ctx, m, args)
		if derr == nil {
			return result, nil
		}
	}
	return result, derr
}

func (d *Dispatcher) invoke(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	switch m.Provider.Kind {
	case marketplace.ProviderLocal:
		return d.invokeLocal(ctx, m, args)
	case marketplace.ProviderMCP:
		return d.invokeMCP(ctx, m, args)
	case marketplace.ProviderHTTP:
		return d.invokeHTTP(ctx, m, args)
	case marketplace.ProviderMicroVM:
		return d.invokeMicroVM(ctx, m, args)
	case marketplace.ProviderRemoteRTFS, marketplace.ProviderSynthesized:
		return value.Value{}, value.New(value.KindCapability, "provider kind %q for capability %q requires a plan-executing orchestrator, not a bare dispatcher", m.Provider.Kind, m.ID)
	default:
		return value.Value{}, value.New(value.KindCapability, "unknown provider kind %q for capability %q", m.Provider.Kind, m.ID)
	}
}

func (d *Dispatcher) invokeLocal(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	fn, ok := d.Locals[m.Provider.LocalName]
	if !ok {
		return value.Value{}, value.New(value.KindCapability, "no local implementation registered for %q (capability %q)", m.Provider.LocalName, m.ID)
	}
	return fn(ctx, args)
}

func (d *Dispatcher) invokeMCP(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	session, ok := d.MCP[m.Provider.ServerURL]
	if !ok {
		return value.Value{}, value.New(value.KindCapability, "no MCP session configured for server %q (capability %q)", m.Provider.ServerURL, m.ID)
	}
	callCtx := ctx
	if m.Provider.TimeoutMS > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(m.Provider.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	params := map[string]any{
		"name":      m.Provider.ToolName,
		"arguments": value.ToJSON(args),
	}
	raw, err := session.Call(callCtx, "tools/call", params)
	if err != nil {
		return value.Value{}, value.New(value.KindCapability, "mcp call %q on %q: %v", m.Provider.ToolName, m.Provider.ServerURL, err)
	}
	var decoded any
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil {
			return value.Value{}, value.New(value.KindCapability, "decode mcp result for %q: %v", m.ID, jsonErr)
		}
	}
	return value.FromJSON(decoded), nil
}

func (d *Dispatcher) invokeHTTP(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	method := m.Provider.Method
	if method == "" {
		method = http.MethodPost
	}
	payload, marshalErr := json.Marshal(value.ToJSON(args))
	if marshalErr != nil {
		return value.Value{}, value.New(value.KindType, "marshal http request body for %q: %v", m.ID, marshalErr)
	}
	req, reqErr := http.NewRequestWithContext(ctx, method, m.Provider.Endpoint, bytes.NewReader(payload))
	if reqErr != nil {
		return value.Value{}, value.New(value.KindCapability, "build http request for %q: %v", m.ID, reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, doErr := d.HTTP.Do(req)
	if doErr != nil {
		return value.Value{}, value.New(value.KindCapability, "http call for %q: %v", m.ID, doErr)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return value.Value{}, value.New(value.KindCapability, "http call for %q: status %d", m.ID, resp.StatusCode)
	}
	var decoded any
	if jsonErr := json.NewDecoder(resp.Body).Decode(&decoded); jsonErr != nil {
		return value.Value{}, value.New(value.KindCapability, "decode http response for %q: %v", m.ID, jsonErr)
	}
	return value.FromJSON(decoded), nil
}

func (d *Dispatcher) invokeMicroVM(ctx context.Context, m marketplace.Manifest, args value.Value) (value.Value, *value.Error) {
	provider, ok := d.MicroVMs[m.ID]
	if !ok {
		return value.Value{}, value.New(value.KindCapability, "no microvm provider configured for capability %q", m.ID)
	}
	ec := microvm.ExecutionContext{
		Program:               m.Provider.MicroVMProgram,
		Language:               microvm.Language(m.Provider.MicroVMLanguage),
		Args:                   args.Seq(),
		CapabilityID:           m.ID,
		CapabilityPermissions:  m.Permissions,
	}
	result, err := provider.Execute(ctx, ec)
	if err != nil {
		if verr, ok := err.(*value.Error); ok {
			return value.Value{}, verr
		}
		return value.Value{}, value.New(value.KindCapability, "microvm execute for %q: %v", m.ID, err)
	}
	return result.Value, nil
}
