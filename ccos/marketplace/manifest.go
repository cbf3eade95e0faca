// Package marketplace implements the capability registry: a mapping from
// capability id to provider (local closure, MCP-discovered tool, remote
// HTTP endpoint, or a synthesized RTFS module), plus the discovery adapters
// that populate it and the persistence round-trip that lets a discovered
// capability be saved as an RTFS module and reloaded later.
package marketplace

import (
	"context"
	"sort"
	"time"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// ProviderKind discriminates how a capability call is dispatched.
type ProviderKind string

const (
	ProviderLocal      ProviderKind = "local"
	ProviderMCP        ProviderKind = "mcp"
	ProviderHTTP       ProviderKind = "http"
	ProviderRemoteRTFS ProviderKind = "rtfs-module"
	ProviderSynthesized ProviderKind = "synthesized"
	// ProviderMicroVM dispatches to a sandboxed microvm.Provider instead of
	// a network or in-process callee; the manifest carries the program
	// source and language tag the sandbox should execute.
	ProviderMicroVM ProviderKind = "microvm"
)

// Provider carries the fields relevant to one ProviderKind; unused fields
// for a given kind are left zero. Modeled as a tagged struct rather than an
// interface so new kinds are added by extending the Kind enum and the
// orchestrator's dispatcher, per the closed-set dispatch design.
type Provider struct {
	Kind ProviderKind

	// Local: the closure is supplied out-of-band by the process registering
	// the manifest (the orchestrator's builtin capability table); the
	// marketplace only carries the kind tag here.
	LocalName string

	// MCP
	ServerURL  string
	ToolName   string
	TimeoutMS  int

	// HTTP
	Endpoint   string
	Method     string
	AuthEnvVar string

	// RemoteRTFS
	ModuleURL string

	// Synthesized
	PlanRef string

	// MicroVM
	MicroVMProgram  string
	MicroVMLanguage string
}

// RetryPolicy is honored by the orchestrator around a single dispatch; it
// is not automatic beyond what the manifest declares.
type RetryPolicy struct {
	MaxAttempts int
	BackoffMS   int
}

// Provenance records how a manifest was obtained.
type Provenance struct {
	Source       string
	ContentHash  string
	CustodyChain []string
	RegisteredAt time.Time
}

// Manifest describes one capability: its identity, provider, schemas, and
// provenance. Manifests are registered once and never mutated;
// re-registration with the same id is rejected.
type Manifest struct {
	ID          string
	Name        string
	Description string
	Provider    Provider
	Version     string
	InputSchema  *value.Type
	OutputSchema *value.Type
	Effects      []string
	Permissions  []string
	Provenance   Provenance
	Retry        *RetryPolicy
	TrustScore   float64
	Cost         float64
	Metadata     map[string]any
}

// CapabilityDiscovery is the uniform interface every discovery adapter
// implements; each is an external-world oracle so, unlike provider
// dispatch, this stays an open interface.
type CapabilityDiscovery interface {
	Discover(ctx context.Context) ([]Manifest, error)
}

// SortedEffects returns effects in canonical (sorted ascending) order, used
// both for the persisted RTFS form and for content hashing so provenance
// hashes are stable regardless of discovery order.
func SortedEffects(effects []string) []string {
	out := append([]string(nil), effects...)
	sort.Strings(out)
	return out
}

// RankByTrustThenCost orders manifests by trust-score descending, then cost
// ascending — the ranking rule used both by find_for_capabilities and by
// the Arbiter's agent-delegation lookup.
func RankByTrustThenCost(manifests []Manifest) []Manifest {
	out := append([]Manifest(nil), manifests...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrustScore != out[j].TrustScore {
			return out[i].TrustScore > out[j].TrustScore
		}
		return out[i].Cost < out[j].Cost
	})
	return out
}
