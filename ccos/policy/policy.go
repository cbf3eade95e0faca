// Package policy defines the Orchestrator's runtime context modes and the
// admissibility check every capability call passes through before dispatch.
package policy

import (
	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Mode is the runtime context's capability-call admissibility mode.
type Mode string

const (
	// ModePure forbids every capability call; only pure RTFS evaluation is
	// permitted.
	ModePure Mode = "pure"
	// ModeControlled permits only capability ids present in the context's
	// allow-list.
	ModeControlled Mode = "controlled"
	// ModeFull permits any registered capability.
	ModeFull Mode = "full"
)

// Context is the runtime context a plan executes under: its Mode and, when
// Mode is Controlled, the set of capability ids it may call.
type Context struct {
	Mode      Mode
	AllowList map[string]bool
}

// NewFull returns a Context that permits any registered capability.
func NewFull() Context { return Context{Mode: ModeFull} }

// NewPure returns a Context that forbids all capability calls.
func NewPure() Context { return Context{Mode: ModePure} }

// NewControlled returns a Context restricted to the given capability ids.
func NewControlled(allow ...string) Context {
	m := make(map[string]bool, len(allow))
	for _, id := range allow {
		m[id] = true
	}
	return Context{Mode: ModeControlled, AllowList: m}
}

// Admit checks whether capabilityID may be dispatched under this context,
// returning a KindSecurityViolation error when it may not.
func (c Context) Admit(capabilityID string) *value.Error {
	switch c.Mode {
	case ModePure:
		return value.New(value.KindSecurityViolation, "capability call %q forbidden in pure context", capabilityID)
	case ModeControlled:
		if !c.AllowList[capabilityID] {
			return value.New(value.KindSecurityViolation, "capability %q not in controlled context allow-list", capabilityID)
		}
		return nil
	case ModeFull:
		return nil
	default:
		return value.New(value.KindSecurityViolation, "unknown runtime context mode %q", c.Mode)
	}
}
