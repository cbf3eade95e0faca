// Package microvm defines the provider contract untrusted script bodies
// execute under: a one-shot sandboxed run of a language-tagged program with
// a resource budget, returning a value plus resource-usage metadata. The
// Orchestrator hands a `(call …)` site's script body to a Provider when
// the target manifest's provider kind is MicroVM; providers in this
// package and its subpackages implement the same narrow contract so the
// Orchestrator never branches on provider identity, only on kind.
package microvm

import (
	"context"
	"time"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Language tags the interpreter a Provider must select for a program.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageRuby       Language = "ruby"
	LanguageLua        Language = "lua"
	LanguageShell      Language = "shell"
	LanguageRTFS       Language = "rtfs"
)

// ResourceBudget bounds one execution's resource consumption.
type ResourceBudget struct {
	MaxCPUTime     time.Duration
	MaxMemoryMB    int
	MaxDiskIOMB    int
	MaxNetworkIOMB int
	MaxProcesses   int
	MaxOpenFiles   int
}

// ExecutionContext is everything a Provider needs to run one program.
type ExecutionContext struct {
	Program               string
	Language              Language
	Args                  []value.Value
	CapabilityID          string
	CapabilityPermissions []string
	Budget                ResourceBudget
}

// UsageMetadata reports what one execution consumed.
type UsageMetadata struct {
	Duration        time.Duration
	MemoryUsedMB    int
	CPUTime         time.Duration
	NetworkRequests int
	FileOperations  int
}

// ExecutionResult is a Provider's answer for one execute_program call.
type ExecutionResult struct {
	Value    value.Value
	Metadata UsageMetadata
}

// Provider is the shared MicroVM execution contract: Initialize before any
// Execute, Cleanup to release held resources, ConfigSchema to describe the
// provider's own configuration for introspection.
type Provider interface {
	Initialize(ctx context.Context) error
	Execute(ctx context.Context, ec ExecutionContext) (ExecutionResult, error)
	Cleanup(ctx context.Context) error
	ConfigSchema() *value.Type
}

// CheckCapabilityPermission implements the boundary check every provider
// must perform before executing anything: if ec.CapabilityID is set, it
// must be a member of ec.CapabilityPermissions.
func CheckCapabilityPermission(ec ExecutionContext) *value.Error {
	if ec.CapabilityID == "" {
		return nil
	}
	for _, p := range ec.CapabilityPermissions {
		if p == ec.CapabilityID {
			return nil
		}
	}
	return value.New(value.KindSecurityViolation, "capability %q not in permitted set %v", ec.CapabilityID, ec.CapabilityPermissions)
}
