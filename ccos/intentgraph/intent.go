// Package intentgraph stores the directed graph of intents the Arbiter
// builds from a natural-language goal: nodes are Intent records, edges
// relate them (subgoal, dependency, conflict, …), and the graph enforces
// the invariants a planner and orchestrator depend on — no cycles, and a
// forest shape for the subgoal tree — independent of the storage backend.
package intentgraph

import (
	"time"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// Status is the lifecycle state of an Intent.
type Status string

const (
	StatusActive    Status = "Active"
	StatusExecuting Status = "Executing"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusArchived  Status = "Archived"
	StatusSuspended Status = "Suspended"
)

// GenerationMetadata records how an Intent came to exist.
type GenerationMetadata struct {
	ArbiterVersion string
	GeneratedAt    time.Time
	ReasoningTrace string
	// Method records the generation method tag, e.g. "delegating-llm" for
	// an intent synthesized from a natural-language goal via the Arbiter's
	// LLM oracle, as opposed to one created directly by a caller.
	Method string
}

// Intent is a record of what the user wants, optionally decomposed into
// sub-intents via IsSubgoalOf edges.
type Intent struct {
	ID                string
	Name              string
	Goal              string
	OriginalRequest   string
	Constraints       map[string]value.Value
	Preferences       map[string]value.Value
	SuccessCriteria   *value.Value
	Status            Status
	ParentID          string
	ChildIDs          []string
	Generation        GenerationMetadata
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// EdgeType enumerates the relations an Edge may carry. IsSubgoalOf defines
// the parent/child tree; the rest are auxiliary relations carried alongside
// it for planner and resolver use.
type EdgeType string

const (
	EdgeIsSubgoalOf   EdgeType = "IsSubgoalOf"
	EdgeDependsOn     EdgeType = "DependsOn"
	EdgeConflictsWith EdgeType = "ConflictsWith"
	EdgeEnables       EdgeType = "Enables"
	EdgeRelatedTo     EdgeType = "RelatedTo"
	EdgeTriggeredBy   EdgeType = "TriggeredBy"
	EdgeBlocks        EdgeType = "Blocks"
)

// Edge relates two intents by id.
type Edge struct {
	From string
	To   string
	Type EdgeType
}
