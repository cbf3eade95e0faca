package arbiter

import "sync"

// DelegationTracker maintains a per-agent exponential moving average of
// delegation success, the same smoothing idiom the registry's health
// tracker uses for pong staleness, adapted here to a feedback-driven score
// instead of a timestamp: each outcome nudges the average toward 1 or 0
// rather than replacing it outright, so a single bad run doesn't zero out
// an otherwise reliable agent.
type DelegationTracker struct {
	mu       sync.Mutex
	alpha    float64
	baseline float64
	scores   map[string]float64
}

// DelegationTrackerOption configures a DelegationTracker.
type DelegationTrackerOption func(*DelegationTracker)

// WithAlpha sets the EMA smoothing factor (0,1]; higher weighs recent
// outcomes more heavily. Defaults to 0.3.
func WithAlpha(alpha float64) DelegationTrackerOption {
	return func(t *DelegationTracker) { t.alpha = alpha }
}

// WithBaselineConfidence sets the adaptive threshold's starting value
// before any feedback has been recorded. Defaults to 0.6.
func WithBaselineConfidence(baseline float64) DelegationTrackerOption {
	return func(t *DelegationTracker) { t.baseline = baseline }
}

// NewDelegationTracker constructs a DelegationTracker.
func NewDelegationTracker(opts ...DelegationTrackerOption) *DelegationTracker {
	t := &DelegationTracker{alpha: 0.3, baseline: 0.6, scores: make(map[string]float64)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Threshold returns the adaptive delegation-confidence threshold for an
// agent: its historical success EMA if any feedback has been recorded,
// otherwise the configured baseline.
func (t *DelegationTracker) Threshold(agentID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if score, ok := t.scores[agentID]; ok {
		return score
	}
	return t.baseline
}

// Feedback records a delegation outcome for agentID (true for success,
// false for failure) and folds it into the agent's EMA.
func (t *DelegationTracker) Feedback(agentID string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	current, ok := t.scores[agentID]
	if !ok {
		current = t.baseline
	}
	t.scores[agentID] = current + t.alpha*(outcome-current)
}
