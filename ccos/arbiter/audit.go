package arbiter

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditLog appends one JSON object per line for every prompt/response pair
// and parsed artifact the Arbiter produces, the record a human or a later
// debugging pass replays to see exactly what was asked and returned.
type AuditLog struct {
	mu sync.Mutex
	w  io.Writer
	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// NewAuditLog returns an AuditLog that appends newline-delimited JSON
// records to w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w, now: time.Now}
}

// auditRecord is the on-disk shape of one audit log line.
type auditRecord struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Provider  string         `json:"provider,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
	Response  string         `json:"response,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Append writes one audit record. event identifies the kind of record
// (e.g. "nl_to_intent", "delegation_decision", "plan_synthesis",
// "orchestrator_error"); prompt/response carry the raw LLM exchange when
// applicable; fields carries anything else worth recording (parsed intent
// id, delegation confidence, error text, …).
func (a *AuditLog) Append(event, provider, prompt, response string, fields map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := auditRecord{
		Event:     event,
		Timestamp: a.now(),
		Provider:  provider,
		Prompt:    prompt,
		Response:  response,
		Fields:    fields,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = a.w.Write(data)
	return err
}
