package marketplace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type stubMCPSession struct {
	responses map[string]json.RawMessage
}

func (s *stubMCPSession) Call(_ context.Context, method string, _ any) (json.RawMessage, error) {
	return s.responses[method], nil
}

func TestMCPDiscoverySkipsMalformedInputSchema(t *testing.T) {
	session := &stubMCPSession{responses: map[string]json.RawMessage{
		"tools/list": json.RawMessage(`{"tools": [
			{"name": "good", "inputSchema": {"type": "object"}},
			{"name": "bad", "inputSchema": {"type": 123}}
		]}`),
		"resources/list": json.RawMessage(`{"resources": []}`),
	}}
	d := &MCPDiscovery{Session: session, ServerName: "demo"}
	found, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(found))
	}
	byName := map[string]Manifest{}
	for _, m := range found {
		byName[m.Provider.ToolName] = m
	}
	if byName["good"].InputSchema == nil {
		t.Fatalf("expected valid schema to be compiled into InputSchema")
	}
	if byName["bad"].InputSchema != nil {
		t.Fatalf("expected malformed schema to be skipped, got %+v", byName["bad"].InputSchema)
	}
}

func TestHTTPDiscoveryRequiresAuthEnvVar(t *testing.T) {
	const envVar = "CCOS_TEST_HTTP_DISCOVERY_TOKEN"
	os.Unsetenv(envVar)
	d := &HTTPDiscovery{Endpoints: []KnownEndpoint{
		{ID: "weather.get", Method: "GET", BaseURL: "https://api.example.com", Path: "/weather", AuthEnvVar: envVar},
	}}
	found, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected endpoint to be skipped without auth env var, got %d", len(found))
	}

	os.Setenv(envVar, "secret")
	defer os.Unsetenv(envVar)
	found, err = d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 1 || found[0].ID != "weather.get" {
		t.Fatalf("expected weather.get to be discovered, got %+v", found)
	}
}

func TestRTFSModuleDiscoveryParsesMultipleForms(t *testing.T) {
	dir := t.TempDir()
	src := `(capability "a.one" :description "first" :provider {:type :local :name "one"} :effects [:compute])
(capability "a.two" :description "second" :provider {:type :local :name "two"} :effects [:network])`
	if err := os.WriteFile(filepath.Join(dir, "mod.rtfs"), []byte(src), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	d := &RTFSModuleDiscovery{Dir: dir}
	found, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(found))
	}
	ids := map[string]bool{found[0].ID: true, found[1].ID: true}
	if !ids["a.one"] || !ids["a.two"] {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
