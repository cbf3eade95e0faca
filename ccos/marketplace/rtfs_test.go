package marketplace

import "testing"

func TestManifestRoundTrip(t *testing.T) {
	m := Manifest{
		ID:          "ccos.echo",
		Name:        "echo",
		Description: "echoes its input",
		Provider:    Provider{Kind: ProviderHTTP, Endpoint: "https://example.com/echo", Method: "POST", AuthEnvVar: "ECHO_TOKEN"},
		Version:     "1.0.0",
		Permissions: []string{"net.out"},
		Effects:     []string{"network", "compute"},
		Metadata:    map[string]any{"owner": "platform"},
	}

	src := ManifestToRTFS(m)
	got, err := RTFSToManifest(src)
	if err != nil {
		t.Fatalf("RTFSToManifest: %v", err)
	}
	if got.ID != m.ID || got.Name != m.Name || got.Description != m.Description || got.Version != m.Version {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.Provider.Kind != ProviderHTTP || got.Provider.Endpoint != m.Provider.Endpoint || got.Provider.Method != m.Provider.Method {
		t.Fatalf("provider round-trip mismatch: %+v", got.Provider)
	}
	if len(got.Effects) != 2 || got.Effects[0] != "compute" || got.Effects[1] != "network" {
		t.Fatalf("unexpected effects: %v", got.Effects)
	}
}

func TestContentHashIsStableUnderEffectOrder(t *testing.T) {
	a := Manifest{ID: "x", Provider: Provider{Kind: ProviderLocal, LocalName: "x"}, Effects: []string{"network", "compute"}}
	b := Manifest{ID: "x", Provider: Provider{Kind: ProviderLocal, LocalName: "x"}, Effects: []string{"compute", "network"}}
	if ContentHash(a) != ContentHash(b) {
		t.Fatal("content hash should not depend on input effect order")
	}
}
