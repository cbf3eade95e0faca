package marketplace

import (
	"context"
	"fmt"
	"os"
)

// KnownEndpoint is one statically-declared HTTP API endpoint the HTTP
// discovery adapter synthesizes a manifest for.
type KnownEndpoint struct {
	ID          string
	Name        string
	Description string
	Method      string
	Path        string
	BaseURL     string
	// AuthEnvVar, if set, must resolve to a non-empty environment variable
	// for the endpoint to be considered authorized; otherwise it is skipped.
	AuthEnvVar string
	Effects    []string
}

// HTTPDiscovery synthesizes one capability manifest per statically
// configured endpoint, treating authorization as satisfied iff the
// declared environment variable resolves to a non-empty value.
type HTTPDiscovery struct {
	Endpoints []KnownEndpoint
}

var _ CapabilityDiscovery = (*HTTPDiscovery)(nil)

func (d *HTTPDiscovery) Discover(ctx context.Context) ([]Manifest, error) {
	var manifests []Manifest
	for _, ep := range d.Endpoints {
		if ep.AuthEnvVar != "" && os.Getenv(ep.AuthEnvVar) == "" {
			continue
		}
		manifests = append(manifests, Manifest{
			ID:          ep.ID,
			Name:        ep.Name,
			Description: ep.Description,
			Provider: Provider{
				Kind:       ProviderHTTP,
				Endpoint:   fmt.Sprintf("%s%s", ep.BaseURL, ep.Path),
				Method:     ep.Method,
				AuthEnvVar: ep.AuthEnvVar,
			},
			Effects:    SortedEffects(ep.Effects),
			Provenance: Provenance{Source: "http-known-api"},
		})
	}
	return manifests, nil
}
