package marketplace

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestManifestRoundTripProperty checks spec.md §8's marketplace round-trip
// invariant: ManifestToRTFS followed by RTFSToManifest reproduces a local
// provider's identity and dispatch target for any alphanumeric id/name.
func TestManifestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("local provider manifests round-trip", prop.ForAll(
		func(id, name string) bool {
			if id == "" {
				return true // the property covers non-empty ids only
			}
			m := Manifest{
				ID:       id,
				Name:     name,
				Provider: Provider{Kind: ProviderLocal, LocalName: id},
				Effects:  []string{"compute"},
			}
			got, err := RTFSToManifest(ManifestToRTFS(m))
			if err != nil {
				return false
			}
			return got.ID == m.ID && got.Name == m.Name &&
				got.Provider.Kind == ProviderLocal && got.Provider.LocalName == id
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
