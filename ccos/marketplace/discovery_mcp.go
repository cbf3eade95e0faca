package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// MCPSession is the subset of an MCP JSON-RPC session a discovery adapter
// needs: a single request/response call keyed by method name. Concrete
// transports (HTTP, stdio) implement this the way features/mcp/runtime's
// Caller wraps its own JSON-RPC transport.
type MCPSession interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// MCPDiscovery discovers capabilities by issuing tools/list and
// resources/list against an MCP server and converting each result to a
// manifest with provider kind MCP.
type MCPDiscovery struct {
	Session    MCPSession
	ServerName string
}

var _ CapabilityDiscovery = (*MCPDiscovery)(nil)

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Annotations map[string]any `json:"annotations"`
	Metadata    map[string]any `json:"metadata"`
}

type mcpResourcesListResult struct {
	Resources []mcpResource `json:"resources"`
}

type mcpResource struct {
	URI         string         `json:"uri"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	MimeType    string         `json:"mimeType"`
	Annotations map[string]any `json:"annotations"`
}

// Discover issues tools/list then resources/list and converts each entry
// to a manifest with id "mcp.<server>.<name>".
func (d *MCPDiscovery) Discover(ctx context.Context) ([]Manifest, error) {
	var manifests []Manifest

	toolsRaw, err := d.Session.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("mcp tools/list: %w", err)
	}
	var tools mcpToolsListResult
	if err := json.Unmarshal(toolsRaw, &tools); err != nil {
		return nil, fmt.Errorf("decode tools/list: %w", err)
	}
	for _, tool := range tools.Tools {
		manifests = append(manifests, d.toolManifest(tool))
	}

	resourcesRaw, err := d.Session.Call(ctx, "resources/list", map[string]any{})
	if err == nil {
		var resources mcpResourcesListResult
		if err := json.Unmarshal(resourcesRaw, &resources); err == nil {
			for _, res := range resources.Resources {
				manifests = append(manifests, d.resourceManifest(res))
			}
		}
	}

	return manifests, nil
}

func (d *MCPDiscovery) toolManifest(tool mcpTool) Manifest {
	effects := effectsFromAny(firstNonNil(tool.Metadata["effects"], tool.Metadata["effect"], tool.Metadata["ccos_effects"],
		tool.Annotations["effects"], tool.Annotations["effect"], tool.Annotations["ccos_effects"]))
	if len(effects) == 0 {
		effects = []string{"network"}
	}
	var inputSchema *value.Type
	if tool.InputSchema != nil && isValidJSONSchema(tool.InputSchema) {
		inputSchema = value.TypeFromJSONSchema(tool.InputSchema)
	}
	return Manifest{
		ID:          fmt.Sprintf("mcp.%s.%s", d.ServerName, tool.Name),
		Name:        tool.Name,
		Description: tool.Description,
		Provider:    Provider{Kind: ProviderMCP, ServerURL: d.ServerName, ToolName: tool.Name},
		InputSchema: inputSchema,
		Effects:     effects,
		Provenance:  Provenance{Source: "mcp:" + d.ServerName},
	}
}

func (d *MCPDiscovery) resourceManifest(res mcpResource) Manifest {
	effects := effectsFromAny(firstNonNil(res.Annotations["effects"], res.Annotations["effect"], res.Annotations["ccos_effects"]))
	if len(effects) == 0 {
		effects = []string{"network"}
	}
	return Manifest{
		ID:          fmt.Sprintf("mcp.%s.%s", d.ServerName, res.Name),
		Name:        res.Name,
		Description: res.Description,
		Provider:    Provider{Kind: ProviderMCP, ServerURL: d.ServerName, ToolName: res.Name},
		Effects:     effects,
		Provenance:  Provenance{Source: "mcp:" + d.ServerName},
	}
}

// isValidJSONSchema compiles doc as a JSON Schema document, rejecting
// malformed schemas a misbehaving MCP server declares rather than
// propagating them into an internal Type that would reject every call.
func isValidJSONSchema(doc map[string]any) bool {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return false
	}
	_, err := c.Compile("schema.json")
	return err == nil
}

func firstNonNil(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// effectsFromAny normalizes a declared effects field, which may be a bare
// string ("network"), a keyword-shaped string (":network"), or a JSON array
// of such, into canonical keyword-form names (no leading colon; sorting is
// applied by the caller via SortedEffects).
func effectsFromAny(raw any) []string {
	switch t := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{strings.TrimPrefix(t, ":")}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, strings.TrimPrefix(s, ":"))
			}
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = strings.TrimPrefix(s, ":")
		}
		return out
	default:
		return nil
	}
}
