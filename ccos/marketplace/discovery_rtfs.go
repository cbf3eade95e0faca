package marketplace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RTFSModuleDiscovery reads every `.rtfs` file in Dir and converts each
// `(capability …)` top-level form into a manifest, the third discovery
// adapter (alongside MCP and HTTP) for capabilities shipped as persisted
// RTFS modules rather than discovered live.
type RTFSModuleDiscovery struct {
	Dir string
}

var _ CapabilityDiscovery = (*RTFSModuleDiscovery)(nil)

func (d *RTFSModuleDiscovery) Discover(ctx context.Context) ([]Manifest, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("read rtfs module dir %q: %w", d.Dir, err)
	}
	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rtfs") {
			continue
		}
		path := filepath.Join(d.Dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return manifests, fmt.Errorf("read %q: %w", path, err)
		}
		found, err := parseCapabilityForms(string(data))
		if err != nil {
			return manifests, fmt.Errorf("parse %q: %w", path, err)
		}
		for i := range found {
			found[i].Provenance.Source = "rtfs-module:" + path
		}
		manifests = append(manifests, found...)
	}
	return manifests, nil
}

// parseCapabilityForms splits src on top-level "(capability " forms and
// converts each via RTFSToManifest. RTFS modules hold one or more
// capability definitions back to back; this performs a balanced-paren scan
// rather than requiring the whole file to be a single form.
func parseCapabilityForms(src string) ([]Manifest, error) {
	var manifests []Manifest
	i := 0
	for {
		idx := strings.Index(src[i:], "(capability ")
		if idx < 0 {
			break
		}
		start := i + idx
		end := matchingParen(src, start)
		if end < 0 {
			return manifests, fmt.Errorf("unbalanced capability form starting at byte %d", start)
		}
		m, err := RTFSToManifest(src[start : end+1])
		if err != nil {
			return manifests, err
		}
		manifests = append(manifests, m)
		i = end + 1
	}
	return manifests, nil
}

// matchingParen returns the index of the paren matching the '(' at start,
// or -1 if the text is unbalanced. It does not account for parens inside
// string literals containing unescaped quotes around parens, matching the
// parser's own simple lexing of strings via backslash escapes only.
func matchingParen(src string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(src); i++ {
		c := src[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
