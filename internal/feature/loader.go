package feature

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Load reads a feature-map document from path. YAML and JSON are both
// accepted (JSON is a YAML subset). An empty path yields the default
// schema; a named file that is missing or malformed is a configuration
// error and fails loudly.
func Load(path string) (*Map, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature map %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and normalizes a feature-map document. Mapping order in
// the document is preserved as vector index order.
func Parse(data []byte) (*Map, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parse feature map: %w", err)
	}
	return Normalize(doc)
}
