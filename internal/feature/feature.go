// Package feature turns canonical alert records into ordered numeric
// vectors, driven by a declarative feature map or a built-in default
// schema.
package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Spec is one resolved feature: read Path from the canonical record, fall
// back to Default, coerce to float64.
type Spec struct {
	Name    string
	Path    string
	Default float64
}

// Map is a normalized, ordered feature map. Vector index order equals
// declaration order and must stay stable across restarts, since persisted
// model weights are aligned to it.
type Map struct {
	specs []Spec
}

// defaultSchema is the fallback contract when no feature map is configured.
// The order is part of the contract.
var defaultSchema = []Spec{
	{Name: "rule_level", Path: "rule_level"},
	{Name: "severity_ord", Path: "severity_ord"},
	{Name: "bytes_sent", Path: "bytes_sent"},
	{Name: "bytes_recv", Path: "bytes_recv"},
	{Name: "bytes_total", Path: "bytes_total"},
	{Name: "duration_sec", Path: "duration_sec"},
	{Name: "dst_port", Path: "dst_port"},
	{Name: "dst_svc_sensitive", Path: "dst_svc_sensitive"},
	{Name: "dst_svc_admin", Path: "dst_svc_admin"},
	{Name: "pf_win", Path: "pf_win"},
	{Name: "pf_lin", Path: "pf_lin"},
	{Name: "pf_nw", Path: "pf_nw"},
	{Name: "pf_osks", Path: "pf_osks"},
	{Name: "auth_result_pos", Path: "auth_result_pos"},
	{Name: "auth_result_neg", Path: "auth_result_neg"},
	{Name: "service_snmp", Path: "service_snmp"},
	{Name: "service_ssh", Path: "service_ssh"},
	{Name: "service_rdp", Path: "service_rdp"},
	{Name: "service_winrm", Path: "service_winrm"},
	{Name: "hour", Path: "hour"},
}

// Default returns the built-in 20-feature schema.
func Default() *Map {
	specs := make([]Spec, len(defaultSchema))
	copy(specs, defaultSchema)
	return &Map{specs: specs}
}

// FromSpecs builds a Map from an already-normalized spec sequence.
func FromSpecs(specs []Spec) *Map {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return &Map{specs: out}
}

// Normalize accepts a decoded feature-map document in any of the four
// supported shapes and converts it to the ordered (name, path, default)
// form:
//
//   - a list of {name, path, default} objects
//   - a list of bare names, where name doubles as path
//   - a flat mapping of name to path-or-spec
//   - a nested mapping grouped by section, where the inner key doubles as
//     path when the entry gives none
//
// Only a structurally invalid document is rejected; missing optional
// sub-fields default (path to name, default to 0).
func Normalize(doc any) (*Map, error) {
	switch v := doc.(type) {
	case []any:
		return normalizeList(v)
	case yaml.MapSlice:
		return normalizeOrdered(v)
	case map[string]any:
		return normalizeOrdered(toMapSlice(v))
	case nil:
		return nil, fmt.Errorf("feature map: document is empty")
	}
	return nil, fmt.Errorf("feature map: top level must be a list or mapping, got %T", doc)
}

func normalizeList(items []any) (*Map, error) {
	specs := make([]Spec, 0, len(items))
	for i, item := range items {
		switch e := item.(type) {
		case string:
			if e == "" {
				return nil, fmt.Errorf("feature map: entry %d: empty name", i)
			}
			specs = append(specs, Spec{Name: e, Path: e})
		default:
			obj, ok := objectOf(item)
			if !ok {
				return nil, fmt.Errorf("feature map: entry %d: must be a name or object, got %T", i, item)
			}
			spec, err := specFromObject(obj)
			if err != nil {
				return nil, fmt.Errorf("feature map: entry %d: %w", i, err)
			}
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("feature map: no features declared")
	}
	return &Map{specs: specs}, nil
}

// normalizeOrdered handles both the flat and the section-grouped shapes,
// preserving document declaration order. A value that is itself a mapping
// without path/default keys is treated as a section of nested features.
func normalizeOrdered(items yaml.MapSlice) (*Map, error) {
	var specs []Spec
	for _, item := range items {
		key := str(item.Key)
		if key == "" {
			return nil, fmt.Errorf("feature map: mapping keys must be strings, got %T", item.Key)
		}
		if sub, ok := objectOf(item.Value); ok && !isSpecObject(sub) {
			for _, inner := range sub {
				name := str(inner.Key)
				if name == "" {
					return nil, fmt.Errorf("feature map: section %q: keys must be strings", key)
				}
				spec, err := specFromValue(name, inner.Value)
				if err != nil {
					return nil, fmt.Errorf("feature map: section %q: %w", key, err)
				}
				specs = append(specs, spec)
			}
			continue
		}
		spec, err := specFromValue(key, item.Value)
		if err != nil {
			return nil, fmt.Errorf("feature map: %w", err)
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("feature map: no features declared")
	}
	return &Map{specs: specs}, nil
}

func isSpecObject(obj yaml.MapSlice) bool {
	for _, item := range obj {
		if k := str(item.Key); k == "path" || k == "default" {
			return true
		}
	}
	return false
}

func specFromValue(name string, val any) (Spec, error) {
	switch v := val.(type) {
	case string:
		path := v
		if path == "" {
			path = name
		}
		return Spec{Name: name, Path: path}, nil
	case nil:
		return Spec{Name: name, Path: name}, nil
	}
	if obj, ok := objectOf(val); ok {
		return specFromObjectNamed(obj, name)
	}
	return Spec{}, fmt.Errorf("feature %q: value must be a path string or spec object, got %T", name, val)
}

func specFromObject(obj yaml.MapSlice) (Spec, error) {
	return specFromObjectNamed(obj, "")
}

// specFromObjectNamed decodes a spec object; fallback is the mapping key
// the object was declared under, used when the object itself names nothing.
func specFromObjectNamed(obj yaml.MapSlice, fallback string) (Spec, error) {
	spec := Spec{Name: fallback}
	for _, item := range obj {
		switch str(item.Key) {
		case "name":
			if s := str(item.Value); s != "" {
				spec.Name = s
			}
		case "path":
			spec.Path = str(item.Value)
		case "default":
			if f, ok := toFloat(item.Value); ok {
				spec.Default = f
			}
		}
	}
	if spec.Name == "" && spec.Path == "" {
		return Spec{}, fmt.Errorf("missing name")
	}
	if spec.Name == "" {
		spec.Name = spec.Path
	}
	if spec.Path == "" {
		spec.Path = spec.Name
	}
	return spec, nil
}

// objectOf views any decoded mapping shape as an ordered key/value list.
// Plain Go maps have no declaration order, so their keys sort
// lexicographically.
func objectOf(v any) (yaml.MapSlice, bool) {
	switch m := v.(type) {
	case yaml.MapSlice:
		return m, true
	case map[string]any:
		return toMapSlice(m), true
	}
	return nil, false
}

func toMapSlice(m map[string]any) yaml.MapSlice {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(yaml.MapSlice, 0, len(m))
	for _, k := range keys {
		out = append(out, yaml.MapItem{Key: k, Value: m[k]})
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Len returns the number of features in the map.
func (m *Map) Len() int { return len(m.specs) }

// Names returns feature names in vector index order.
func (m *Map) Names() []string {
	names := make([]string, len(m.specs))
	for i, s := range m.specs {
		names[i] = s.Name
	}
	return names
}

// Specs returns the normalized spec sequence in declaration order.
func (m *Map) Specs() []Spec {
	out := make([]Spec, len(m.specs))
	copy(out, m.specs)
	return out
}

// Extract resolves each feature against the canonical record. Canonical
// records are flat, so path resolution is a direct key lookup; absent keys
// and coercion failures both yield the declared default. Extract never
// fails.
func (m *Map) Extract(rec domain.CanonicalRecord) []float64 {
	vec := make([]float64, len(m.specs))
	for i, s := range m.specs {
		vec[i] = s.Default
		raw, ok := rec[s.Path]
		if !ok {
			continue
		}
		if f, ok := toFloat(raw); ok {
			vec[i] = f
		}
	}
	return vec
}

// toFloat coerces a scalar to float64. Booleans map to 0/1, numeric-looking
// strings parse; anything else is not coercible.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
