// Package domain defines the core interfaces and types for XAI.
package domain

// RawAlert is an alert exactly as it arrived: an arbitrarily nested JSON
// object with no fixed schema. Ownership stays with the caller; the pipeline
// never mutates it.
type RawAlert map[string]any

// CanonicalRecord is the flat, schema-complete representation of an alert,
// independent of the source platform. Every key listed in CanonicalDefaults
// is present with a typed value, even when the raw alert carried no
// corresponding data.
type CanonicalRecord map[string]any

// CanonicalDefaults maps every documented canonical field to its typed
// default. The canonicalizer guarantees all of these keys exist on every
// record it returns; absence never propagates past the mapping stage.
var CanonicalDefaults = map[string]any{
	// endpoints
	"src_ip":   "",
	"dst_ip":   "",
	"src_port": 0,
	"dst_port": 0,
	"proto":    "na",

	// volume / timing
	"bytes_sent":   0,
	"bytes_recv":   0,
	"bytes_total":  0,
	"duration_sec": 0,
	"hour":         0,

	// severity / classification
	"rule_level":    0,
	"severity_ord":  0,
	"action":        "na",
	"threat_family": "na",
	"service_label": "NA",

	// identity
	"user":            "",
	"host":            "",
	"platform_source": "generic",
	"auth_result":     -1,
	"logon_type":      "na",

	// platform flags
	"pf_win":  0,
	"pf_lin":  0,
	"pf_nw":   0,
	"pf_osks": 0,

	// derived buckets and one-hots
	"port_bucket_low":   0,
	"port_bucket_mid":   0,
	"port_bucket_high":  0,
	"proto_tcp":         0,
	"proto_udp":         0,
	"proto_icmp":        0,
	"service_snmp":      0,
	"service_ssh":       0,
	"service_rdp":       0,
	"service_winrm":     0,
	"service_smtp":      0,
	"service_http":      0,
	"service_https":     0,
	"dst_svc_sensitive": 0,
	"dst_svc_admin":     0,
	"auth_result_pos":   0,
	"auth_result_neg":   0,
	"action_allowed":    0,
	"action_blocked":    0,
	"action_dropped":    0,
	"src_is_private":    0,
	"dst_is_private":    0,
	"same_subnet_24":    0,
	"dir_ingress":       0,
	"dir_egress":        0,
	"dir_internal":      0,
}

// Int reads an integer-valued canonical field, tolerating the numeric types
// a JSON decode or a mapper may have left behind.
func (c CanonicalRecord) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float reads a float-valued canonical field.
func (c CanonicalRecord) Float(key string) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Str reads a string-valued canonical field.
func (c CanonicalRecord) Str(key string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return ""
}
