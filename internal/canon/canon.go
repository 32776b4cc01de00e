// Package canon maps heterogeneous security-alert records onto one flat
// canonical record with a fixed semantic schema.
//
// The package never fails: unknown platforms fall through to a generic
// mapper, and any field access or coercion failure degrades to the field's
// documented default.
package canon

import (
	"strconv"
	"strings"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// SourceKind identifies the originating platform of an alert.
type SourceKind int

const (
	SourceGeneric SourceKind = iota
	SourceNetwork
	SourceWindows
	SourceLinux
	SourceOpenStack
)

// String returns the platform_source value recorded for this kind.
func (k SourceKind) String() string {
	switch k {
	case SourceNetwork:
		return "network"
	case SourceWindows:
		return "windows"
	case SourceLinux:
		return "linux"
	case SourceOpenStack:
		return "openstack"
	}
	return "generic"
}

var networkKeywords = []string{"fortigate", "cisco", "unifi", "asa", "firewall", "router", "switch"}
var openstackKeywords = []string{"openstack", "nova", "keystone", "neutron"}

// Classify detects the source platform of a raw alert. The cascade is a
// strict precedence order, first match wins: network appliance keywords,
// Windows event markers, Linux markers, cloud-API markers, structural hints,
// then the generic fallback.
func Classify(alert domain.RawAlert) SourceKind {
	dec := strings.ToLower(str(dig(alert, "decoder", "name")))
	agent := strings.ToLower(str(dig(alert, "agent", "name")))

	var groups []string
	if gs, ok := dig(alert, "rule", "groups").([]any); ok {
		for _, g := range gs {
			groups = append(groups, strings.ToLower(str(g)))
		}
	}
	full := dec + " " + strings.Join(groups, " ") + " " + agent

	for _, k := range networkKeywords {
		if strings.Contains(full, k) {
			return SourceNetwork
		}
	}
	if strings.Contains(full, "windows") || strings.Contains(dec, "win") ||
		strings.Contains(agent, "win") || dig(alert, "win", "event") != nil {
		return SourceWindows
	}
	if strings.Contains(full, "linux") {
		return SourceLinux
	}
	for _, k := range openstackKeywords {
		if strings.Contains(full, k) {
			return SourceOpenStack
		}
	}
	// Structural hints: a device-id field or an intrusion-prevention subtype
	// identify network gear even when the decoder name gives nothing away.
	if str(dig(alert, "data", "devid")) != "" || str(dig(alert, "data", "subtype")) == "ips" {
		return SourceNetwork
	}
	return SourceGeneric
}

// Canonicalize maps a raw alert to a canonical record. The returned record
// contains every key in domain.CanonicalDefaults regardless of what the
// alert carried.
func Canonicalize(alert domain.RawAlert) domain.CanonicalRecord {
	kind := Classify(alert)

	var rec domain.CanonicalRecord
	switch kind {
	case SourceNetwork:
		rec = mapNetwork(alert)
	case SourceWindows:
		rec = mapWindows(alert)
	case SourceLinux:
		rec = mapLinux(alert)
	case SourceOpenStack:
		rec = mapOpenStack(alert)
	default:
		rec = mapGeneric(alert)
	}

	rec["platform_source"] = kind.String()
	augment(rec, kind, alert)
	complete(rec)
	return rec
}

// mapNetwork handles firewall/router/switch alerts (FortiGate, Cisco ASA,
// UniFi and structurally similar payloads).
func mapNetwork(alert domain.RawAlert) domain.CanonicalRecord {
	d := section(alert, "data")
	r := section(alert, "rule")
	srcPort := toInt(d["srcport"], 0)
	dstPort := toInt(d["dstport"], 0)

	sev := d["severity"]
	if sev == nil {
		sev = r["level"]
	}

	return domain.CanonicalRecord{
		"src_ip":   firstStr(d["srcip"], d["src"]),
		"dst_ip":   firstStr(d["dstip"], d["dst"]),
		"src_port": srcPort,
		"dst_port": dstPort,
		"proto":    firstStrDefault("na", d["proto"], d["proto_name"]),

		"bytes_sent":   toInt(d["sentbyte"], 0),
		"bytes_recv":   toInt(d["rcvdbyte"], 0),
		"duration_sec": toInt(d["duration"], 0),

		"rule_level":    toInt(r["level"], 0),
		"severity_ord":  severityOrd(sev),
		"action":        strings.ToLower(str(d["action"])),
		"threat_family": strings.ToLower(firstStrDefault("na", d["subtype"])),
		"service_label": normService(dstPort, str(d["service"])),

		"user": str(d["srcuser"]),
		"host": firstStr(d["devname"], dig(alert, "agent", "name")),
	}
}

// mapWindows handles Windows event-log alerts. Event 4624 is a successful
// logon, 4625 a failed one; logon types 10 and 7 indicate RDP.
func mapWindows(alert domain.RawAlert) domain.CanonicalRecord {
	win := section(section(alert, "win"), "event")
	r := section(alert, "rule")

	code := str(win["code"])
	authResult := -1
	if code == "4624" {
		authResult = 1
	} else if code == "4625" {
		authResult = 0
	}

	logonType := firstStr(win["LogonType"], win["logon_type"])
	serviceLabel := "NA"
	dstPort := 0
	if logonType == "10" || logonType == "7" {
		serviceLabel = "RDP"
		dstPort = 3389
	}

	rec := domain.CanonicalRecord{
		"src_ip":   str(win["IpAddress"]),
		"dst_ip":   "",
		"src_port": toInt(win["IpPort"], 0),
		"dst_port": dstPort,
		"proto":    "tcp",

		"rule_level":    toInt(r["level"], 0),
		"action":        "na",
		"threat_family": "auth",
		"service_label": serviceLabel,

		"user":        firstStr(win["TargetUserName"], win["AccountName"]),
		"host":        str(dig(alert, "agent", "name")),
		"auth_result": authResult,
	}
	if logonType != "" {
		rec["logon_type"] = logonType
	}
	return rec
}

// mapLinux handles Linux syslog alerts by substring-matching the log
// message. Only sshd authentication outcomes are recognized.
func mapLinux(alert domain.RawAlert) domain.CanonicalRecord {
	msg := strings.ToLower(str(alert["full_log"]))

	authResult := -1
	if strings.Contains(msg, "accepted password") {
		authResult = 1
	} else if strings.Contains(msg, "failed password") {
		authResult = 0
	}

	dstPort := 0
	threatFamily := "na"
	serviceLabel := "NA"
	if strings.Contains(msg, "sshd") {
		dstPort = 22
		threatFamily = "auth"
		serviceLabel = "SSH"
	}

	return domain.CanonicalRecord{
		"dst_port": dstPort,
		"proto":    "tcp",

		"rule_level":    toInt(dig(alert, "rule", "level"), 0),
		"action":        "na",
		"threat_family": threatFamily,
		"service_label": serviceLabel,

		"host":        str(dig(alert, "agent", "name")),
		"auth_result": authResult,
	}
}

// mapOpenStack handles cloud-API audit alerts (nova/keystone/neutron).
func mapOpenStack(alert domain.RawAlert) domain.CanonicalRecord {
	d := section(alert, "data")

	outcome := strings.ToLower(firstStr(d["outcome"], d["status"]))
	authResult := -1
	if outcome == "success" {
		authResult = 1
	} else if outcome == "failure" {
		authResult = 0
	}

	threatFamily := "na"
	if authResult != -1 {
		threatFamily = "auth"
	}

	return domain.CanonicalRecord{
		"src_ip": str(d["remote_address"]),
		"proto":  "tcp",

		"bytes_sent":   toInt(d["bytes_sent"], 0),
		"bytes_recv":   toInt(d["bytes_received"], 0),
		"duration_sec": toInt(d["duration"], 0),

		"rule_level":    toInt(dig(alert, "rule", "level"), 0),
		"action":        "na",
		"threat_family": threatFamily,
		"service_label": "API",

		"user":        str(d["username"]),
		"host":        firstStrDefault("openstack", d["service"]),
		"auth_result": authResult,
		"logon_type":  "api",
	}
}

// mapGeneric reads the same field names as the network mapper so that
// unrecognized platforms still yield usable records.
func mapGeneric(alert domain.RawAlert) domain.CanonicalRecord {
	d := section(alert, "data")
	r := section(alert, "rule")
	dstPort := toInt(d["dstport"], 0)

	sev := d["severity"]
	if sev == nil {
		sev = r["level"]
	}

	return domain.CanonicalRecord{
		"src_ip":   str(d["srcip"]),
		"dst_ip":   str(d["dstip"]),
		"src_port": toInt(d["srcport"], 0),
		"dst_port": dstPort,
		"proto":    firstStrDefault("na", d["proto"]),

		"bytes_sent":   toInt(d["sentbyte"], 0),
		"bytes_recv":   toInt(d["rcvdbyte"], 0),
		"duration_sec": toInt(d["duration"], 0),

		"rule_level":    toInt(r["level"], 0),
		"severity_ord":  severityOrd(sev),
		"action":        strings.ToLower(firstStrDefault("na", d["action"])),
		"threat_family": strings.ToLower(firstStrDefault("na", d["subtype"])),
		"service_label": normService(dstPort, str(d["service"])),

		"user": str(d["user"]),
		"host": str(dig(alert, "agent", "name")),
	}
}

// complete fills every missing canonical key with its typed default so the
// schema invariant holds for all sources, including the empty alert.
func complete(rec domain.CanonicalRecord) {
	for k, def := range domain.CanonicalDefaults {
		if _, ok := rec[k]; !ok {
			rec[k] = def
		}
	}
}

// severityOrd maps a severity to the 0..3 ordinal. Numeric rule levels take
// precedence over string severities: >=12 critical, >=9 high, >=6 medium.
func severityOrd(v any) int {
	if lvl, ok := asInt(v); ok {
		switch {
		case lvl >= 12:
			return 3
		case lvl >= 9:
			return 2
		case lvl >= 6:
			return 1
		}
		return 0
	}
	switch strings.ToLower(strings.TrimSpace(str(v))) {
	case "critical":
		return 3
	case "high":
		return 2
	case "medium":
		return 1
	}
	return 0
}

// normService normalizes a destination port plus free-form service string
// into one of the canonical service labels.
func normService(port int, service string) string {
	svc := strings.ToUpper(strings.TrimSpace(service))
	switch {
	case port == 22 || svc == "SSH":
		return "SSH"
	case port == 3389 || svc == "RDP":
		return "RDP"
	case port == 5985 || port == 5986 || svc == "WINRM" || svc == "WMI":
		return "WINRM"
	case port == 161 || svc == "SNMP":
		return "SNMP"
	case port == 443:
		return "HTTPS"
	case port == 80 || svc == "HTTP" || svc == "HTTPS":
		if svc == "HTTPS" {
			return "HTTPS"
		}
		return "HTTP"
	case port == 53 || svc == "DNS":
		return "DNS"
	case port == 25 || svc == "SMTP" || svc == "SMTPS":
		return "SMTP"
	}
	if svc == "" {
		return "NA"
	}
	return svc
}

// ---- raw-alert access helpers ----

// section returns a nested object field as a map, or an empty map when the
// field is absent or has the wrong shape.
func section(m map[string]any, key string) map[string]any {
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return map[string]any{}
}

// dig walks a path of object keys, returning nil as soon as any step is
// missing or not an object.
func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

// str renders a scalar as a string; nil and non-scalars become "".
func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// firstStr returns the first value that renders to a non-empty string.
func firstStr(vals ...any) string {
	for _, v := range vals {
		if s := str(v); s != "" {
			return s
		}
	}
	return ""
}

func firstStrDefault(def string, vals ...any) string {
	if s := firstStr(vals...); s != "" {
		return s
	}
	return def
}

// asInt reports whether v is numeric (or an all-digit string) and returns
// its integer value.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}

// toInt coerces a scalar to int, degrading to def on any failure.
func toInt(v any, def int) int {
	if i, ok := asInt(v); ok {
		return i
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str(v)), 64); err == nil {
		return int(f)
	}
	return def
}
