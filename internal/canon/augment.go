package canon

import (
	"net"
	"strings"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Fixed sets used for the sensitive-port and admin-service flags.
var (
	sensitivePorts = map[int]bool{22: true, 3389: true, 5985: true, 5986: true, 445: true}
	adminServices  = map[string]bool{"SSH": true, "RDP": true, "WINRM": true, "WMI": true}
)

// augment derives the booleans and buckets that feature maps resolve
// against. It is applied uniformly regardless of source.
func augment(rec domain.CanonicalRecord, kind SourceKind, alert domain.RawAlert) {
	rec["pf_win"] = boolBit(kind == SourceWindows)
	rec["pf_lin"] = boolBit(kind == SourceLinux)
	rec["pf_nw"] = boolBit(kind == SourceNetwork)
	rec["pf_osks"] = boolBit(kind == SourceOpenStack)

	bytesSent := rec.Int("bytes_sent")
	bytesRecv := rec.Int("bytes_recv")
	rec["bytes_total"] = bytesSent + bytesRecv

	// Port-range buckets: well-known, registered, ephemeral.
	dstPort := rec.Int("dst_port")
	rec["port_bucket_low"] = boolBit(dstPort > 0 && dstPort <= 1024)
	rec["port_bucket_mid"] = boolBit(dstPort >= 1025 && dstPort <= 49151)
	rec["port_bucket_high"] = boolBit(dstPort >= 49152)

	proto := protoToken(rec.Str("proto"))
	rec["proto_tcp"] = boolBit(proto == "tcp")
	rec["proto_udp"] = boolBit(proto == "udp")
	rec["proto_icmp"] = boolBit(proto == "icmp")

	svc := strings.ToUpper(rec.Str("service_label"))
	rec["service_snmp"] = boolBit(svc == "SNMP")
	rec["service_ssh"] = boolBit(svc == "SSH")
	rec["service_rdp"] = boolBit(svc == "RDP")
	rec["service_winrm"] = boolBit(svc == "WINRM")
	rec["service_smtp"] = boolBit(svc == "SMTP")
	rec["service_http"] = boolBit(svc == "HTTP")
	rec["service_https"] = boolBit(svc == "HTTPS")

	rec["dst_svc_sensitive"] = boolBit(sensitivePorts[dstPort])
	rec["dst_svc_admin"] = boolBit(adminServices[svc])

	authResult := -1
	if v, ok := asInt(rec["auth_result"]); ok {
		authResult = v
	}
	rec["auth_result"] = authResult
	rec["auth_result_pos"] = boolBit(authResult == 1)
	rec["auth_result_neg"] = boolBit(authResult == 0)

	act := strings.ToLower(rec.Str("action"))
	allowed := act == "allow" || act == "allowed" || act == "accept" || act == "permitted"
	rec["action_allowed"] = boolBit(allowed)
	rec["action_blocked"] = boolBit(act == "block" || act == "blocked" || act == "deny" || act == "denied")
	rec["action_dropped"] = boolBit(act == "drop" || act == "dropped")

	srcIP := rec.Str("src_ip")
	dstIP := rec.Str("dst_ip")
	srcPrivate := isPrivate(srcIP)
	dstPrivate := isPrivate(dstIP)
	rec["src_is_private"] = boolBit(srcPrivate)
	rec["dst_is_private"] = boolBit(dstPrivate)
	rec["same_subnet_24"] = boolBit(same24(srcIP, dstIP))

	// Direction heuristic, meaningful only for allowed network-platform
	// traffic with at least one classified endpoint.
	allowDir := act == "allow" || act == "allowed" || act == "accept"
	nw := kind == SourceNetwork
	rec["dir_ingress"] = boolBit(allowDir && nw && dstPrivate)
	rec["dir_egress"] = boolBit(allowDir && nw && srcPrivate && !dstPrivate)
	rec["dir_internal"] = boolBit(srcPrivate && dstPrivate)

	rec["hour"] = hourOfDay(alert)
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// protoToken normalizes a protocol value, accepting IANA numeric codes.
func protoToken(raw string) string {
	tok := strings.ToLower(strings.TrimSpace(raw))
	switch tok {
	case "6":
		return "tcp"
	case "17":
		return "udp"
	case "1":
		return "icmp"
	}
	if tok != "" && tok[0] >= '0' && tok[0] <= '9' {
		return "other"
	}
	return tok
}

// isPrivate reports whether s parses as an IP address in private, loopback
// or link-local space. Malformed strings are simply not private.
func isPrivate(s string) bool {
	if s == "" {
		return false
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

// same24 reports whether two IPv4-looking strings share a /24 prefix.
func same24(a, b string) bool {
	a4 := strings.Split(a, ".")
	b4 := strings.Split(b, ".")
	if len(a4) != 4 || len(b4) != 4 {
		return false
	}
	return a4[0] == b4[0] && a4[1] == b4[1] && a4[2] == b4[2]
}

// hourOfDay extracts the hour from the alert timestamp when one is present
// and parseable; everything else degrades to 0.
func hourOfDay(alert domain.RawAlert) int {
	raw := firstStr(alert["@timestamp"], alert["timestamp"])
	if raw == "" {
		return 0
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour()
		}
	}
	return 0
}
