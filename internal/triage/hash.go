package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// HashAlert fingerprints a raw alert for dedup and cache lookups. JSON
// marshaling sorts object keys, so equivalent alerts hash identically
// regardless of ingest field order.
func HashAlert(alert domain.RawAlert) string {
	data, err := json.Marshal(alert)
	if err != nil {
		data = []byte{}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeRecord serializes an explanation record for the event bus.
func encodeRecord(rec *domain.ExplanationRecord) ([]byte, error) {
	return json.Marshal(rec)
}
