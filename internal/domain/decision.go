package domain

import (
	"time"
)

// Decision is the triage verdict the policy engine produces for one alert.
type Decision struct {
	// Tag is the severity tag: "info", "low", "medium", "high" or "critical".
	Tag string `json:"tag"`

	// Threshold is the decision threshold used for binary labeling.
	Threshold float64 `json:"threshold"`

	// BoostedScore is the model score plus accumulated override bumps,
	// clamped to [0,1].
	BoostedScore float64 `json:"boostedScore"`

	Action          string   `json:"action"`
	Recommendations []string `json:"recommendations,omitempty"`

	// Attribution reports whether per-feature attribution should be computed
	// for this alert, and TopK how many features to surface.
	Attribution bool `json:"attribution"`
	TopK        int  `json:"topK"`

	// Reasons lists why the tag was chosen, override reasons first.
	Reasons []string `json:"reasons,omitempty"`
}

// Contribution is one ranked entry of an explanation: a feature, its value in
// the scored vector, and its attribution toward the model score.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Severity tag constants, ordered by TagRank.
const (
	TagInfo     = "info"
	TagLow      = "low"
	TagMedium   = "medium"
	TagHigh     = "high"
	TagCritical = "critical"
)

// TagRank returns the ordinal position of a severity tag. Unknown tags rank
// below "info" so they never win an escalation comparison.
func TagRank(tag string) int {
	switch tag {
	case TagCritical:
		return 4
	case TagHigh:
		return 3
	case TagMedium:
		return 2
	case TagLow:
		return 1
	case TagInfo:
		return 0
	}
	return -1
}

// Labels for binary classification against the decision threshold.
const (
	LabelMalicious = "malicious"
	LabelBenign    = "benign"
)

// ExplanationRecord is the persisted result of one triage run.
type ExplanationRecord struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	AlertID  string `json:"alertId"`
	Source   string `json:"source"`

	Score       float64        `json:"score"`
	Label       string         `json:"label"`
	Decision    Decision       `json:"decision"`
	TopFeatures []Contribution `json:"topFeatures,omitempty"`

	// AttributionMethod names the backend that produced the explanation:
	// "exact", "sampled", "importance" or "" when all backends failed.
	AttributionMethod string `json:"attributionMethod,omitempty"`

	// RawHash fingerprints the raw alert for dedup and cache lookups.
	RawHash string `json:"rawHash"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	Metadata ExplanationMetadata `json:"metadata"`
}

// ExplanationMetadata carries processing information alongside a record.
type ExplanationMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	CanonMs       int64  `json:"canonMs"`
	ScoreMs       int64  `json:"scoreMs"`
	AttributionMs int64  `json:"attributionMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`

	// SourceAlertCount is the number of alerts seen from the same platform
	// source inside the rate window, when a cache is configured.
	SourceAlertCount int64 `json:"sourceAlertCount,omitempty"`
}

// Feedback is one analyst verdict on a stored explanation.
type Feedback struct {
	AlertID    string    `json:"alertId"`
	TenantID   string    `json:"tenantId"`
	TrustScore int       `json:"trustScore"` // 1..5, clamped by the feedback manager
	Overridden bool      `json:"overridden"`
	DecisionMs int64     `json:"decisionMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FeedbackMetrics aggregates stored feedback for the operator endpoint.
type FeedbackMetrics struct {
	TotalFeedback int64    `json:"totalFeedback"`
	AvgTrust      *float64 `json:"avgTrust"`
	OverrideRate  *float64 `json:"overrideRate"`
}
