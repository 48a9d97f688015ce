package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// longStringThreshold is the length above which CompletedJob parameter
// strings are replaced by their SHA-256 hex digest before being written to
// the status journal.
const longStringThreshold = 100

// CompletedJob is the provenance record for one executed pipeline stage.
type CompletedJob struct {
	Step       string         `json:"step"`
	CompletedAt string        `json:"completed_at"`
	DurationSec float64       `json:"duration_seconds"`
	Parameters  map[string]any `json:"parameters"`
	TokenUsage  int            `json:"token_usage_total"`
}

// DigestLongString returns the hex SHA-256 digest of s.
func DigestLongString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SerializeParameter replaces v with its SHA-256 hex digest when v is a
// string longer than longStringThreshold; everything else passes through
// unchanged.
func SerializeParameter(v any) any {
	if s, ok := v.(string); ok && len(s) > longStringThreshold {
		return DigestLongString(s)
	}
	return v
}

// SerializeParameters applies SerializeParameter to every value in params.
func SerializeParameters(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = SerializeParameter(v)
	}
	return out
}

// ParamValue is one named parameter and its current value, as fed to the
// planner's change-detection comparison.
type ParamValue struct {
	Name  string
	Value any
}

// PlanStep is one entry in a Plan: whether a stage will RUN or SKIP, and
// why.
type PlanStep struct {
	Step   string `json:"step"`
	Run    bool   `json:"run"`
	Reason string `json:"reason"`
}

// TokenUsage is an additive monoid of non-negative token counts.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Add returns the sum of two TokenUsage values.
func (t TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		Input:  t.Input + o.Input,
		Output: t.Output + o.Output,
		Total:  t.Total + o.Total,
	}
}
