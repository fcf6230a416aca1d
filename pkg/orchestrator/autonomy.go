package orchestrator

import "strings"

// AutonomyLevel is the coarse knob callers use to bound runner initiative
type AutonomyLevel string

const (
	AutonomyLow      AutonomyLevel = "low"
	AutonomyBalanced AutonomyLevel = "balanced"
	AutonomyHigh     AutonomyLevel = "high"
)

// AutonomyPolicy is the pair of flags derived from an autonomy level
type AutonomyPolicy struct {
	AllowReplan  bool `json:"allow_replan"`
	AllowPartial bool `json:"allow_partial"`
}

// ParseAutonomyLevel normalizes a level; unknown or empty values mean balanced
func ParseAutonomyLevel(level string) AutonomyLevel {
	switch AutonomyLevel(strings.ToLower(strings.TrimSpace(level))) {
	case AutonomyLow:
		return AutonomyLow
	case AutonomyHigh:
		return AutonomyHigh
	default:
		return AutonomyBalanced
	}
}

// PolicyFor maps a level to its policy. High is not yet distinct from balanced.
func PolicyFor(level AutonomyLevel) AutonomyPolicy {
	switch level {
	case AutonomyLow:
		return AutonomyPolicy{}
	default:
		return AutonomyPolicy{AllowReplan: true, AllowPartial: true}
	}
}
