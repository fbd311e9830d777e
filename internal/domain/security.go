package domain

import "strings"

// RiskLevel enumerates guardrail outcomes.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskSeverity = map[RiskLevel]int{
	RiskSafe:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel maps a rule level to a RiskLevel; unknown values are safe.
func ParseRiskLevel(value string) RiskLevel {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := riskSeverity[level]; ok {
		return level
	}
	return RiskSafe
}

// Exceeds reports whether l is strictly more severe than other.
func (l RiskLevel) Exceeds(other RiskLevel) bool {
	return riskSeverity[l] > riskSeverity[other]
}

// GuardrailAction describes how the executor reacts to a command.
type GuardrailAction string

const (
	ActionAllow   GuardrailAction = "allow"
	ActionConfirm GuardrailAction = "confirm"
	ActionBlock   GuardrailAction = "block"
)

// ParseGuardrailAction maps a rule action; an empty or unknown action asks for
// confirmation unless level is safe.
func ParseGuardrailAction(value string, level RiskLevel) GuardrailAction {
	switch action := GuardrailAction(strings.ToLower(strings.TrimSpace(value))); action {
	case ActionAllow, ActionConfirm, ActionBlock:
		return action
	}
	if level == RiskSafe {
		return ActionAllow
	}
	return ActionConfirm
}

// RiskAssessment is the guardrail's verdict on one CommandSpec.
type RiskAssessment struct {
	Level        RiskLevel
	Action       GuardrailAction
	Reasons      []string
	MatchedRules []string
}

// Blocked reports whether the command must not reach an adapter.
func (r RiskAssessment) Blocked() bool {
	return r.Action == ActionBlock
}
