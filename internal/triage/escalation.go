package triage

// DefaultConfidenceThreshold is the cutoff below which a classifier decision
// is raised one step.
const DefaultConfidenceThreshold = 0.7

// EscalationPolicy raises low-confidence classifier decisions one risk step.
// It never lowers risk, never runs on the rule override path, and never
// rewrites the reported confidence. High is a fixed point.
type EscalationPolicy struct {
	Threshold float64
}

// Apply returns the post-escalation risk and whether a raise happened.
func (p EscalationPolicy) Apply(risk RiskLevel, confidence float64) (RiskLevel, bool) {
	if confidence >= p.Threshold {
		return risk, false
	}
	switch risk {
	case RiskLow:
		return RiskMedium, true
	case RiskMedium:
		return RiskHigh, true
	}
	return risk, false
}
