package compose

import "github.com/agentpolicylayer/apl-go/protocol"

// DenyOverrides is the default strategy: it scans for the first deny, then
// the first escalate, then the first modify, in that priority order,
// regardless of registration order. An empty list allows.
func DenyOverrides(verdicts []protocol.Verdict) protocol.Verdict {
	return priorityScan(verdicts, "All policies allowed")
}

func priorityScan(verdicts []protocol.Verdict, allowReasoning string) protocol.Verdict {
	if len(verdicts) == 0 {
		return protocol.Allow(allowReasoning)
	}
	for _, d := range []protocol.Decision{protocol.DecisionDeny, protocol.DecisionEscalate, protocol.DecisionModify} {
		if v, ok := firstByDecision(verdicts, d); ok {
			return v
		}
	}
	return protocol.Allow(allowReasoning)
}
