package compose

import "github.com/agentpolicylayer/apl-go/protocol"

// AllowOverrides favors proceeding: the first allow wins outright, then
// the first modify, then the first escalate, then the first deny. An
// empty list denies, on the reasoning that no policy endorsed the action.
func AllowOverrides(verdicts []protocol.Verdict) protocol.Verdict {
	if len(verdicts) == 0 {
		return protocol.Deny("No policies evaluated")
	}
	for _, d := range []protocol.Decision{protocol.DecisionAllow, protocol.DecisionModify, protocol.DecisionEscalate, protocol.DecisionDeny} {
		if v, ok := firstByDecision(verdicts, d); ok {
			return v
		}
	}
	return protocol.Deny("No policy allowed")
}
