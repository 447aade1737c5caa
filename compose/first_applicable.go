package compose

import "github.com/agentpolicylayer/apl-go/protocol"

// FirstApplicable returns the first verdict that is not observe, preserving
// registration order. observe verdicts are transparent: they never block,
// so a run of leading observe verdicts is skipped. An empty list, or a
// list of only observe verdicts, allows.
func FirstApplicable(verdicts []protocol.Verdict) protocol.Verdict {
	if len(verdicts) == 0 {
		return protocol.Allow("No policies evaluated")
	}
	for _, v := range verdicts {
		if v.Decision != protocol.DecisionObserve {
			return v
		}
	}
	return protocol.Allow("No applicable policy")
}
