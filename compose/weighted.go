package compose

import (
	"fmt"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// Weighted sums Confidence across allow verdicts and across deny verdicts;
// modify and escalate verdicts do not participate in the sums. A deny sum
// that strictly exceeds the allow sum produces the first deny verdict
// (or, if none exists despite a positive sum, a synthetic one); otherwise
// the result allows, carrying both scores in its reasoning. Ties favor
// allow.
func Weighted(verdicts []protocol.Verdict) protocol.Verdict {
	if len(verdicts) == 0 {
		return protocol.Allow("No policies evaluated")
	}

	var allowScore, denyScore float64
	for _, v := range verdicts {
		switch v.Decision {
		case protocol.DecisionAllow:
			allowScore += v.Confidence
		case protocol.DecisionDeny:
			denyScore += v.Confidence
		}
	}

	if denyScore > allowScore {
		if v, ok := firstByDecision(verdicts, protocol.DecisionDeny); ok {
			return v
		}
		return protocol.Deny(fmt.Sprintf("Weighted deny (%.2f vs %.2f)", denyScore, allowScore))
	}
	return protocol.Allow(fmt.Sprintf("Weighted allow (%.2f vs %.2f)", allowScore, denyScore))
}
