package compose

import "github.com/agentpolicylayer/apl-go/protocol"

// Unanimous runs the same priority scan as DenyOverrides, differing only in
// the reasoning string attached when every policy allowed.
func Unanimous(verdicts []protocol.Verdict) protocol.Verdict {
	if len(verdicts) == 0 {
		return protocol.Allow("No policies evaluated")
	}
	return priorityScan(verdicts, "All policies agreed")
}
