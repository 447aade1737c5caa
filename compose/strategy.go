// Package compose reduces an ordered list of policy verdicts to one
// decision. Every strategy is a pure function of its input slice: given
// the same verdicts in the same order, it always returns the same result,
// and it never mutates the input.
package compose

import "github.com/agentpolicylayer/apl-go/protocol"

// Mode names a composition strategy.
type Mode string

const (
	ModeDenyOverrides  Mode = "deny_overrides"
	ModeUnanimous      Mode = "unanimous"
	ModeAllowOverrides Mode = "allow_overrides"
	ModeFirstApplicable Mode = "first_applicable"
	ModeWeighted       Mode = "weighted"
)

// Strategy reduces verdicts to a single composed Verdict.
type Strategy func(verdicts []protocol.Verdict) protocol.Verdict

// registry maps each Mode to its Strategy implementation.
var registry = map[Mode]Strategy{
	ModeDenyOverrides:   DenyOverrides,
	ModeUnanimous:       Unanimous,
	ModeAllowOverrides:  AllowOverrides,
	ModeFirstApplicable: FirstApplicable,
	ModeWeighted:        Weighted,
}

// Get resolves mode to its Strategy. ok is false for an unknown mode.
func Get(mode Mode) (Strategy, bool) {
	s, ok := registry[mode]
	return s, ok
}

// firstByDecision returns the first verdict with the given decision, and
// whether one was found.
func firstByDecision(verdicts []protocol.Verdict, d protocol.Decision) (protocol.Verdict, bool) {
	for _, v := range verdicts {
		if v.Decision == d {
			return v, true
		}
	}
	return protocol.Verdict{}, false
}
