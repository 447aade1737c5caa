package ruleengine

import (
	"context"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// Handler is the function shape a policy server invokes per event.
type Handler func(ctx context.Context, event protocol.Event) (protocol.Verdict, error)

// CompileHandler closes over policy's rules and returns a Handler that
// evaluates them in declared order against whatever event it is called
// with. The returned handler ignores ctx: rule evaluation is pure and
// synchronous, so it cannot itself block past its deadline; the timeout
// contract lives entirely in the invoker that calls Handler.
func CompileHandler(policy PolicyManifest) Handler {
	return func(_ context.Context, event protocol.Event) (protocol.Verdict, error) {
		return EvaluatePolicy(policy, event), nil
	}
}
