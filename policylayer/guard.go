package policylayer

import (
	"context"
	"fmt"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// PolicyDenied is returned by a Guard-wrapped call when the composed
// verdict is deny. The original verdict is attached so a caller can
// report the policy name and reasoning that caused the block.
type PolicyDenied struct {
	Verdict protocol.Verdict
}

func (e *PolicyDenied) Error() string {
	return fmt.Sprintf("policy denied: %s", e.Verdict.Reasoning)
}

// PolicyEscalation is returned by a Guard-wrapped call when the composed
// verdict is escalate.
type PolicyEscalation struct {
	Verdict protocol.Verdict
}

func (e *PolicyEscalation) Error() string {
	return fmt.Sprintf("policy escalated: %s", e.Verdict.Escalation.Prompt)
}

// ToolCall is the shape Guard's generic parameter instantiates for tool
// invocations: a name and an argument map, the only two fields the
// modify/tool_args splice needs to act on.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Guard wraps fn with a policy check against layer for eventType, built
// from call. It is the Go shape of the source's decorator: Go has no
// decorator syntax, so the wrapping happens as an explicit higher-order
// function a caller applies once at registration time rather than via an
// annotation.
//
// On allow/observe, fn runs unmodified. On modify with
// target=="tool_args", operation=="replace", call.Args is replaced with
// the modification's value before fn runs. On deny, Guard returns
// *PolicyDenied without calling fn. On escalate, it returns
// *PolicyEscalation without calling fn.
func Guard(ctx context.Context, layer *Layer, eventType protocol.EventType, call ToolCall, fn func(ToolCall) (any, error)) (any, error) {
	payload := protocol.EventPayload{ToolName: call.Name, ToolArgs: call.Args}
	verdict, err := layer.Evaluate(ctx, eventType, nil, payload, protocol.SessionMetadata{})
	if err != nil {
		return nil, fmt.Errorf("policylayer: guard evaluation failed: %w", err)
	}

	switch verdict.Decision {
	case protocol.DecisionDeny:
		return nil, &PolicyDenied{Verdict: verdict}
	case protocol.DecisionEscalate:
		return nil, &PolicyEscalation{Verdict: verdict}
	case protocol.DecisionModify:
		for _, mod := range verdict.Modifications {
			if mod.Target == "tool_args" && mod.Operation == protocol.OpReplace {
				if args, ok := mod.Value.(map[string]any); ok {
					call.Args = args
				}
			}
		}
	}
	return fn(call)
}
