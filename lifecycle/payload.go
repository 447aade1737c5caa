package lifecycle

import "github.com/agentpolicylayer/apl-go/protocol"

// buildPayload reads the context fields relevant to eventType and returns
// the EventPayload an executor sends for that one event. Fields the event
// type does not use are left at their zero value; protocol's omitempty
// tags keep them off the wire.
func buildPayload(eventType protocol.EventType, c *Context) protocol.EventPayload {
	switch eventType {
	case protocol.EventInputReceived, protocol.EventLLMPreRequest:
		return protocol.EventPayload{LLMModel: c.ModelName}
	case protocol.EventLLMPostResponse, protocol.EventOutputPreSend:
		return protocol.EventPayload{LLMModel: c.ModelName, LLMResponse: c.ResponseText, OutputText: c.ResponseText}
	case protocol.EventToolPreInvoke, protocol.EventToolPostInvoke:
		return protocol.EventPayload{ToolName: c.ToolName, ToolArgs: c.ToolArgs, ToolResult: c.ToolResult}
	case protocol.EventPlanProposed, protocol.EventPlanApproved:
		return protocol.EventPayload{Plan: c.ProposedPlan}
	case protocol.EventAgentPreHandoff, protocol.EventAgentPostHandoff:
		return protocol.EventPayload{SourceAgent: c.SourceAgent, TargetAgent: c.TargetAgent, HandoffPayload: c.HandoffPayload}
	default:
		return protocol.EventPayload{}
	}
}

// ApplyModification mutates c per mod's target, following the fixed
// target-to-field table: input/llm_prompt overwrites request messages,
// output overwrites response text, tool_args/tool_result/plan/
// handoff_payload overwrite their respective context fields. An
// unrecognized target is ignored: a policy author targeting a field this
// executor doesn't know about should not crash the host action.
func ApplyModification(c *Context, mod protocol.Modification) {
	switch mod.Target {
	case "input", "llm_prompt":
		if messages, ok := mod.Value.([]protocol.Message); ok {
			c.ModifyRequestMessages(messages)
		}
	case "output":
		if text, ok := mod.Value.(string); ok {
			c.ModifyResponseText(text)
		}
	case "tool_args":
		if args, ok := mod.Value.(map[string]any); ok {
			c.ModifyToolArgs(args)
		}
	case "tool_result":
		c.ModifyToolResult(mod.Value)
	case "plan":
		if plan, ok := mod.Value.([]string); ok {
			c.ModifyProposedPlan(plan)
		}
	case "handoff_payload":
		if payload, ok := mod.Value.(map[string]any); ok {
			c.ModifyHandoffPayload(payload)
		}
	}
}
