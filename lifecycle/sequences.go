package lifecycle

import "github.com/agentpolicylayer/apl-go/protocol"

// Sequence is an ordered list of event types walked for one lifecycle
// point of one agent action.
type Sequence []protocol.EventType

// Predefined sequences, one per lifecycle point a provider shim hooks.
var (
	LLMPreRequestSequence    = Sequence{protocol.EventInputReceived, protocol.EventLLMPreRequest}
	LLMPostResponseSequence  = Sequence{protocol.EventLLMPostResponse, protocol.EventOutputPreSend}
	ToolPreInvokeSequence    = Sequence{protocol.EventToolPreInvoke}
	ToolPostInvokeSequence   = Sequence{protocol.EventToolPostInvoke}
	AgentHandoffPreSequence  = Sequence{protocol.EventAgentPreHandoff}
	AgentHandoffPostSequence = Sequence{protocol.EventAgentPostHandoff}
	SessionStartSequence     = Sequence{protocol.EventSessionStart}
	SessionEndSequence       = Sequence{protocol.EventSessionEnd}
)
