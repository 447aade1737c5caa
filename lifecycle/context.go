// Package lifecycle orchestrates the ordered event sequences a policy
// layer evaluates around one agent action (an LLM call, a tool
// invocation, an agent handoff), applying any requested modification to a
// mutable Context rather than to the immutable protocol.Event that
// triggered evaluation.
package lifecycle

import "github.com/agentpolicylayer/apl-go/protocol"

// ResponseTextApplier writes newly-modified response text back into an
// SDK-specific response object, if the caller has one.
type ResponseTextApplier func(response any, newText string) any

// MessageAdapterToRaw writes modified messages back into the kwargs shape
// the wrapped SDK call expects.
type MessageAdapterToRaw func(messages []protocol.Message) any

// Context carries everything one walk of an event sequence can read from
// or write to. It is created fresh per action and discarded once the
// sequence finishes; nothing here is shared across actions.
type Context struct {
	RawMessages      any
	Messages         []protocol.Message
	ModelName        string

	OriginalKwargs map[string]any
	ModifiedKwargs map[string]any

	Response     any
	ResponseText string

	ToolName   string
	ToolArgs   map[string]any
	ToolResult any

	ProposedPlan []string

	SourceAgent    string
	TargetAgent    string
	HandoffPayload map[string]any

	ResponseTextApplier ResponseTextApplier
	MessageAdapter      MessageAdapterToRaw
}

// NewContext returns a Context with ModelName defaulted to "unknown",
// matching the source's dataclass default for a field hosts sometimes
// cannot populate before the first LLM response arrives.
func NewContext() *Context {
	return &Context{ModelName: "unknown", ModifiedKwargs: map[string]any{}}
}

// ModifyRequestMessages overwrites Messages and, if present, threads the
// change back into ModifiedKwargs via MessageAdapter.
func (c *Context) ModifyRequestMessages(messages []protocol.Message) {
	c.Messages = messages
	if c.MessageAdapter != nil {
		c.ModifiedKwargs["messages"] = c.MessageAdapter(messages)
	}
}

// ModifyResponseText overwrites ResponseText and, if both Response and
// ResponseTextApplier are set, writes the new text back into Response.
func (c *Context) ModifyResponseText(text string) {
	c.ResponseText = text
	if c.Response != nil && c.ResponseTextApplier != nil {
		c.Response = c.ResponseTextApplier(c.Response, text)
	}
}

// ModifyToolArgs overwrites ToolArgs.
func (c *Context) ModifyToolArgs(args map[string]any) {
	c.ToolArgs = args
}

// ModifyToolResult overwrites ToolResult.
func (c *Context) ModifyToolResult(result any) {
	c.ToolResult = result
}

// ModifyProposedPlan overwrites ProposedPlan.
func (c *Context) ModifyProposedPlan(plan []string) {
	c.ProposedPlan = plan
}

// ModifyHandoffPayload overwrites HandoffPayload.
func (c *Context) ModifyHandoffPayload(payload map[string]any) {
	c.HandoffPayload = payload
}

// EffectiveKwargs merges OriginalKwargs and ModifiedKwargs, with
// ModifiedKwargs entries taking precedence, for handing to the wrapped SDK
// call.
func (c *Context) EffectiveKwargs() map[string]any {
	merged := make(map[string]any, len(c.OriginalKwargs)+len(c.ModifiedKwargs))
	for k, v := range c.OriginalKwargs {
		merged[k] = v
	}
	for k, v := range c.ModifiedKwargs {
		merged[k] = v
	}
	return merged
}
