package lifecycle

import "github.com/agentpolicylayer/apl-go/protocol"

// ProviderShim is the seam a concrete SDK integration (Anthropic, OpenAI,
// Bedrock, …) implements outside this module to hook its calls into the
// lifecycle executor. It mirrors the three responsibilities the source's
// base provider formalizes: extract, patch, write-back.
type ProviderShim interface {
	// ExtractMessages converts the SDK's raw request representation into
	// the protocol's Message form, for handing to Context.Messages.
	ExtractMessages(raw any) []protocol.Message

	// InvokeLifecycle runs the underlying SDK call with c's effective
	// kwargs and returns the SDK's raw response.
	InvokeLifecycle(c *Context) (any, error)

	// ApplyModification writes a target-specific modification back into
	// the SDK-specific request or response object c carries, for targets
	// the generic ApplyModification function cannot resolve on its own
	// (e.g. a provider-specific request struct rather than a plain map).
	ApplyModification(c *Context, mod protocol.Modification)
}
