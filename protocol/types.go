// Package protocol defines the wire contract between agent runtimes and
// policy servers: events, verdicts, manifests, and the chat-completion
// compatible message shape they carry. Types in this package are immutable
// once built; any mutation a policy requests is recorded as a Modification
// and applied by a caller (see the lifecycle package), never to the event
// itself.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of lifecycle points an agent action can emit.
// The string form is the canonical wire form.
type EventType string

const (
	EventSessionStart     EventType = "session.start"
	EventSessionEnd       EventType = "session.end"
	EventInputReceived    EventType = "input.received"
	EventInputValidated   EventType = "input.validated"
	EventLLMPreRequest    EventType = "llm.pre_request"
	EventLLMPostResponse  EventType = "llm.post_response"
	EventToolPreInvoke    EventType = "tool.pre_invoke"
	EventToolPostInvoke   EventType = "tool.post_invoke"
	EventOutputPreSend    EventType = "output.pre_send"
	EventPlanProposed     EventType = "plan.proposed"
	EventPlanApproved     EventType = "plan.approved"
	EventAgentPreHandoff  EventType = "agent.pre_handoff"
	EventAgentPostHandoff EventType = "agent.post_handoff"
)

// AllEventTypes lists every known EventType in declaration order. Used by
// validation and by tests asserting enum totality.
var AllEventTypes = []EventType{
	EventSessionStart, EventSessionEnd,
	EventInputReceived, EventInputValidated,
	EventLLMPreRequest, EventLLMPostResponse,
	EventToolPreInvoke, EventToolPostInvoke,
	EventOutputPreSend,
	EventPlanProposed, EventPlanApproved,
	EventAgentPreHandoff, EventAgentPostHandoff,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Decision is a verdict's primary action.
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionDeny     Decision = "deny"
	DecisionModify   Decision = "modify"
	DecisionEscalate Decision = "escalate"
	// DecisionObserve signals a non-blocking audit outcome: the action
	// proceeds unchanged but the verdict is recorded by any interested
	// consumer.
	DecisionObserve Decision = "observe"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionDeny, DecisionModify, DecisionEscalate, DecisionObserve:
		return true
	default:
		return false
	}
}

// ConversationRole is the chat-completion compatible role of a Message.
type ConversationRole string

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
	RoleTool      ConversationRole = "tool"
)

// ToolCallFunction names a function invocation requested by a model.
type ToolCallFunction struct {
	Name string `json:"name"`
	// Arguments is transported as a raw JSON-encoded string, preserved
	// verbatim; it is never parsed by this package.
	Arguments string `json:"arguments"`
}

// ToolCall is one entry of Message.ToolCalls.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// Message is the chat-completion compatible conversation unit carried by an
// Event. Content may arrive on the wire as a bare string or as a sequence of
// typed parts; see json.go for the ingestion rule (text parts concatenated)
// and the emission rule (always a single string).
type Message struct {
	Role       ConversationRole `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall       `json:"tool_calls,omitempty"`
}

// EventPayload carries stage-specific data. Fields are optional and are
// populated according to the event type that carries them. Kept as one flat
// optional-field record rather than a tagged union: Go's omitempty tags
// already give the flat wire shape a sum type would need extra machinery to
// reproduce, and a flat record is what the declarative rule engine's
// dot-path lookup expects.
type EventPayload struct {
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult any            `json:"tool_result,omitempty"`
	ToolError  string         `json:"tool_error,omitempty"`

	LLMModel       string `json:"llm_model,omitempty"`
	LLMPrompt      string `json:"llm_prompt,omitempty"`
	LLMResponse    string `json:"llm_response,omitempty"`
	LLMTokensUsed  int    `json:"llm_tokens_used,omitempty"`

	OutputText       string `json:"output_text,omitempty"`
	OutputStructured any    `json:"output_structured,omitempty"`

	Plan []string `json:"plan,omitempty"`

	TargetAgent     string         `json:"target_agent,omitempty"`
	SourceAgent     string         `json:"source_agent,omitempty"`
	HandoffPayload  map[string]any `json:"handoff_payload,omitempty"`
}

// SessionMetadata carries session-scoped state. Numeric budget fields enable
// stateful policies (e.g. token-budget enforcement) without the protocol
// caring about their semantics.
type SessionMetadata struct {
	SessionID      string         `json:"session_id"`
	UserID         string         `json:"user_id,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	TokenCount     int            `json:"token_count,omitempty"`
	TokenBudget    *int           `json:"token_budget,omitempty"`
	CostUSD        float64        `json:"cost_usd,omitempty"`
	CostBudgetUSD  *float64       `json:"cost_budget_usd,omitempty"`
	UserRoles      []string       `json:"user_roles,omitempty"`
	UserRegion     string         `json:"user_region,omitempty"`
	ComplianceTags []string       `json:"compliance_tags,omitempty"`
	StartedAt      time.Time      `json:"started_at,omitempty"`
	Custom         map[string]any `json:"custom,omitempty"`
}

// Event is the immutable envelope describing one lifecycle point of one
// agent action. Every Event has exactly one EventType and exactly one
// SessionMetadata.SessionID.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Messages  []Message       `json:"messages,omitempty"`
	Payload   EventPayload    `json:"payload"`
	Metadata  SessionMetadata `json:"metadata"`
}

// NewEventID returns a fresh unique event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// NewEvent builds an Event with a fresh ID and the current timestamp.
func NewEvent(eventType EventType, messages []Message, payload EventPayload, metadata SessionMetadata) Event {
	return Event{
		ID:        NewEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Messages:  messages,
		Payload:   payload,
		Metadata:  metadata,
	}
}

// ModificationOperation is the verb a Modification applies.
type ModificationOperation string

const (
	OpReplace ModificationOperation = "replace"
	OpAppend  ModificationOperation = "append"
	OpPatch   ModificationOperation = "patch"
	OpRedact  ModificationOperation = "redact"
)

// Modification is a verdict instruction to mutate an agent input or output
// before it is consumed downstream. The meaning of Target is defined per
// event type by the caller applying it (see the lifecycle package's target
// table).
type Modification struct {
	Target    string                 `json:"target"`
	Operation ModificationOperation  `json:"operation"`
	Value     any                    `json:"value"`
	Path      string                 `json:"path,omitempty"`
}

// Escalation is a verdict instruction to defer the action to a human or
// higher-authority process.
type Escalation struct {
	Type           string   `json:"type"`
	Prompt         string   `json:"prompt,omitempty"`
	FallbackAction string   `json:"fallback_action,omitempty"`
	TimeoutMS      *int     `json:"timeout_ms,omitempty"`
	Options        []string `json:"options,omitempty"`
}

// Verdict is a policy's reply for one event.
type Verdict struct {
	Decision      Decision       `json:"decision"`
	Confidence    float64        `json:"confidence"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Modifications []Modification `json:"modifications,omitempty"`
	Escalation    *Escalation    `json:"escalation,omitempty"`
	PolicyName    string         `json:"policy_name,omitempty"`
	PolicyVersion string         `json:"policy_version,omitempty"`
	EvaluationMS  float64        `json:"evaluation_ms,omitempty"`
	Trace         map[string]any `json:"trace,omitempty"`
}

// Allow builds an allow verdict with confidence 1.0.
func Allow(reasoning string) Verdict {
	return Verdict{Decision: DecisionAllow, Confidence: 1.0, Reasoning: reasoning}
}

// Deny builds a deny verdict with confidence 1.0.
func Deny(reasoning string) Verdict {
	return Verdict{Decision: DecisionDeny, Confidence: 1.0, Reasoning: reasoning}
}

// Modify builds a modify verdict with a single modification; path is
// optional and may be the empty string.
func Modify(target string, op ModificationOperation, value any, path string) Verdict {
	return Verdict{
		Decision:   DecisionModify,
		Confidence: 1.0,
		Modifications: []Modification{
			{Target: target, Operation: op, Value: value, Path: path},
		},
	}
}

// Escalate builds an escalate verdict.
func Escalate(escalationType, prompt, fallbackAction string, timeoutMS *int, options []string) Verdict {
	return Verdict{
		Decision:   DecisionEscalate,
		Confidence: 1.0,
		Escalation: &Escalation{
			Type:           escalationType,
			Prompt:         prompt,
			FallbackAction: fallbackAction,
			TimeoutMS:      timeoutMS,
			Options:        options,
		},
	}
}

// Observe builds an observe verdict, optionally carrying a trace payload.
func Observe(trace map[string]any) Verdict {
	return Verdict{Decision: DecisionObserve, Confidence: 1.0, Trace: trace}
}

// ContextRequirement advertises one dot-path a policy reads from an event.
type ContextRequirement struct {
	Path        string `json:"path"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// PolicyDefinition describes one policy within a server's manifest.
type PolicyDefinition struct {
	Name                string               `json:"name"`
	Version             string               `json:"version"`
	Description         string               `json:"description,omitempty"`
	Events              []EventType          `json:"events"`
	ContextRequirements []ContextRequirement `json:"context_requirements,omitempty"`
	Blocking            bool                 `json:"blocking"`
	TimeoutMS           int                  `json:"timeout_ms"`
	Author              string               `json:"author,omitempty"`
	Tags                []string             `json:"tags,omitempty"`
}

// DefaultProtocolVersion is the manifest protocol_version emitted when a
// server does not override it.
const DefaultProtocolVersion = "0.3.0"

// PolicyManifest is a server's self-description, published at connect time.
type PolicyManifest struct {
	ServerName        string             `json:"server_name"`
	ServerVersion     string             `json:"server_version"`
	ProtocolVersion   string             `json:"protocol_version"`
	Description       string             `json:"description,omitempty"`
	SupportsBatch      bool              `json:"supports_batch"`
	SupportsStreaming  bool              `json:"supports_streaming"`
	DocumentationURL   string            `json:"documentation_url,omitempty"`
	Policies           []PolicyDefinition `json:"policies"`
}
