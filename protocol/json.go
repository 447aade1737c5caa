package protocol

import (
	"encoding/json"
	"fmt"
)

// contentPart is one element of the typed-parts form a Message.Content may
// arrive as on the wire (mirrors the multi-modal chat-completion content
// array shape). Only text parts are meaningful here; other types are
// ignored on ingest.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts Content as either a bare string or an array of
// typed parts. Text parts are concatenated in order; non-text parts are
// dropped. All other fields decode normally.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role       ConversationRole `json:"role"`
		Content    json.RawMessage  `json:"content"`
		Name       string           `json:"name,omitempty"`
		ToolCallID string           `json:"tool_call_id,omitempty"`
		ToolCalls  []ToolCall       `json:"tool_calls,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Name = raw.Name
	m.ToolCallID = raw.ToolCallID
	m.ToolCalls = raw.ToolCalls

	if len(raw.Content) == 0 {
		m.Content = ""
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw.Content, &asString); err == nil {
		m.Content = asString
		return nil
	}
	var parts []contentPart
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return fmt.Errorf("protocol: message content is neither a string nor a part array: %w", err)
	}
	var text string
	for _, p := range parts {
		if p.Type == "text" || p.Type == "" {
			text += p.Text
		}
	}
	m.Content = text
	return nil
}

// eventWire is the on-the-wire shape of Event. Event.UnmarshalJSON does not
// use it; it decodes through its own local struct.
type eventWire struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp *string         `json:"timestamp"`
	Messages  []Message       `json:"messages,omitempty"`
	Payload   EventPayload    `json:"payload"`
	Metadata  SessionMetadata `json:"metadata"`
}

// UnmarshalJSON fills in defaults for an Event arriving with absent fields:
// a missing id gets a fresh UUID, a missing or unparseable timestamp gets
// now, and a missing type defaults to input.received. This mirrors the
// leniency agent runtimes need when constructing events inline rather than
// through NewEvent.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Type      EventType       `json:"type"`
		Timestamp string          `json:"timestamp"`
		Messages  []Message       `json:"messages,omitempty"`
		Payload   EventPayload    `json:"payload"`
		Metadata  SessionMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.ID = raw.ID
	if e.ID == "" {
		e.ID = NewEventID()
	}
	e.Type = raw.Type
	if e.Type == "" {
		e.Type = EventInputReceived
	}
	e.Messages = raw.Messages
	e.Payload = raw.Payload
	e.Metadata = raw.Metadata

	if raw.Timestamp == "" {
		e.Timestamp = nowUTC()
		return nil
	}
	parsed, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		e.Timestamp = nowUTC()
		return nil
	}
	e.Timestamp = parsed
	return nil
}

// verdictWire mirrors Verdict but receives Modifications as a raw message
// so both the plural array and the legacy singular object can be decoded.
type verdictWire struct {
	Decision      Decision        `json:"decision"`
	Confidence    float64         `json:"confidence"`
	Reasoning     string          `json:"reasoning,omitempty"`
	Modifications json.RawMessage `json:"modifications,omitempty"`
	Modification  json.RawMessage `json:"modification,omitempty"`
	Escalation    *Escalation     `json:"escalation,omitempty"`
	PolicyName    string          `json:"policy_name,omitempty"`
	PolicyVersion string          `json:"policy_version,omitempty"`
	EvaluationMS  float64         `json:"evaluation_ms,omitempty"`
	Trace         map[string]any  `json:"trace,omitempty"`
}

// UnmarshalJSON accepts Modifications as the canonical array under
// "modifications", or as a single legacy object under "modification",
// wrapped into a one-element slice. Both present: "modifications" wins.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw verdictWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Decision = raw.Decision
	v.Confidence = raw.Confidence
	v.Reasoning = raw.Reasoning
	v.Escalation = raw.Escalation
	v.PolicyName = raw.PolicyName
	v.PolicyVersion = raw.PolicyVersion
	v.EvaluationMS = raw.EvaluationMS
	v.Trace = raw.Trace

	switch {
	case len(raw.Modifications) > 0:
		var mods []Modification
		if err := json.Unmarshal(raw.Modifications, &mods); err != nil {
			return fmt.Errorf("protocol: decoding verdict.modifications: %w", err)
		}
		v.Modifications = mods
	case len(raw.Modification) > 0:
		var mod Modification
		if err := json.Unmarshal(raw.Modification, &mod); err != nil {
			return fmt.Errorf("protocol: decoding legacy verdict.modification: %w", err)
		}
		v.Modifications = []Modification{mod}
	}
	return nil
}
