package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/protocol"
)

func TestVerdictUnmarshal_PluralModifications(t *testing.T) {
	raw := `{"decision":"modify","modifications":[{"target":"tool_args","operation":"replace","value":{"x":1}}]}`
	var v protocol.Verdict
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	require.Len(t, v.Modifications, 1)
	assert.Equal(t, "tool_args", v.Modifications[0].Target)
	assert.Equal(t, protocol.OpReplace, v.Modifications[0].Operation)
}

func TestVerdictUnmarshal_LegacySingularModificationWrapped(t *testing.T) {
	raw := `{"decision":"modify","modification":{"target":"output_text","operation":"redact","value":"[REDACTED]"}}`
	var v protocol.Verdict
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	require.Len(t, v.Modifications, 1)
	assert.Equal(t, "output_text", v.Modifications[0].Target)
	assert.Equal(t, protocol.OpRedact, v.Modifications[0].Operation)
}

func TestVerdictUnmarshal_PluralWinsOverSingularWhenBothPresent(t *testing.T) {
	raw := `{"decision":"modify","modification":{"target":"ignored","operation":"replace","value":1},"modifications":[{"target":"kept","operation":"append","value":2}]}`
	var v protocol.Verdict
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	require.Len(t, v.Modifications, 1)
	assert.Equal(t, "kept", v.Modifications[0].Target)
}

func TestVerdictUnmarshal_NoModifications(t *testing.T) {
	var v protocol.Verdict
	require.NoError(t, json.Unmarshal([]byte(`{"decision":"allow"}`), &v))
	assert.Nil(t, v.Modifications)
}

func TestVerdictFactories(t *testing.T) {
	assert.Equal(t, protocol.DecisionAllow, protocol.Allow("ok").Decision)
	assert.Equal(t, protocol.DecisionDeny, protocol.Deny("no").Decision)

	mod := protocol.Modify("tool_args", protocol.OpReplace, map[string]any{"a": 1}, "")
	require.Len(t, mod.Modifications, 1)
	assert.Equal(t, protocol.DecisionModify, mod.Decision)

	esc := protocol.Escalate("human_review", "confirm?", "deny", nil, []string{"yes", "no"})
	require.NotNil(t, esc.Escalation)
	assert.Equal(t, "human_review", esc.Escalation.Type)

	obs := protocol.Observe(map[string]any{"k": "v"})
	assert.Equal(t, protocol.DecisionObserve, obs.Decision)
}

func TestValidateManifest_RejectsUnknownEventType(t *testing.T) {
	m := protocol.PolicyManifest{
		ServerName:      "test-server",
		ProtocolVersion: protocol.DefaultProtocolVersion,
		Policies: []protocol.PolicyDefinition{
			{Name: "p1", Events: []protocol.EventType{"bogus.event"}},
		},
	}
	err := protocol.ValidateManifest(m)
	assert.Error(t, err)
}

func TestValidateManifest_RejectsBlockingPolicyWithoutTimeout(t *testing.T) {
	m := protocol.PolicyManifest{
		ServerName:      "test-server",
		ProtocolVersion: protocol.DefaultProtocolVersion,
		Policies: []protocol.PolicyDefinition{
			{Name: "p1", Events: []protocol.EventType{protocol.EventToolPreInvoke}, Blocking: true, TimeoutMS: 0},
		},
	}
	assert.Error(t, protocol.ValidateManifest(m))
}

func TestValidateManifest_AcceptsWellFormedManifest(t *testing.T) {
	m := protocol.PolicyManifest{
		ServerName:      "test-server",
		ProtocolVersion: protocol.DefaultProtocolVersion,
		Policies: []protocol.PolicyDefinition{
			{Name: "p1", Events: []protocol.EventType{protocol.EventToolPreInvoke}, Blocking: true, TimeoutMS: 500},
		},
	}
	assert.NoError(t, protocol.ValidateManifest(m))
}
