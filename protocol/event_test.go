package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/protocol"
)

func TestEventUnmarshal_DefaultsMissingFields(t *testing.T) {
	var e protocol.Event
	err := json.Unmarshal([]byte(`{"metadata":{"session_id":"s1"}}`), &e)
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, protocol.EventInputReceived, e.Type)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, 5*time.Second)
	assert.Equal(t, "s1", e.Metadata.SessionID)
}

func TestEventUnmarshal_PreservesExplicitFields(t *testing.T) {
	ts := "2026-01-15T10:00:00Z"
	raw := `{"id":"evt-1","type":"tool.pre_invoke","timestamp":"` + ts + `","metadata":{"session_id":"s1"}}`

	var e protocol.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "evt-1", e.ID)
	assert.Equal(t, protocol.EventToolPreInvoke, e.Type)
	assert.Equal(t, "2026-01-15T10:00:00Z", e.Timestamp.Format(time.RFC3339))
}

func TestEventUnmarshal_UnparseableTimestampFallsBackToNow(t *testing.T) {
	var e protocol.Event
	raw := `{"id":"evt-2","type":"session.start","timestamp":"not-a-time","metadata":{"session_id":"s1"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, 5*time.Second)
}

func TestMessageUnmarshal_StringContent(t *testing.T) {
	var m protocol.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &m))
	assert.Equal(t, "hello", m.Content)
}

func TestMessageUnmarshal_PartsContentConcatenatesText(t *testing.T) {
	var m protocol.Message
	raw := `{"role":"user","content":[{"type":"text","text":"hello "},{"type":"image","text":"ignored"},{"type":"text","text":"world"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "hello world", m.Content)
}

func TestMessageUnmarshal_EmptyContent(t *testing.T) {
	var m protocol.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant"}`), &m))
	assert.Equal(t, "", m.Content)
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, protocol.EventToolPreInvoke.Valid())
	assert.False(t, protocol.EventType("bogus.event").Valid())
}

func TestNewEvent_SetsFreshIDAndTimestamp(t *testing.T) {
	e1 := protocol.NewEvent(protocol.EventSessionStart, nil, protocol.EventPayload{}, protocol.SessionMetadata{SessionID: "s1"})
	e2 := protocol.NewEvent(protocol.EventSessionStart, nil, protocol.EventPayload{}, protocol.SessionMetadata{SessionID: "s1"})
	assert.NotEqual(t, e1.ID, e2.ID)
}
