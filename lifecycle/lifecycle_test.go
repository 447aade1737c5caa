package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/lifecycle"
	"github.com/agentpolicylayer/apl-go/protocol"
)

var assertErr = errors.New("lifecycle_test: injected failure")

type fakeEvaluator struct {
	verdicts map[protocol.EventType]protocol.Verdict
	calls    []protocol.EventType
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, eventType protocol.EventType, messages []protocol.Message, payload protocol.EventPayload, metadata protocol.SessionMetadata) (protocol.Verdict, error) {
	f.calls = append(f.calls, eventType)
	if v, ok := f.verdicts[eventType]; ok {
		return v, nil
	}
	return protocol.Allow(""), nil
}

func TestExecutor_RunsSequenceInOrder(t *testing.T) {
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{SessionID: "s1"})
	c := lifecycle.NewContext()

	err := exec.Run(context.Background(), lifecycle.LLMPreRequestSequence, c)
	require.NoError(t, err)
	assert.Equal(t, []protocol.EventType{protocol.EventInputReceived, protocol.EventLLMPreRequest}, eval.calls)
}

func TestExecutor_DenyShortCircuitsSequence(t *testing.T) {
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{
		protocol.EventInputReceived: protocol.Deny("blocked"),
	}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()

	err := exec.Run(context.Background(), lifecycle.LLMPreRequestSequence, c)
	require.Error(t, err)
	var denial *lifecycle.Denial
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, []protocol.EventType{protocol.EventInputReceived}, eval.calls)
}

func TestExecutor_EscalateShortCircuitsSequence(t *testing.T) {
	v := protocol.Escalate("human_review", "confirm?", "deny", nil, nil)
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{
		protocol.EventToolPreInvoke: v,
	}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()

	err := exec.Run(context.Background(), lifecycle.ToolPreInvokeSequence, c)
	require.Error(t, err)
	var esc *lifecycle.Escalation
	require.ErrorAs(t, err, &esc)
}

func TestExecutor_ModifyAppliesToolArgsAndContinues(t *testing.T) {
	mod := protocol.Modify("tool_args", protocol.OpReplace, map[string]any{"path": "/safe/path"}, "")
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{
		protocol.EventToolPreInvoke: mod,
	}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()
	c.ToolArgs = map[string]any{"path": "/etc/passwd"}

	err := exec.Run(context.Background(), lifecycle.ToolPreInvokeSequence, c)
	require.NoError(t, err)
	assert.Equal(t, "/safe/path", c.ToolArgs["path"])
}

func TestExecutor_ReentrantCallSkipsEvaluation(t *testing.T) {
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()

	ctx := lifecycle.MarkInsideEvaluation(context.Background())
	err := exec.Run(ctx, lifecycle.ToolPreInvokeSequence, c)
	require.NoError(t, err)
	assert.Empty(t, eval.calls)
}

func TestContext_ModifyResponseTextInvokesApplier(t *testing.T) {
	c := lifecycle.NewContext()
	applied := ""
	c.Response = "sdk-response-object"
	c.ResponseTextApplier = func(response any, newText string) any {
		applied = newText
		return response
	}
	c.ModifyResponseText("redacted text")
	assert.Equal(t, "redacted text", applied)
	assert.Equal(t, "redacted text", c.ResponseText)
}

func TestContext_EffectiveKwargsMergesModifiedOverOriginal(t *testing.T) {
	c := lifecycle.NewContext()
	c.OriginalKwargs = map[string]any{"model": "gpt-4", "temperature": 0.7}
	c.ModifiedKwargs["temperature"] = 0.0

	merged := c.EffectiveKwargs()
	assert.Equal(t, "gpt-4", merged["model"])
	assert.Equal(t, 0.0, merged["temperature"])
}

func TestStreamAccumulator_AccumulatesAndEvaluatesOnClose(t *testing.T) {
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()

	acc := lifecycle.NewStreamAccumulator(exec, c, lifecycle.LLMPostResponseSequence)
	assert.Equal(t, "hello ", acc.Write("hello "))
	assert.Equal(t, "world", acc.Write("world"))

	require.NoError(t, acc.Close(context.Background()))
	assert.Equal(t, "hello world", c.ResponseText)
	assert.Equal(t, []protocol.EventType{protocol.EventLLMPostResponse, protocol.EventOutputPreSend}, eval.calls)
}

func TestStreamAccumulator_CloseIsIdempotent(t *testing.T) {
	eval := &fakeEvaluator{verdicts: map[protocol.EventType]protocol.Verdict{}}
	exec := lifecycle.NewExecutor(eval, protocol.SessionMetadata{})
	c := lifecycle.NewContext()
	acc := lifecycle.NewStreamAccumulator(exec, c, lifecycle.LLMPostResponseSequence)

	require.NoError(t, acc.Close(context.Background()))
	require.NoError(t, acc.Close(context.Background()))
	assert.Len(t, eval.calls, 2)
}

func TestSyncBridge_RunsSubmittedWork(t *testing.T) {
	b := lifecycle.NewSyncBridge()
	ran := false
	err := b.RunSync(context.Background(), func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSyncBridge_PropagatesWorkError(t *testing.T) {
	b := lifecycle.NewSyncBridge()
	err := b.RunSync(context.Background(), func() error {
		return assertErr
	})
	assert.ErrorIs(t, err, assertErr)
}

func TestSyncBridge_ReusesWorkerAcrossCalls(t *testing.T) {
	b := lifecycle.NewSyncBridge()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.RunSync(context.Background(), func() error { return nil }))
	}
}
