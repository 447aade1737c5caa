package policyserver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

func newEvent(t protocol.EventType) protocol.Event {
	return protocol.NewEvent(t, nil, protocol.EventPayload{}, protocol.SessionMetadata{SessionID: "s1"})
}

func TestEvaluate_NoPoliciesRegisteredYieldsSyntheticAllow(t *testing.T) {
	s := policyserver.NewServer("test", "1.0")
	verdicts := s.Evaluate(context.Background(), newEvent(protocol.EventToolPreInvoke))
	require.Len(t, verdicts, 1)
	assert.Equal(t, protocol.DecisionAllow, verdicts[0].Decision)
	assert.Equal(t, "No policies registered for this event", verdicts[0].Reasoning)
}

func TestEvaluate_InvokesHandlersInRegistrationOrder(t *testing.T) {
	s := policyserver.NewServer("test", "1.0")
	var order []string

	for _, name := range []string{"first", "second", "third"} {
		n := name
		s.Register(policyserver.RegisteredPolicy{
			Name:   n,
			Events: []protocol.EventType{protocol.EventToolPreInvoke},
			Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
				order = append(order, n)
				return protocol.Allow("ok"), nil
			},
		})
	}

	verdicts := s.Evaluate(context.Background(), newEvent(protocol.EventToolPreInvoke))
	require.Len(t, verdicts, 3)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestInvoke_TimeoutFailsOpen(t *testing.T) {
	policy := &policyserver.RegisteredPolicy{
		Name:      "slow",
		TimeoutMS: 10,
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
			}
			return protocol.Deny("too slow to matter"), nil
		},
	}
	v := policyserver.Invoke(context.Background(), policy, newEvent(protocol.EventToolPreInvoke), telemetry.NewNoopLogger())
	assert.Equal(t, protocol.DecisionAllow, v.Decision)
	assert.Contains(t, v.Reasoning, "Policy timed out after 10ms")
	assert.Equal(t, "slow", v.PolicyName)
}

func TestInvoke_ErrorFailsOpen(t *testing.T) {
	policy := &policyserver.RegisteredPolicy{
		Name:      "broken",
		TimeoutMS: 1000,
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
			return protocol.Verdict{}, errors.New("boom")
		},
	}
	v := policyserver.Invoke(context.Background(), policy, newEvent(protocol.EventToolPreInvoke), telemetry.NewNoopLogger())
	assert.Equal(t, protocol.DecisionAllow, v.Decision)
	assert.Equal(t, "Policy error: boom", v.Reasoning)
}

func TestInvoke_PanicFailsOpen(t *testing.T) {
	policy := &policyserver.RegisteredPolicy{
		Name:      "panicky",
		TimeoutMS: 1000,
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
			panic("unexpected")
		},
	}
	v := policyserver.Invoke(context.Background(), policy, newEvent(protocol.EventToolPreInvoke), telemetry.NewNoopLogger())
	assert.Equal(t, protocol.DecisionAllow, v.Decision)
	assert.Contains(t, v.Reasoning, "Policy error:")
}

func TestInvoke_ValidVerdictStampedWithMetadata(t *testing.T) {
	policy := &policyserver.RegisteredPolicy{
		Name:      "good",
		Version:   "2.0",
		TimeoutMS: 1000,
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
			return protocol.Deny("blocked"), nil
		},
	}
	v := policyserver.Invoke(context.Background(), policy, newEvent(protocol.EventToolPreInvoke), telemetry.NewNoopLogger())
	assert.Equal(t, protocol.DecisionDeny, v.Decision)
	assert.Equal(t, "good", v.PolicyName)
	assert.Equal(t, "2.0", v.PolicyVersion)
	assert.GreaterOrEqual(t, v.EvaluationMS, 0.0)
}

func TestManifest_ReflectsRegisteredPolicies(t *testing.T) {
	s := policyserver.NewServer("test-server", "1.0")
	s.Register(policyserver.RegisteredPolicy{
		Name:      "p1",
		Version:   "1.0",
		Events:    []protocol.EventType{protocol.EventToolPreInvoke},
		Blocking:  true,
		TimeoutMS: 500,
		Handler:   func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) { return protocol.Allow(""), nil },
	})

	m := s.Manifest()
	assert.Equal(t, "test-server", m.ServerName)
	assert.Equal(t, protocol.DefaultProtocolVersion, m.ProtocolVersion)
	require.Len(t, m.Policies, 1)
	assert.Equal(t, "p1", m.Policies[0].Name)
	assert.True(t, m.Policies[0].Blocking)
}

func TestRegister_DefaultsTimeout(t *testing.T) {
	s := policyserver.NewServer("test", "1.0")
	s.Register(policyserver.RegisteredPolicy{
		Name:    "no-timeout",
		Events:  []protocol.EventType{protocol.EventToolPreInvoke},
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) { return protocol.Allow(""), nil },
	})
	policies := s.Manifest().Policies
	require.Len(t, policies, 1)
	assert.Equal(t, 5000, policies[0].TimeoutMS)
}
