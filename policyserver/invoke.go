package policyserver

import (
	"context"
	"fmt"
	"time"

	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

// Invoke runs policy's handler against event with a hard deadline of
// policy.TimeoutMS. A timeout, a handler error, or (defensively) a
// malformed result all fail open to an allow verdict carrying a
// diagnostic reasoning string; none of them propagate as a Go error, so a
// misbehaving policy never aborts evaluation of its siblings. Every
// fail-open path is also logged through logger before it returns, so an
// operator can tell "policy denied" apart from "policy was unreachable and
// degraded to allow" without diffing verdicts.
func Invoke(ctx context.Context, policy *RegisteredPolicy, event protocol.Event, logger telemetry.Logger) protocol.Verdict {
	start := time.Now()
	deadline := time.Duration(policy.TimeoutMS) * time.Millisecond

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		verdict protocol.Verdict
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%v", r)}
			}
		}()
		v, err := policy.Handler(ctx, event)
		done <- result{verdict: v, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.Warn(ctx, "policy timed out, failing open to allow", "policy", policy.Name, "event_type", event.Type, "timeout_ms", policy.TimeoutMS)
		return stamp(timeoutVerdict(policy), policy, start)
	case res := <-done:
		if res.err != nil {
			logger.Error(ctx, "policy handler errored, failing open to allow", "policy", policy.Name, "event_type", event.Type, "err", res.err)
			return stamp(errorVerdict(res.err), policy, start)
		}
		if !res.verdict.Decision.Valid() {
			logger.Warn(ctx, "policy returned an invalid decision, failing open to allow", "policy", policy.Name, "event_type", event.Type)
			return stamp(protocol.Allow("Policy returned invalid type"), policy, start)
		}
		return stamp(res.verdict, policy, start)
	}
}

func timeoutVerdict(policy *RegisteredPolicy) protocol.Verdict {
	return protocol.Allow(fmt.Sprintf("Policy timed out after %dms", policy.TimeoutMS))
}

func errorVerdict(err error) protocol.Verdict {
	return protocol.Allow(fmt.Sprintf("Policy error: %s", err.Error()))
}

func stamp(v protocol.Verdict, policy *RegisteredPolicy, start time.Time) protocol.Verdict {
	v.PolicyName = policy.Name
	v.PolicyVersion = policy.Version
	v.EvaluationMS = float64(time.Since(start).Microseconds()) / 1000.0
	return v
}
