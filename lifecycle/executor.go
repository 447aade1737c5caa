package lifecycle

import (
	"context"
	"fmt"

	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

// Denial is returned by Executor.Run when an event in the sequence
// composed to deny.
type Denial struct {
	Verdict protocol.Verdict
}

func (e *Denial) Error() string { return fmt.Sprintf("lifecycle: denied: %s", e.Verdict.Reasoning) }

// Escalation is returned by Executor.Run when an event in the sequence
// composed to escalate.
type Escalation struct {
	Verdict protocol.Verdict
}

func (e *Escalation) Error() string {
	return fmt.Sprintf("lifecycle: escalated: %s", e.Verdict.Escalation.Prompt)
}

// Evaluator is the one method an Executor needs from a policy layer:
// evaluate one event type against the current context's session and
// return a composed verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, eventType protocol.EventType, messages []protocol.Message, payload protocol.EventPayload, metadata protocol.SessionMetadata) (protocol.Verdict, error)
}

// Executor walks event sequences against an Evaluator, applying any
// modification verdict to the Context in flight and raising Denial or
// Escalation when a composed verdict calls for it.
type Executor struct {
	Evaluator Evaluator
	Metadata  protocol.SessionMetadata

	// Tracer wraps each event's evaluation in a span named after the event
	// type, tagged with the composed decision, so a slow or denying step
	// in a sequence is attributable without instrumenting every call site
	// that invokes Run. Defaults to a no-op tracer.
	Tracer telemetry.Tracer
}

// NewExecutor returns an Executor bound to evaluator, with tracing
// disabled until Tracer is set.
func NewExecutor(evaluator Evaluator, metadata protocol.SessionMetadata) *Executor {
	return &Executor{Evaluator: evaluator, Metadata: metadata, Tracer: telemetry.NewNoopTracer()}
}

// Run walks seq in order against c. If ctx already carries the
// reentrancy flag, Run returns immediately without evaluating anything,
// since that means this call is nested inside another evaluation already
// in flight on the same logical call chain.
func (e *Executor) Run(ctx context.Context, seq Sequence, c *Context) error {
	if InsideEvaluation(ctx) {
		return nil
	}
	evalCtx := MarkInsideEvaluation(ctx)

	tracer := e.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	for _, eventType := range seq {
		spanCtx, span := tracer.Start(evalCtx, "lifecycle.evaluate."+string(eventType))

		payload := buildPayload(eventType, c)
		verdict, err := e.Evaluator.Evaluate(spanCtx, eventType, c.Messages, payload, e.Metadata)
		if err != nil {
			span.RecordError(err)
			span.End()
			return fmt.Errorf("lifecycle: evaluating %s: %w", eventType, err)
		}
		span.AddEvent("verdict", "decision", string(verdict.Decision), "policy_name", verdict.PolicyName)
		span.End()

		switch verdict.Decision {
		case protocol.DecisionDeny:
			return &Denial{Verdict: verdict}
		case protocol.DecisionEscalate:
			return &Escalation{Verdict: verdict}
		case protocol.DecisionModify:
			for _, mod := range verdict.Modifications {
				ApplyModification(c, mod)
			}
		}
	}
	return nil
}
