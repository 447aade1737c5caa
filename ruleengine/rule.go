package ruleengine

import (
	"github.com/agentpolicylayer/apl-go/protocol"
)

// EvaluateRule checks every (path, condition) pair in rule.When against
// event; if all match, it returns the verdict built from rule.Then and
// true. If any condition fails to match, it returns the zero Verdict and
// false.
func EvaluateRule(rule Rule, event protocol.Event) (protocol.Verdict, bool) {
	for path, condition := range rule.When {
		value, _ := Lookup(event, path)
		if !Evaluate(value, condition) {
			return protocol.Verdict{}, false
		}
	}
	return buildVerdict(rule.Then, event), true
}

func buildVerdict(then Then, event protocol.Event) protocol.Verdict {
	decision := then.Decision
	if decision == "" {
		decision = string(protocol.DecisionAllow)
	}
	v := protocol.Verdict{
		Decision:   protocol.Decision(decision),
		Confidence: 1.0,
		Reasoning:  RenderTemplate(then.Reasoning, event),
	}
	if then.Modification != nil {
		v.Modifications = []protocol.Modification{buildModification(*then.Modification, event)}
	}
	if then.Escalation != nil {
		v.Escalation = buildEscalation(*then.Escalation, event)
	}
	return v
}

func buildModification(m ThenModification, event protocol.Event) protocol.Modification {
	value := m.Value
	if s, ok := value.(string); ok {
		value = RenderTemplate(s, event)
	}
	return protocol.Modification{
		Target:    m.Target,
		Operation: protocol.ModificationOperation(m.Operation),
		Value:     value,
		Path:      m.Path,
	}
}

func buildEscalation(e ThenEscalation, event protocol.Event) *protocol.Escalation {
	return &protocol.Escalation{
		Type:           e.Type,
		Prompt:         RenderTemplate(e.Prompt, event),
		FallbackAction: e.FallbackAction,
		TimeoutMS:      e.TimeoutMS,
		Options:        e.Options,
	}
}

// EvaluatePolicy runs policy's rules in declared order against event and
// returns the first matching rule's verdict. If no rule matches, it
// returns an allow verdict.
func EvaluatePolicy(policy PolicyManifest, event protocol.Event) protocol.Verdict {
	for _, rule := range policy.Rules {
		if v, matched := EvaluateRule(rule, event); matched {
			return v
		}
	}
	return protocol.Allow("No rule matched")
}
