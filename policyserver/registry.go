// Package policyserver hosts a registry of policies and evaluates events
// against them, enforcing the fail-open invocation contract: a policy that
// times out or panics/errors degrades to an allow verdict rather than
// silently escalating its failure into a deny or blocking the rest of the
// evaluation.
package policyserver

import (
	"sync"

	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/ruleengine"
)

// RegisteredPolicy is one policy's full registration record.
type RegisteredPolicy struct {
	Name                string
	Version             string
	Description         string
	Events              []protocol.EventType
	ContextRequirements []protocol.ContextRequirement
	Blocking            bool
	TimeoutMS           int
	Handler             ruleengine.Handler
}

// defaultTimeoutMS is applied to a policy registered with TimeoutMS <= 0.
const defaultTimeoutMS = 5000

// Registry maps policy name to RegisteredPolicy and EventType to the
// ordered list of policies handling it. Registration order is preserved
// per event type: a slice, not a map, so Testable Property 3 (handlers
// invoked in registration order) holds without needing a secondary sort.
type Registry struct {
	mu             sync.RWMutex
	byName         map[string]*RegisteredPolicy
	byEventType    map[protocol.EventType][]*RegisteredPolicy
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:      make(map[string]*RegisteredPolicy),
		byEventType: make(map[protocol.EventType][]*RegisteredPolicy),
	}
}

// Register adds policy to the registry. Registering a name that already
// exists replaces its record for the purposes of byName lookup but does
// not remove its previous entries from byEventType; callers should not
// register the same name twice in production use. An unset TimeoutMS
// defaults to defaultTimeoutMS.
func (r *Registry) Register(p RegisteredPolicy) {
	if p.TimeoutMS <= 0 {
		p.TimeoutMS = defaultTimeoutMS
	}
	rec := &p

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[p.Name] = rec
	for _, et := range p.Events {
		r.byEventType[et] = append(r.byEventType[et], rec)
	}
}

// HandlersFor returns the policies registered for eventType, in
// registration order. The returned slice is a copy; callers may not
// mutate the registry through it.
func (r *Registry) HandlersFor(eventType protocol.EventType) []*RegisteredPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handlers := r.byEventType[eventType]
	out := make([]*RegisteredPolicy, len(handlers))
	copy(out, handlers)
	return out
}

// Policies returns every registered policy, in an unspecified order,
// primarily for manifest construction.
func (r *Registry) Policies() []*RegisteredPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RegisteredPolicy, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}
