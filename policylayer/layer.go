// Package policylayer owns a set of policy clients and composes their
// verdicts into one decision per evaluated event, the multi-server facade
// an agent runtime links against directly.
package policylayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentpolicylayer/apl-go/compose"
	"github.com/agentpolicylayer/apl-go/policyclient"
	"github.com/agentpolicylayer/apl-go/protocol"
)

// CompositionConfig controls how a Layer reduces verdicts collected from
// all of its clients (and, within a client, all of that server's
// policies) into one.
type CompositionConfig struct {
	Mode     compose.Mode
	Parallel bool

	// TimeoutMS bounds the whole fan-out, not any one client call. Zero
	// means no advisory deadline is applied. Hitting it returns OnTimeout
	// rather than an error, so a slow or unreachable server degrades the
	// same way a single slow policy handler does.
	TimeoutMS int

	// OnTimeout is the verdict returned when TimeoutMS elapses before every
	// client has answered. Defaults to allow. Cancellation of the caller's
	// own ctx does not use it: see Layer.Evaluate.
	OnTimeout protocol.Verdict
}

// DefaultCompositionConfig composes with deny_overrides and evaluates
// clients concurrently, matching a multi-server deployment's default
// expectation that any one server denying should be enough to block.
var DefaultCompositionConfig = CompositionConfig{Mode: compose.ModeDenyOverrides, Parallel: true, OnTimeout: protocol.Allow("Composition timed out")}

// Layer fans events out to every added server and composes the results.
type Layer struct {
	config CompositionConfig

	mu        sync.Mutex
	clients   []*policyclient.Client
	connected bool
}

// New returns an empty Layer using config. An empty config.Mode defaults
// to deny_overrides.
func New(config CompositionConfig) *Layer {
	if config.Mode == "" {
		config.Mode = compose.ModeDenyOverrides
	}
	return &Layer{config: config}
}

// AddServer appends a client for uri without connecting to it yet.
// Returns the Layer so calls can be chained.
func (l *Layer) AddServer(uri string, opts ...policyclient.HTTPOption) (*Layer, error) {
	client, err := policyclient.New(uri, opts...)
	if err != nil {
		return nil, fmt.Errorf("policylayer: adding server %q: %w", uri, err)
	}
	l.mu.Lock()
	l.clients = append(l.clients, client)
	l.mu.Unlock()
	return l, nil
}

// Connect connects every added client. Idempotent: a second call is a
// no-op. If config.Parallel is set, clients connect concurrently;
// otherwise in AddServer order.
func (l *Layer) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.connected {
		l.mu.Unlock()
		return nil
	}
	clients := append([]*policyclient.Client(nil), l.clients...)
	l.mu.Unlock()

	var err error
	if l.config.Parallel {
		err = connectParallel(ctx, clients)
	} else {
		err = connectSequential(ctx, clients)
	}
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

func connectSequential(ctx context.Context, clients []*policyclient.Client) error {
	for _, c := range clients {
		if _, err := c.Connect(ctx); err != nil {
			return fmt.Errorf("policylayer: connecting to %s: %w", c.URI, err)
		}
	}
	return nil
}

func connectParallel(ctx context.Context, clients []*policyclient.Client) error {
	errs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *policyclient.Client) {
			defer wg.Done()
			if _, err := c.Connect(ctx); err != nil {
				errs[i] = fmt.Errorf("connecting to %s: %w", c.URI, err)
			}
		}(i, c)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("policylayer: %w", err)
		}
	}
	return nil
}

// Evaluate lazily connects, builds an Event from the given fields, fans it
// out to every client, concatenates all returned verdicts in
// client-then-policy order, and composes them into one Verdict.
//
// If the caller's ctx is canceled mid-fan-out, Evaluate does not surface
// that as an error: it discards any verdicts that had already arrived and
// composes an empty list, as if no verdicts were collected. If
// config.TimeoutMS is set and elapses first, Evaluate returns
// config.OnTimeout directly rather than running the composer at all,
// matching an advisory-deadline contract distinct from caller cancellation.
func (l *Layer) Evaluate(ctx context.Context, eventType protocol.EventType, messages []protocol.Message, payload protocol.EventPayload, metadata protocol.SessionMetadata) (protocol.Verdict, error) {
	if err := l.Connect(ctx); err != nil {
		return protocol.Verdict{}, err
	}

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if l.config.TimeoutMS > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, time.Duration(l.config.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	event := protocol.NewEvent(eventType, messages, payload, metadata)

	l.mu.Lock()
	clients := append([]*policyclient.Client(nil), l.clients...)
	l.mu.Unlock()

	var verdicts []protocol.Verdict
	var err error
	if l.config.Parallel {
		verdicts, err = collectParallel(deadlineCtx, clients, event)
	} else {
		verdicts, err = collectSequential(deadlineCtx, clients, event)
	}

	if err != nil {
		if deadlineCtx.Err() != nil && ctx.Err() == nil {
			return l.onTimeout(), nil
		}
		if ctx.Err() != nil {
			verdicts = nil
		} else {
			return protocol.Verdict{}, err
		}
	}

	// A modify verdict without modifications, or an escalate verdict without
	// an escalation, is composed as an allow from the same policy.
	for i, v := range verdicts {
		if (v.Decision == protocol.DecisionModify && len(v.Modifications) == 0) ||
			(v.Decision == protocol.DecisionEscalate && v.Escalation == nil) {
			allow := protocol.Allow(fmt.Sprintf("Treated %s verdict without details as allow", v.Decision))
			allow.PolicyName, allow.PolicyVersion = v.PolicyName, v.PolicyVersion
			verdicts[i] = allow
		}
	}

	composer, cerr := compose.NewComposer(compose.Config{Mode: l.config.Mode})
	if cerr != nil {
		return protocol.Verdict{}, fmt.Errorf("policylayer: %w", cerr)
	}
	return composer.Compose(verdicts), nil
}

func (l *Layer) onTimeout() protocol.Verdict {
	if l.config.OnTimeout.Decision == "" {
		return protocol.Allow("Composition timed out")
	}
	return l.config.OnTimeout
}

func collectSequential(ctx context.Context, clients []*policyclient.Client, event protocol.Event) ([]protocol.Verdict, error) {
	var all []protocol.Verdict
	for _, c := range clients {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		v, err := c.Evaluate(ctx, event)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			return nil, fmt.Errorf("policylayer: evaluating against %s: %w", c.URI, err)
		}
		all = append(all, v...)
	}
	return all, nil
}

func collectParallel(ctx context.Context, clients []*policyclient.Client, event protocol.Event) ([]protocol.Verdict, error) {
	results := make([][]protocol.Verdict, len(clients))
	errs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *policyclient.Client) {
			defer wg.Done()
			v, err := c.Evaluate(ctx, event)
			if err != nil {
				errs[i] = fmt.Errorf("evaluating against %s: %w", c.URI, err)
				return
			}
			results[i] = v
		}(i, c)
	}
	wg.Wait()

	if ctx.Err() != nil {
		var all []protocol.Verdict
		for i := range clients {
			if errs[i] == nil {
				all = append(all, results[i]...)
			}
		}
		return all, ctx.Err()
	}

	var all []protocol.Verdict
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("policylayer: %w", err)
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// Close closes every added client.
func (l *Layer) Close() error {
	l.mu.Lock()
	clients := append([]*policyclient.Client(nil), l.clients...)
	l.mu.Unlock()

	var firstErr error
	for _, c := range clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
