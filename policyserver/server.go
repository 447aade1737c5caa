package policyserver

import (
	"context"

	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

// Server is a registry plus a transport host: the same instance can be
// driven programmatically (Evaluate called in-process) or remotely
// (Run(transport) blocking on an external wire protocol).
type Server struct {
	Name        string
	Version     string
	Description string

	// Logger receives the fail-open diagnostics Invoke produces. Defaults
	// to a no-op logger; set it to telemetry.NewClueLogger() to surface
	// policy timeouts and errors in process logs.
	Logger telemetry.Logger

	registry *Registry
}

// NewServer returns a Server with an empty registry and a no-op Logger.
func NewServer(name, version string) *Server {
	return &Server{Name: name, Version: version, registry: NewRegistry(), Logger: telemetry.NewNoopLogger()}
}

// Register adds a policy to the server. See RegisteredPolicy for the
// fields a registration carries.
func (s *Server) Register(p RegisteredPolicy) {
	s.registry.Register(p)
}

// Evaluate invokes every policy registered for event.Type, in registration
// order, and returns their verdicts uncombined. An event type with no
// registered policies yields a single synthetic allow verdict rather than
// an empty slice, so callers never need to special-case "nothing ran".
func (s *Server) Evaluate(ctx context.Context, event protocol.Event) []protocol.Verdict {
	handlers := s.registry.HandlersFor(event.Type)
	if len(handlers) == 0 {
		return []protocol.Verdict{protocol.Allow("No policies registered for this event")}
	}
	logger := s.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	verdicts := make([]protocol.Verdict, len(handlers))
	for i, h := range handlers {
		verdicts[i] = Invoke(ctx, h, event, logger)
	}
	return verdicts
}

// Manifest describes the server's registered policies for publication at
// connect time.
func (s *Server) Manifest() protocol.PolicyManifest {
	policies := s.registry.Policies()
	defs := make([]protocol.PolicyDefinition, len(policies))
	for i, p := range policies {
		defs[i] = protocol.PolicyDefinition{
			Name:                p.Name,
			Version:             p.Version,
			Description:         p.Description,
			Events:              p.Events,
			ContextRequirements: p.ContextRequirements,
			Blocking:            p.Blocking,
			TimeoutMS:           p.TimeoutMS,
		}
	}
	return protocol.PolicyManifest{
		ServerName:      s.Name,
		ServerVersion:   s.Version,
		ProtocolVersion: protocol.DefaultProtocolVersion,
		Description:     s.Description,
		Policies:        defs,
	}
}
