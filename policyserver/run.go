package policyserver

import "context"

// Transport hosts a Server over some wire protocol and blocks until ctx is
// canceled or the transport's own termination condition is reached (stdin
// EOF for stdio, process signal for HTTP). Defined here, rather than in the
// transport package, so transport implementations can depend on
// policyserver without policyserver depending back on them.
type Transport interface {
	Run(ctx context.Context, server *Server) error
}

// Run starts transport against this server and blocks until it returns.
func (s *Server) Run(ctx context.Context, transport Transport) error {
	return transport.Run(ctx, s)
}
