// Package policyclient connects to a single policy server over one of its
// supported transports and exposes a uniform Connect/Evaluate/Close
// surface regardless of which transport carried the wire protocol.
package policyclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// Transport is the minimal surface every wire protocol implements.
type Transport interface {
	Connect(ctx context.Context) (protocol.PolicyManifest, error)
	Evaluate(ctx context.Context, event protocol.Event) ([]protocol.Verdict, error)
	Close() error
}

// Client wraps a Transport with the connection state (manifest, connected
// flag) a policylayer needs without re-deriving it on every call.
type Client struct {
	URI       string
	transport Transport
	manifest  protocol.PolicyManifest
	connected bool
}

// New resolves uri's scheme to a Transport constructor and returns an
// unconnected Client. Unknown schemes fail fast, listing what is
// supported, rather than deferring the error to the first Connect call.
func New(uri string, httpOpts ...HTTPOption) (*Client, error) {
	transport, err := resolve(uri, httpOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{URI: uri, transport: transport}, nil
}

var supportedSchemes = []string{"stdio", "http", "https"}

func resolve(uri string, httpOpts ...HTTPOption) (Transport, error) {
	switch {
	case strings.HasPrefix(uri, "stdio://"):
		return NewStdioTransport(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return NewHTTPTransport(uri, httpOpts...), nil
	default:
		return nil, fmt.Errorf("policyclient: unsupported uri scheme in %q, expected one of %v", uri, supportedSchemes)
	}
}

// Connect fetches the server's manifest and marks the client connected.
// Idempotent: a second call returns the cached manifest.
func (c *Client) Connect(ctx context.Context) (protocol.PolicyManifest, error) {
	if c.connected {
		return c.manifest, nil
	}
	manifest, err := c.transport.Connect(ctx)
	if err != nil {
		return protocol.PolicyManifest{}, err
	}
	c.manifest = manifest
	c.connected = true
	return manifest, nil
}

// Manifest returns the most recently fetched manifest. It is the zero
// value until Connect has succeeded at least once.
func (c *Client) Manifest() protocol.PolicyManifest { return c.manifest }

// Connected reports whether Connect has succeeded.
func (c *Client) Connected() bool { return c.connected }

// Evaluate delegates to the underlying transport.
func (c *Client) Evaluate(ctx context.Context, event protocol.Event) ([]protocol.Verdict, error) {
	return c.transport.Evaluate(ctx, event)
}

// Close releases the underlying transport's resources.
func (c *Client) Close() error {
	return c.transport.Close()
}
