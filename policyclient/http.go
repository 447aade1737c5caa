package policyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// HTTPOption configures an HTTPTransport at construction time.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient overrides the default *http.Client, e.g. to set a custom
// transport or TLS config.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = client }
}

// WithTimeout sets the per-request timeout applied via the default
// http.Client; ignored if WithHTTPClient is also given.
func WithTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) { t.timeout = d }
}

// WithHeader adds a static header sent on every request, e.g. for
// bearer-token authentication to a policy server behind a gateway.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) { t.headers[key] = value }
}

// HTTPTransport connects to a policy server's HTTP transport: GET
// /manifest on connect, POST /evaluate per event.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	headers map[string]string

	requestCount atomic.Uint64
}

// NewHTTPTransport builds an HTTPTransport from a http(s):// URI,
// including an optional base path.
func NewHTTPTransport(uri string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimSuffix(uri, "/"),
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: t.timeout}
	}
	return t
}

// Connect fetches the server's manifest.
func (t *HTTPTransport) Connect(ctx context.Context) (protocol.PolicyManifest, error) {
	var manifest protocol.PolicyManifest
	if err := t.doJSON(ctx, http.MethodGet, "/manifest", nil, &manifest); err != nil {
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: fetching manifest: %w", err)
	}
	return manifest, nil
}

type httpEvaluateResponse struct {
	Verdicts []protocol.Verdict `json:"verdicts"`
}

// Evaluate POSTs event to /evaluate and returns only the per-policy
// verdicts; composition is intentionally left to the caller (the
// policylayer package) so local composition policy can override whatever
// the server's own default strategy would have produced. A response
// without a verdicts field yields a single synthetic allow verdict.
func (t *HTTPTransport) Evaluate(ctx context.Context, event protocol.Event) ([]protocol.Verdict, error) {
	var resp httpEvaluateResponse
	if err := t.doJSON(ctx, http.MethodPost, "/evaluate", event, &resp); err != nil {
		return nil, fmt.Errorf("policyclient: evaluating event: %w", err)
	}
	if resp.Verdicts == nil {
		return []protocol.Verdict{protocol.Allow("No response from policy server")}, nil
	}
	return resp.Verdicts, nil
}

// Close is a no-op for HTTPTransport: there is no persistent connection to
// release beyond what http.Client's transport pool already manages.
func (t *HTTPTransport) Close() error { return nil }

func (t *HTTPTransport) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	t.requestCount.Add(1)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
