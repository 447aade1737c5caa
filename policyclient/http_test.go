package policyclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/policyclient"
	"github.com/agentpolicylayer/apl-go/protocol"
)

func TestHTTPTransport_ConnectFetchesManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest" {
			_ = json.NewEncoder(w).Encode(protocol.PolicyManifest{ServerName: "fake", ProtocolVersion: "0.3.0"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := policyclient.New(srv.URL)
	require.NoError(t, err)

	manifest, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", manifest.ServerName)
	assert.True(t, c.Connected())
}

func TestHTTPTransport_EvaluatePostsEventAndReturnsVerdicts(t *testing.T) {
	var received protocol.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/evaluate":
			_ = json.NewDecoder(r.Body).Decode(&received)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"verdicts": []protocol.Verdict{protocol.Deny("blocked by fake server")},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := policyclient.New(srv.URL)
	require.NoError(t, err)

	event := protocol.NewEvent(protocol.EventToolPreInvoke, nil, protocol.EventPayload{ToolName: "rm"}, protocol.SessionMetadata{SessionID: "s1"})
	verdicts, err := c.Evaluate(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, protocol.DecisionDeny, verdicts[0].Decision)
	assert.Equal(t, "rm", received.Payload.ToolName)
}

func TestHTTPTransport_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := policyclient.New(srv.URL)
	require.NoError(t, err)
	_, err = c.Connect(context.Background())
	assert.Error(t, err)
}
