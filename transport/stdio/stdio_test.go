package stdio_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/transport/stdio"
)

func newTestServer() *policyserver.Server {
	s := policyserver.NewServer("test-server", "1.0")
	s.Register(policyserver.RegisteredPolicy{
		Name:   "deny-all",
		Events: []protocol.EventType{protocol.EventToolPreInvoke},
		Handler: func(ctx context.Context, e protocol.Event) (protocol.Verdict, error) {
			return protocol.Deny("blocked"), nil
		},
	})
	return s
}

func readLines(t *testing.T, r *bytes.Buffer) []map[string]any {
	t.Helper()
	scanner := bufio.NewScanner(r)
	var out []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestRun_EmitsManifestOnStartup(t *testing.T) {
	in := strings.NewReader(`{"type":"shutdown"}` + "\n")
	var out bytes.Buffer

	tr := stdio.New(in, &out)
	require.NoError(t, tr.Run(context.Background(), newTestServer()))

	lines := readLines(t, &out)
	require.NotEmpty(t, lines)
	assert.Equal(t, "manifest", lines[0]["type"])
}

func TestRun_PingRespondsPong(t *testing.T) {
	in := strings.NewReader(`{"type":"ping"}` + "\n" + `{"type":"shutdown"}` + "\n")
	var out bytes.Buffer

	tr := stdio.New(in, &out)
	require.NoError(t, tr.Run(context.Background(), newTestServer()))

	lines := readLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "pong", lines[1]["type"])
}

func TestRun_EvaluateDispatchesAndRespondsWithVerdicts(t *testing.T) {
	event := protocol.NewEvent(protocol.EventToolPreInvoke, nil, protocol.EventPayload{}, protocol.SessionMetadata{SessionID: "s1"})
	evalMsg, err := json.Marshal(map[string]any{"type": "evaluate", "event": event})
	require.NoError(t, err)

	in := strings.NewReader(string(evalMsg) + "\n" + `{"type":"shutdown"}` + "\n")
	var out bytes.Buffer

	tr := stdio.New(in, &out)
	require.NoError(t, tr.Run(context.Background(), newTestServer()))

	lines := readLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "verdicts", lines[1]["type"])
	assert.Equal(t, event.ID, lines[1]["event_id"])
	verdicts := lines[1]["verdicts"].([]any)
	require.Len(t, verdicts, 1)
	assert.Equal(t, "deny", verdicts[0].(map[string]any)["decision"])
}

func TestRun_UnrecognizedTypeLogsAndContinues(t *testing.T) {
	in := strings.NewReader(`{"type":"mystery"}` + "\n" + `{"type":"shutdown"}` + "\n")
	var out bytes.Buffer
	var logged []string

	tr := stdio.New(in, &out)
	tr.Logf = func(format string, args ...any) { logged = append(logged, format) }
	require.NoError(t, tr.Run(context.Background(), newTestServer()))

	assert.NotEmpty(t, logged)
}

func TestRun_EOFTerminatesLoop(t *testing.T) {
	in := strings.NewReader(`{"type":"ping"}` + "\n")
	var out bytes.Buffer

	tr := stdio.New(in, &out)
	require.NoError(t, tr.Run(context.Background(), newTestServer()))

	lines := readLines(t, &out)
	require.Len(t, lines, 2)
}
