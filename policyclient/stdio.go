package policyclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// StdioTransport connects to a policy server spawned as a subprocess,
// speaking newline-delimited JSON over its stdin/stdout. Unlike a
// request-multiplexed RPC client, this wire has no concurrent requests in
// flight: writeMu serializes evaluate calls so one goroutine's
// write-then-read pair cannot interleave with another's.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewStdioTransport builds argv from uri's remainder per the stdio:// URI
// convention: a leading "./" invokes the path directly as argv[0]; a
// leading "npx " is kept verbatim as a multi-arg command; otherwise the
// command is split on whitespace.
func NewStdioTransport(uri string) (*StdioTransport, error) {
	rawCommand := strings.TrimPrefix(uri, "stdio://")
	if rawCommand == "" {
		return nil, fmt.Errorf("policyclient: empty stdio command in uri %q", uri)
	}
	return &StdioTransport{cmd: buildCommand(rawCommand)}, nil
}

func buildCommand(rawCommand string) *exec.Cmd {
	switch {
	case strings.HasPrefix(rawCommand, "./"):
		return exec.Command(rawCommand)
	default:
		fields := strings.Fields(rawCommand)
		if len(fields) == 0 {
			return exec.Command(rawCommand)
		}
		return exec.Command(fields[0], fields[1:]...)
	}
}

// Connect spawns the subprocess, reads the first line as the server's
// manifest, and returns it.
func (t *StdioTransport) Connect(ctx context.Context) (protocol.PolicyManifest, error) {
	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: stdin pipe: %w", err)
	}
	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: stdout pipe: %w", err)
	}
	if err := t.cmd.Start(); err != nil {
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: starting subprocess: %w", err)
	}
	t.stdin = stdin
	t.reader = bufio.NewReader(stdout)

	line, err := t.readLine()
	if err != nil {
		_ = t.Close()
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: reading manifest line: %w", err)
	}
	var msg struct {
		Manifest protocol.PolicyManifest `json:"manifest"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		_ = t.Close()
		return protocol.PolicyManifest{}, fmt.Errorf("policyclient: parsing manifest: %w", err)
	}
	return msg.Manifest, nil
}

// Evaluate writes one evaluate request and reads exactly one response
// line, returning its verdicts. An unexpected response type, or a
// verdicts message without a verdicts field, yields a single synthetic
// allow verdict rather than an error.
func (t *StdioTransport) Evaluate(ctx context.Context, event protocol.Event) ([]protocol.Verdict, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	req, err := json.Marshal(map[string]any{"type": "evaluate", "event": event})
	if err != nil {
		return nil, fmt.Errorf("policyclient: encoding evaluate request: %w", err)
	}
	if _, err := t.stdin.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("policyclient: writing evaluate request: %w", err)
	}

	line, err := t.readLine()
	if err != nil {
		return nil, fmt.Errorf("policyclient: reading evaluate response: %w", err)
	}
	var resp struct {
		Type     string             `json:"type"`
		Verdicts []protocol.Verdict `json:"verdicts"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("policyclient: parsing evaluate response: %w", err)
	}
	if resp.Type != "verdicts" || resp.Verdicts == nil {
		return []protocol.Verdict{protocol.Allow("No response from policy server")}, nil
	}
	return resp.Verdicts, nil
}

func (t *StdioTransport) readLine() ([]byte, error) {
	line, err := t.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return line, nil
}

// Close terminates the subprocess and releases its pipes. Idempotent.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		if t.cmd != nil {
			_ = t.cmd.Wait()
		}
	})
	return nil
}
