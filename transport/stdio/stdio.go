// Package stdio hosts a policyserver.Server over newline-delimited JSON on
// stdin/stdout, for running a policy server as a subprocess addressed by a
// stdio:// URI.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

// envelope is the outer {"type": ...} shape every message on this wire
// carries.
type envelope struct {
	Type string `json:"type"`
}

type evaluateMessage struct {
	Type  string          `json:"type"`
	Event protocol.Event  `json:"event"`
}

type verdictsMessage struct {
	Type     string            `json:"type"`
	EventID  string            `json:"event_id"`
	Verdicts []protocol.Verdict `json:"verdicts"`
}

type manifestMessage struct {
	Type     string                 `json:"type"`
	Manifest protocol.PolicyManifest `json:"manifest"`
}

type pongMessage struct {
	Type string `json:"type"`
}

// Transport implements policyserver.Transport over stdin/stdout.
type Transport struct {
	In  io.Reader
	Out io.Writer

	// Logf receives one line per unrecognized or malformed message,
	// formatted the way the standard library's log package expects; nil
	// is a valid no-op logger. Kept alongside Logger for callers that
	// already have a printf-style sink wired (e.g. the standard log
	// package) and don't want to adopt the structured interface.
	Logf func(format string, args ...any)

	// Logger receives the same diagnostics as one formatted Warn message
	// each, without key-value pairs, in addition to whatever Logf does.
	// Defaults to a no-op logger.
	Logger telemetry.Logger
}

// New returns a Transport wired to stdin/stdout with a no-op Logger.
func New(in io.Reader, out io.Writer) *Transport {
	return &Transport{In: in, Out: out, Logger: telemetry.NewNoopLogger()}
}

func (t *Transport) logf(ctx context.Context, format string, args ...any) {
	if t.Logf != nil {
		t.Logf(format, args...)
	}
	logger := t.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	logger.Warn(ctx, fmt.Sprintf(format, args...))
}

// Run emits the startup manifest line, then reads one JSON object per
// line from In until EOF, ctx cancellation, or a "shutdown" message.
// Framing is strict: exactly one JSON object per line, and Out is flushed
// after every write.
func (t *Transport) Run(ctx context.Context, server *policyserver.Server) error {
	w := bufio.NewWriter(t.Out)
	if err := writeLine(w, manifestMessage{Type: "manifest", Manifest: server.Manifest()}); err != nil {
		return fmt.Errorf("stdio: writing startup manifest: %w", err)
	}

	scanner := bufio.NewScanner(t.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			t.logf(ctx, "stdio: malformed message: %v", err)
			continue
		}

		switch env.Type {
		case "evaluate":
			if err := t.handleEvaluate(ctx, server, w, line); err != nil {
				t.logf(ctx, "stdio: handling evaluate: %v", err)
			}
		case "ping":
			if err := writeLine(w, pongMessage{Type: "pong"}); err != nil {
				t.logf(ctx, "stdio: writing pong: %v", err)
			}
		case "shutdown":
			return nil
		default:
			t.logf(ctx, "stdio: unrecognized message type %q", env.Type)
		}
	}
	return scanner.Err()
}

func (t *Transport) handleEvaluate(ctx context.Context, server *policyserver.Server, w *bufio.Writer, line []byte) error {
	var msg evaluateMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return fmt.Errorf("decoding evaluate message: %w", err)
	}
	verdicts := server.Evaluate(ctx, msg.Event)
	return writeLine(w, verdictsMessage{Type: "verdicts", EventID: msg.Event.ID, Verdicts: verdicts})
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
