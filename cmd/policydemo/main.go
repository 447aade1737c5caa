// Command policydemo binds a policy server to a real HTTP listener,
// connects a policylayer.Layer to it exactly as a remote agent runtime
// would, and drives a lifecycle.Executor through three scenarios that
// demonstrate the full enforcement pipeline end to end: redacting PII out
// of a response, escalating a destructive tool call to a human, and
// denying a request that has exhausted its token budget.
package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/agentpolicylayer/apl-go/lifecycle"
	"github.com/agentpolicylayer/apl-go/policylayer"
	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/ruleengine"
	"github.com/agentpolicylayer/apl-go/telemetry"
	apphttp "github.com/agentpolicylayer/apl-go/transport/http"
)

// formatThousands groups n's digits by three with commas, e.g. 100000 ->
// "100,000", for the exact wording of the token-budget denial below.
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func intPtr(n int) *int { return &n }

func buildServer() *policyserver.Server {
	server := policyserver.NewServer("policydemo", "0.1.0")

	server.Register(policyserver.RegisteredPolicy{
		Name:    "redact-pii",
		Version: "1.0.0",
		Events:  []protocol.EventType{protocol.EventOutputPreSend},
		Handler: ruleengine.CompileHandler(ruleengine.PolicyManifest{
			Name:   "redact-pii",
			Events: []protocol.EventType{protocol.EventOutputPreSend},
			Rules: []ruleengine.Rule{
				{
					When: map[string]any{"payload.output_text": map[string]any{"contains": "SSN"}},
					Then: ruleengine.Then{
						Decision:  "modify",
						Reasoning: "Redacted PII from output",
						Modification: &ruleengine.ThenModification{
							Target:    "output",
							Operation: "replace",
							Value:     "Your SSN is [SSN REDACTED]",
						},
					},
				},
			},
		}),
	})

	server.Register(policyserver.RegisteredPolicy{
		Name:    "escalate-destructive-tool",
		Version: "1.0.0",
		Events:  []protocol.EventType{protocol.EventToolPreInvoke},
		Handler: ruleengine.CompileHandler(ruleengine.PolicyManifest{
			Name:   "escalate-destructive-tool",
			Events: []protocol.EventType{protocol.EventToolPreInvoke},
			Rules: []ruleengine.Rule{
				{
					When: map[string]any{"payload.tool_name": map[string]any{"matches": ".*delete.*"}},
					Then: ruleengine.Then{
						Decision: "escalate",
						Escalation: &ruleengine.ThenEscalation{
							Type:      "human_confirm",
							Prompt:    "⚠️ Destructive action requested:\n\nTool: {{payload.tool_name}}\nTarget: {{payload.tool_args.path}}\n\nProceed?",
							TimeoutMS: intPtr(60000),
							Options:   []string{"Proceed", "Cancel"},
						},
					},
				},
			},
		}),
	})

	server.Register(policyserver.RegisteredPolicy{
		Name:    "token-budget-deny",
		Version: "1.0.0",
		Events:  []protocol.EventType{protocol.EventLLMPreRequest},
		Handler: func(_ context.Context, e protocol.Event) (protocol.Verdict, error) {
			budget := e.Metadata.TokenBudget
			if budget == nil || e.Metadata.TokenCount < *budget {
				return protocol.Allow("Within token budget"), nil
			}
			return protocol.Deny("Token budget exceeded: " +
				formatThousands(e.Metadata.TokenCount) + " / " + formatThousands(*budget) + " tokens"), nil
		},
	})

	return server
}

func main() {
	logger := telemetry.NewClueLogger()
	ctx := context.Background()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Println("policydemo: binding listener:", err)
		return
	}
	addr := listener.Addr().String()
	listener.Close()

	server := buildServer()
	server.Logger = logger
	transport := apphttp.New(addr)
	transport.Logger = logger

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- server.Run(serverCtx, transport) }()

	// Give the listener a moment to come up before a client dials it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond); err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			fmt.Println("policydemo: http transport never came up")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	layer := policylayer.New(policylayer.DefaultCompositionConfig)
	if _, err := layer.AddServer("http://" + addr); err != nil {
		fmt.Println("policydemo: connecting to policy server:", err)
		return
	}
	defer layer.Close()

	fmt.Println("--- PII redaction ---")
	redactExecutor := lifecycle.NewExecutor(layer, protocol.SessionMetadata{SessionID: "demo-session"})
	redactCtx := lifecycle.NewContext()
	redactCtx.ResponseText = "Your SSN is 123-45-6789"
	if err := redactExecutor.Run(ctx, lifecycle.LLMPostResponseSequence, redactCtx); err != nil {
		fmt.Println("unexpected error:", err)
	} else {
		fmt.Println("response text ->", redactCtx.ResponseText)
	}

	fmt.Println("--- destructive tool escalation ---")
	toolExecutor := lifecycle.NewExecutor(layer, protocol.SessionMetadata{SessionID: "demo-session"})
	toolCtx := lifecycle.NewContext()
	toolCtx.ToolName = "delete_file"
	toolCtx.ToolArgs = map[string]any{"path": "/x"}
	switch err := toolExecutor.Run(ctx, lifecycle.ToolPreInvokeSequence, toolCtx).(type) {
	case *lifecycle.Escalation:
		fmt.Println("escalated ->", err.Verdict.Escalation.Prompt)
	case nil:
		fmt.Println("allowed without escalation")
	default:
		fmt.Println("unexpected result:", err)
	}

	fmt.Println("--- token budget enforcement ---")
	budgetExecutor := lifecycle.NewExecutor(layer, protocol.SessionMetadata{
		SessionID:   "demo-session",
		TokenCount:  100000,
		TokenBudget: intPtr(100000),
	})
	budgetCtx := lifecycle.NewContext()
	switch err := budgetExecutor.Run(ctx, lifecycle.LLMPreRequestSequence, budgetCtx).(type) {
	case *lifecycle.Denial:
		fmt.Println("denied ->", err.Verdict.Reasoning)
	case nil:
		fmt.Println("allowed")
	default:
		fmt.Println("unexpected result:", err)
	}

	stopServer()
	if err := <-serveErrCh; err != nil {
		fmt.Println("policydemo: server stopped with an error:", err)
	}
}
