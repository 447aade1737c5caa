// Package http hosts a policyserver.Server over HTTP using gin, exposing
// /evaluate, /manifest, /health, /metrics, and an SSE /events stream.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentpolicylayer/apl-go/compose"
	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/protocol"
	"github.com/agentpolicylayer/apl-go/telemetry"
)

const heartbeatInterval = 15 * time.Second

// Transport implements policyserver.Transport over HTTP.
type Transport struct {
	Addr string

	// Composer reduces per-policy verdicts to the single composed_verdict
	// field /evaluate returns. Defaults to deny_overrides if nil.
	Composer *compose.Composer

	// PayloadSchema, if set via CompilePayloadSchema, makes /evaluate
	// reject a request whose event.payload does not conform with a 400
	// before it ever reaches a policy handler.
	PayloadSchema *jsonschema.Schema

	// Logger receives recovered panics and other transport-level
	// diagnostics. Defaults to a no-op logger.
	Logger telemetry.Logger

	startedAt time.Time
	metrics   *metrics
	events    *broadcaster
}

// New returns a Transport that will listen on addr when Run is called.
func New(addr string) *Transport {
	return &Transport{Addr: addr}
}

// Handler builds the gin engine for server, initializing metrics and the
// SSE broadcaster if they have not already been built. Exposed separately
// from Run so tests can exercise routes via httptest without binding a
// real listener.
func (t *Transport) Handler(server *policyserver.Server) http.Handler {
	if t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
	if t.metrics == nil {
		t.metrics = newMetrics(t.startedAt)
	}
	if t.events == nil {
		t.events = newBroadcaster()
	}
	if t.Logger == nil {
		t.Logger = telemetry.NewNoopLogger()
	}

	composer := t.Composer
	if composer == nil {
		composer, _ = compose.NewComposer(compose.DefaultConfig)
	}

	engine := gin.New()
	engine.Use(recovery(t.Logger), cors(), requestID())

	engine.POST("/evaluate", t.handleEvaluate(server, composer))
	engine.GET("/manifest", t.handleManifest(server))
	engine.GET("/health", t.handleHealth(server))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(t.metrics.registry, promhttp.HandlerOpts{})))
	engine.GET("/events", t.handleEvents())

	return engine
}

// Run binds Handler(server) to Addr and blocks serving requests until ctx
// is canceled.
func (t *Transport) Run(ctx context.Context, server *policyserver.Server) error {
	srv := &http.Server{Addr: t.Addr, Handler: t.Handler(server)}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type evaluateResponse struct {
	EventID        string             `json:"event_id"`
	Verdicts       []protocol.Verdict `json:"verdicts"`
	ComposedVerdict protocol.Verdict  `json:"composed_verdict"`
	EvaluationMS   float64            `json:"evaluation_ms"`
}

func (t *Transport) handleEvaluate(server *policyserver.Server, composer *compose.Composer) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			t.metrics.recordError()
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body", "detail": err.Error(), "request_id": c.GetString(requestIDContextKey)})
			return
		}

		var event protocol.Event
		if err := json.Unmarshal(body, &event); err != nil {
			t.metrics.recordError()
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event", "detail": err.Error(), "request_id": c.GetString(requestIDContextKey)})
			return
		}

		if err := validatePayload(t.PayloadSchema, rawField(body, "payload")); err != nil {
			t.metrics.recordError()
			c.JSON(http.StatusBadRequest, gin.H{"error": "payload does not match schema", "detail": err.Error(), "request_id": c.GetString(requestIDContextKey)})
			return
		}

		start := time.Now()
		verdicts := server.Evaluate(c.Request.Context(), event)
		composed := composer.Compose(verdicts)
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0

		t.metrics.recordEvaluation(event.Type, composed.Decision, elapsed)
		if t.events != nil {
			if payload, err := json.Marshal(map[string]any{
				"event_id": event.ID,
				"type":     event.Type,
				"decision": composed.Decision,
			}); err == nil {
				t.events.publish(string(payload))
			}
		}

		c.JSON(http.StatusOK, evaluateResponse{
			EventID:         event.ID,
			Verdicts:        verdicts,
			ComposedVerdict: composed,
			EvaluationMS:    elapsed,
		})
	}
}

func (t *Transport) handleManifest(server *policyserver.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, server.Manifest())
	}
}

func (t *Transport) handleHealth(server *policyserver.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := server.Manifest()
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"server":         m.ServerName,
			"version":        m.ServerVersion,
			"policies_loaded": len(m.Policies),
			"uptime_seconds": time.Since(t.startedAt).Seconds(),
		})
	}
}

func (t *Transport) handleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		ch := t.events.subscribe()
		defer t.events.unsubscribe(ch)

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
				c.Writer.Flush()
			case <-ticker.C:
				fmt.Fprint(c.Writer, ": heartbeat\n\n")
				c.Writer.Flush()
			}
		}
	}
}
