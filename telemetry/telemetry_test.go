package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentpolicylayer/apl-go/telemetry"
)

func TestNoopLogger_DoesNotPanic(t *testing.T) {
	logger := telemetry.NewNoopLogger()
	ctx := context.Background()
	logger.Debug(ctx, "debug", "key", "value")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn", "count", 3)
	logger.Error(ctx, "error", "err", errors.New("boom"))
}

func TestNoopTracer_StartReturnsUsableSpan(t *testing.T) {
	tracer := telemetry.NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "op")
	span.AddEvent("progress", "step", 1)
	span.SetStatus(0, "ok")
	span.RecordError(errors.New("boom"))
	span.End()

	again := tracer.Span(ctx)
	again.End()
}
