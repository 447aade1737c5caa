package lifecycle

import (
	"context"
	"strings"
)

// StreamAccumulator wraps a streaming LLM response: chunks pass through
// the caller untouched as they arrive, and the post-response event
// sequence is evaluated exactly once, after Close, against the full
// accumulated text. This is an intentional simplification relative to a
// per-chunk evaluation scheme: streaming modification mid-stream is out of
// scope, so there is nothing to apply back onto chunks already delivered.
type StreamAccumulator struct {
	executor *Executor
	context  *Context
	sequence Sequence

	builder strings.Builder
	closed  bool
}

// NewStreamAccumulator returns an accumulator that will run seq against c
// via executor once Close is called.
func NewStreamAccumulator(executor *Executor, c *Context, seq Sequence) *StreamAccumulator {
	return &StreamAccumulator{executor: executor, context: c, sequence: seq}
}

// Write appends chunk to the accumulated text and returns it unchanged,
// so a caller can pass chunks through to its own consumer in the same
// call that feeds the accumulator.
func (s *StreamAccumulator) Write(chunk string) string {
	s.builder.WriteString(chunk)
	return chunk
}

// Close finalizes the accumulated text into the context's response text
// and runs the bound sequence exactly once. Calling Close more than once
// is a no-op after the first call.
func (s *StreamAccumulator) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.context.ModifyResponseText(s.builder.String())
	return s.executor.Run(ctx, s.sequence, s.context)
}
