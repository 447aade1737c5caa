package lifecycle

import "context"

type reentrancyKey struct{}

// MarkInsideEvaluation returns a context carrying the in-evaluation flag.
// A nested call that checks InsideEvaluation on the returned context (or
// any context derived from it) will see it set.
func MarkInsideEvaluation(ctx context.Context) context.Context {
	return context.WithValue(ctx, reentrancyKey{}, true)
}

// InsideEvaluation reports whether ctx was derived from a context
// MarkInsideEvaluation produced. An executor called with such a context
// must bypass evaluation entirely rather than recurse: this is how a
// policy server that itself makes an LLM call avoids re-entering
// evaluation for that inner call.
func InsideEvaluation(ctx context.Context) bool {
	v, _ := ctx.Value(reentrancyKey{}).(bool)
	return v
}
