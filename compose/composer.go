package compose

import (
	"fmt"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// Config configures a Composer: which Mode to apply. A fail-open allow
// produced by the invoker for a timed-out or failing policy is composed
// like any other allow verdict.
type Config struct {
	Mode Mode
}

// DefaultConfig is deny_overrides, matching the policy server's own
// single-shot HTTP composition default.
var DefaultConfig = Config{Mode: ModeDenyOverrides}

// Composer binds a Config to the Strategy it names.
type Composer struct {
	config   Config
	strategy Strategy
}

// NewComposer resolves config.Mode to a Strategy. An unknown mode is a
// caller configuration error, reported eagerly rather than deferred to the
// first Compose call.
func NewComposer(config Config) (*Composer, error) {
	strategy, ok := Get(config.Mode)
	if !ok {
		return nil, fmt.Errorf("compose: unknown composition mode %q", config.Mode)
	}
	return &Composer{config: config, strategy: strategy}, nil
}

// Config returns the Composer's configuration.
func (c *Composer) Config() Config { return c.config }

// Compose reduces verdicts using the bound strategy.
func (c *Composer) Compose(verdicts []protocol.Verdict) protocol.Verdict {
	return c.strategy(verdicts)
}
