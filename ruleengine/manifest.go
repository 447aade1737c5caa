// Package ruleengine turns a YAML manifest of condition/action rules into
// evaluatable policy handlers, without requiring a line of Go code per
// policy. It implements dot-path traversal, an extensible operator
// registry, and {{path}} template substitution against an event.
package ruleengine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/agentpolicylayer/apl-go/protocol"
)

// Manifest is the root of a declarative policy file.
type Manifest struct {
	Name        string          `yaml:"name"`
	Version     string          `yaml:"version"`
	Description string          `yaml:"description,omitempty"`
	Policies    []PolicyManifest `yaml:"policies"`
}

// PolicyManifest is one policy's declaration within a Manifest.
type PolicyManifest struct {
	Name        string               `yaml:"name"`
	Version     string               `yaml:"version,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Events      []protocol.EventType `yaml:"events"`
	Blocking    bool                 `yaml:"blocking,omitempty"`
	TimeoutMS   int                  `yaml:"timeout_ms,omitempty"`
	Rules       []Rule               `yaml:"rules"`
}

// Rule is one when/then pair. When is a map of dot-path to condition; Then
// is the verdict template produced when every condition in When matches.
type Rule struct {
	When map[string]any `yaml:"when"`
	Then Then           `yaml:"then"`
}

// Then is the verdict-shaped template rendered when a Rule's When matches.
type Then struct {
	Decision     string            `yaml:"decision,omitempty"`
	Reasoning    string            `yaml:"reasoning,omitempty"`
	Modification *ThenModification `yaml:"modification,omitempty"`
	Escalation   *ThenEscalation   `yaml:"escalation,omitempty"`
}

// ThenModification is the manifest form of protocol.Modification; Value
// may be any YAML scalar/map/list and is template-rendered if a string.
type ThenModification struct {
	Target    string `yaml:"target"`
	Operation string `yaml:"operation"`
	Value     any    `yaml:"value"`
	Path      string `yaml:"path,omitempty"`
}

// ThenEscalation is the manifest form of protocol.Escalation.
type ThenEscalation struct {
	Type           string   `yaml:"type"`
	Prompt         string   `yaml:"prompt,omitempty"`
	FallbackAction string   `yaml:"fallback_action,omitempty"`
	TimeoutMS      *int     `yaml:"timeout_ms,omitempty"`
	Options        []string `yaml:"options,omitempty"`
}

// LoadManifest parses YAML manifest bytes and validates its structure. A
// parse error and a validation error are both returned as plain errors;
// neither is fatal to a caller that wants to report it and keep running.
func LoadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ruleengine: parsing manifest: %w", err)
	}
	if errs := Validate(&m); len(errs) > 0 {
		return nil, fmt.Errorf("ruleengine: invalid manifest: %w", joinErrors(errs))
	}
	return &m, nil
}

// Validate checks the structural rules a Manifest must satisfy and returns
// every violation found, rather than stopping at the first.
func Validate(m *Manifest) []error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, fmt.Errorf("manifest missing required field \"name\""))
	}
	if len(m.Policies) == 0 {
		errs = append(errs, fmt.Errorf("manifest missing required field \"policies\""))
	}
	for i, p := range m.Policies {
		label := p.Name
		if label == "" {
			label = fmt.Sprintf("policies[%d]", i)
		}
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("policy %s missing required field \"name\"", label))
		}
		if len(p.Events) == 0 {
			errs = append(errs, fmt.Errorf("policy %s missing required field \"events\"", label))
		}
		for _, et := range p.Events {
			if !et.Valid() {
				errs = append(errs, fmt.Errorf("policy %s declares unknown event type %q", label, et))
			}
		}
		if len(p.Rules) == 0 {
			errs = append(errs, fmt.Errorf("policy %s missing required field \"rules\"", label))
		}
		for j, r := range p.Rules {
			if r.When == nil {
				errs = append(errs, fmt.Errorf("policy %s rule[%d] missing \"when\"", label, j))
			}
			if r.Then == (Then{}) {
				errs = append(errs, fmt.Errorf("policy %s rule[%d] missing \"then\"", label, j))
			}
			if r.Then.Decision != "" && !protocol.Decision(r.Then.Decision).Valid() {
				errs = append(errs, fmt.Errorf("policy %s rule[%d] then.decision is not a known decision: %q", label, j, r.Then.Decision))
			}
		}
	}
	return errs
}

func joinErrors(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
