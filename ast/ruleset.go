package ast

import "github.com/corint-sh/corint/signal"

// DecisionRule is one row of a ruleset's conclusion table: a condition that,
// when true (or the designated default), sets a signal/actions pair.
type DecisionRule struct {
	Condition Expression // nil when Default is true
	Default   bool
	Signal    signal.Signal
	Actions   []string
	Reason    string
}

// Ruleset bundles an ordered set of member rules with a top-down,
// first-match conclusion table (spec §3).
type Ruleset struct {
	ID         string
	Name       string
	Extends    string
	Rules      []string // rule ids, declaration order
	Conclusion []DecisionRule
	Metadata   map[string]string
	Version    string
}
