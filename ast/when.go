package ast

// WhenBlock gates a rule or pipeline: an optional required event type plus
// an optional condition group (spec §3).
type WhenBlock struct {
	EventType      string
	ConditionGroup *ConditionGroup
}

// GroupKind distinguishes the three ConditionGroup combinators.
type GroupKind string

const (
	GroupKindAll GroupKind = "all"
	GroupKindAny GroupKind = "any"
	GroupKindNot GroupKind = "not"
)

// ConditionGroup is `All([Condition])|Any([Condition])|Not([Condition])`.
type ConditionGroup struct {
	Kind       GroupKind
	Conditions []Condition
}

// Condition is either a bare Expression or a nested Group.
type Condition struct {
	Expr  Expression      // set when this condition is a leaf expression
	Group *ConditionGroup // set when this condition nests another group
}
