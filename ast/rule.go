package ast

// Rule is a boolean predicate that contributes score to the accumulator
// when its `when` block evaluates true (spec §3).
type Rule struct {
	ID          string
	Name        string
	Description string
	Params      map[string]Expression
	When        WhenBlock
	Score       int32
	Metadata    map[string]string
	Version     string
}
