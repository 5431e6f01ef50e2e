package ir

import "testing"

func TestValidateDecisionSubsetAcceptsLegalOps(t *testing.T) {
	ins := Instructions{
		{Op: OpLoadField, Path: []string{"result", "score"}},
		{Op: OpLoadConst},
		{Op: OpCompare},
		{Op: OpJumpIfFalse, Offset: 2},
		{Op: OpSetSignal, Signal: "APPROVE"},
		{Op: OpReturn},
	}
	if idx := ValidateDecisionSubset(ins); idx != -1 {
		t.Fatalf("expected no violation, got index %d", idx)
	}
}

func TestValidateDecisionSubsetRejectsIllegalOp(t *testing.T) {
	ins := Instructions{
		{Op: OpLoadConst},
		{Op: OpCallFeature},
		{Op: OpReturn},
	}
	if idx := ValidateDecisionSubset(ins); idx != 1 {
		t.Fatalf("expected violation at index 1, got %d", idx)
	}
}

func TestNoPlaceholderSurvives(t *testing.T) {
	ins := Instructions{
		{Op: OpJump, Offset: 3},
		{Op: OpReturn},
	}
	for i, instr := range ins {
		switch instr.Op {
		case OpJump, OpJumpIfTrue, OpJumpIfFalse:
			if instr.Offset == PlaceholderOffset {
				t.Fatalf("placeholder offset survived at instruction %d", i)
			}
		}
	}
}
