package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/collab"
	"github.com/corint-sh/corint/ir"
	"github.com/corint-sh/corint/value"
	"github.com/corint-sh/corint/yamlload"
)

func newProgram(ins ir.Instructions) *ir.Program {
	return &ir.Program{
		Instructions: ins,
		Metadata: ir.ProgramMetadata{
			SourceType: ir.SourceRule,
			SourceID:   "test_program",
		},
	}
}

// TestRuleProgramTriggersOnlyWhenConditionHolds exercises spec §8
// property #1: a false `when` leaves score and triggered_rules
// untouched, while a true `when` both adds score and records the
// trigger.
func TestRuleProgramTriggersOnlyWhenConditionHolds(t *testing.T) {
	vm := NewVM(nil, nil)

	program := func(threshold float64) *ir.Program {
		return newProgram(ir.Instructions{
			{Op: ir.OpLoadField, Path: []string{"event", "amount"}},
			{Op: ir.OpLoadConst, Const: value.Number(threshold)},
			{Op: ir.OpCompare, BinOp: ast.OpGte},
			{Op: ir.OpJumpIfFalse, Offset: 3},
			{Op: ir.OpAddScore, Amount: 50},
			{Op: ir.OpMarkRuleTriggered, RuleID: "big_amount"},
			{Op: ir.OpReturn},
		})
	}

	ec := newTestCtx(map[string]value.Value{"amount": value.Number(10)})
	require.NoError(t, vm.Run(context.Background(), ec, program(100)))
	assert.Equal(t, int32(0), ec.Result.Score)
	assert.Empty(t, ec.Result.TriggeredRules)

	ec2 := newTestCtx(map[string]value.Value{"amount": value.Number(150)})
	require.NoError(t, vm.Run(context.Background(), ec2, program(100)))
	assert.Equal(t, int32(50), ec2.Result.Score)
	assert.Equal(t, []string{"big_amount"}, ec2.Result.TriggeredRules)
}

// TestJumpPastEndHalts exercises the "jump target equal to len(ins) is
// legal and means halt" rule (spec §3/§4.4/§8 property #3).
func TestJumpPastEndHalts(t *testing.T) {
	vm := NewVM(nil, nil)
	ins := ir.Instructions{
		{Op: ir.OpLoadConst, Const: value.Bool(true)},
		{Op: ir.OpJumpIfTrue, Offset: 2}, // pc(1) + offset(2) == len(ins), a legal halt
		{Op: ir.OpAddScore, Amount: 999},
	}
	ec := newTestCtx(nil)
	require.NoError(t, vm.run(context.Background(), ec, ins))
	assert.Equal(t, int32(0), ec.Result.Score)
}

func TestCheckEventTypeMismatchHaltsSilently(t *testing.T) {
	vm := NewVM(nil, nil)
	program := newProgram(ir.Instructions{
		{Op: ir.OpCheckEventType, ExpectedEventType: "login"},
		{Op: ir.OpAddScore, Amount: 10},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(map[string]value.Value{"event_type": value.String("transaction")})
	require.NoError(t, vm.Run(context.Background(), ec, program))
	assert.Equal(t, int32(0), ec.Result.Score)
}

func TestCheckEventTypeMissingFieldIsFatal(t *testing.T) {
	vm := NewVM(nil, nil)
	program := newProgram(ir.Instructions{
		{Op: ir.OpCheckEventType, ExpectedEventType: "login"},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(nil)
	err := vm.Run(context.Background(), ec, program)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestCallRulesetAppendsWithoutExecuting(t *testing.T) {
	vm := NewVM(nil, nil)
	program := newProgram(ir.Instructions{
		{Op: ir.OpCallRuleset, TargetRulesetID: "fraud_ruleset"},
		{Op: ir.OpCallRuleset, TargetRulesetID: "fraud_ruleset"}, // de-duplicated
		{Op: ir.OpCallRuleset, TargetRulesetID: "velocity_ruleset"},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(nil)
	require.NoError(t, vm.Run(context.Background(), ec, program))
	assert.Equal(t, []string{"fraud_ruleset", "velocity_ruleset"}, ec.Result.StringList(VarRulesetsToExecute))
	assert.Equal(t, "velocity_ruleset", ec.Result.GetVar(VarNextRuleset).AsString())
}

func TestListLookupHonoursNegate(t *testing.T) {
	listSvc := collab.NewStaticListService([]*yamlload.ListConfig{
		{ID: "blocklist", Values: []string{"RU", "CN"}},
	}, nil)
	vm := NewVM(&collab.Collaborators{List: listSvc}, nil)

	contains := newProgram(ir.Instructions{
		{Op: ir.OpLoadField, Path: []string{"event", "country"}},
		{Op: ir.OpListLookup, ListID: "blocklist"},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(map[string]value.Value{"country": value.String("RU")})
	require.NoError(t, vm.Run(context.Background(), ec, contains))
	assert.Equal(t, 1, ec.StackLen())
	top, err := ec.Pop()
	require.NoError(t, err)
	assert.True(t, top.AsBool())

	notIn := newProgram(ir.Instructions{
		{Op: ir.OpLoadField, Path: []string{"event", "country"}},
		{Op: ir.OpListLookup, ListID: "blocklist", Negate: true},
		{Op: ir.OpReturn},
	})
	ec2 := newTestCtx(map[string]value.Value{"country": value.String("US")})
	require.NoError(t, vm.Run(context.Background(), ec2, notIn))
	top2, err := ec2.Pop()
	require.NoError(t, err)
	assert.True(t, top2.AsBool())
}

func TestListLookupMissingListTreatedAsEmpty(t *testing.T) {
	listSvc := collab.NewStaticListService(nil, nil)
	vm := NewVM(&collab.Collaborators{List: listSvc}, nil)
	program := newProgram(ir.Instructions{
		{Op: ir.OpLoadField, Path: []string{"event", "country"}},
		{Op: ir.OpListLookup, ListID: "nonexistent_list"},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(map[string]value.Value{"country": value.String("RU")})
	require.NoError(t, vm.Run(context.Background(), ec, program))
	top, err := ec.Pop()
	require.NoError(t, err)
	assert.False(t, top.AsBool())
}

func TestDivisionByZeroIsFatal(t *testing.T) {
	vm := NewVM(nil, nil)
	program := newProgram(ir.Instructions{
		{Op: ir.OpLoadConst, Const: value.Number(10)},
		{Op: ir.OpLoadConst, Const: value.Number(0)},
		{Op: ir.OpBinaryOp, BinOp: ast.OpDiv},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(nil)
	err := vm.Run(context.Background(), ec, program)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestRunDecisionRejectsIllegalOps(t *testing.T) {
	vm := NewVM(nil, nil)
	program := &ir.Program{
		Instructions: ir.Instructions{{Op: ir.OpReturn}},
		Metadata:     ir.ProgramMetadata{SourceType: ir.SourcePipeline, SourceID: "p1"},
		DecisionInstructions: ir.Instructions{
			{Op: ir.OpCallFeature},
			{Op: ir.OpReturn},
		},
	}
	ec := newTestCtx(nil)
	ec.Push(value.Number(1)) // leftover from a prior pass
	err := vm.RunDecision(context.Background(), ec, program)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalDecisionOp)
}

// TestCallServiceRoutesLLMServiceNameThroughLLMCollaborator exercises
// the spec §4.9 LLM supplement: a CallService step naming the `llm`
// service dispatches through Collaborators.LLM, not Collaborators.
// Service, and surfaces a text/thinking/tokens object.
func TestCallServiceRoutesLLMServiceNameThroughLLMCollaborator(t *testing.T) {
	vm := NewVM(&collab.Collaborators{LLM: collab.NewMockLLMClient()}, nil)
	program := newProgram(ir.Instructions{
		{
			Op:          ir.OpCallService,
			ServiceName: "llm",
			ServiceOp:   "complete",
			Params: map[string]ir.Instructions{
				"prompt": {{Op: ir.OpLoadConst, Const: value.String("summarize this transaction")}},
			},
		},
		{Op: ir.OpReturn},
	})
	ec := newTestCtx(nil)
	require.NoError(t, vm.Run(context.Background(), ec, program))
	require.Equal(t, 1, ec.StackLen())
	top, err := ec.Pop()
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, top.Kind())
	assert.Equal(t, "Mock LLM response", top.Get("text").AsString())
}

func TestRunDecisionAppliesSignal(t *testing.T) {
	vm := NewVM(nil, nil)
	program := &ir.Program{
		Instructions: ir.Instructions{{Op: ir.OpReturn}},
		Metadata:     ir.ProgramMetadata{SourceType: ir.SourcePipeline, SourceID: "p1"},
		DecisionInstructions: ir.Instructions{
			{Op: ir.OpLoadField, Path: []string{"total_score"}},
			{Op: ir.OpLoadConst, Const: value.Number(50)},
			{Op: ir.OpCompare, BinOp: ast.OpGte},
			{Op: ir.OpJumpIfFalse, Offset: 2},
			{Op: ir.OpSetSignal, Signal: "DECLINE"},
			{Op: ir.OpReturn},
		},
	}
	ec := newTestCtx(nil)
	ec.Result.Score = 75
	require.NoError(t, vm.RunDecision(context.Background(), ec, program))
	require.NotNil(t, ec.Result.Signal)
	assert.Equal(t, "DECLINE", string(*ec.Result.Signal))
	assert.Equal(t, 0, ec.StackLen())
}
