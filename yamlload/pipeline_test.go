package yamlload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
)

func TestLoadPipelineNewFormatSteps(t *testing.T) {
	src := []byte(`
id: pay_flow
entry: fetch_features
steps:
  - step:
      id: fetch_features
      type: function
      feature:
        type: velocity
        field: count
        window_seconds: 300
      store_as: vars.velocity_count
      next: route
  - step:
      id: route
      type: router
      routes:
        - next: run_rules
          when: "vars.velocity_count > 10"
      default: end
  - step:
      id: run_rules
      type: ruleset
      ruleset_id: high_risk
      next: end
decision:
  - default: true
    signal: approve
`)
	p, err := LoadPipeline("pay_flow.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "pay_flow", p.ID)
	assert.Equal(t, "fetch_features", p.Entry)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, ast.StepFunction, p.Steps[0].Type)
	require.NotNil(t, p.Steps[0].Feature)
	assert.Equal(t, "velocity", p.Steps[0].Feature.Type)
	assert.Equal(t, ast.StepRouter, p.Steps[1].Type)
	require.Len(t, p.Steps[1].Routes, 1)
	assert.Equal(t, "run_rules", p.Steps[1].Routes[0].Next)
	assert.Equal(t, ast.StepRuleset, p.Steps[2].Type)
	assert.Equal(t, "high_risk", p.Steps[2].RulesetID)
	require.Len(t, p.Decision, 1)
	assert.True(t, p.Decision[0].Default)
}

func TestLoadPipelineRejectsUnpermittedFieldForType(t *testing.T) {
	src := []byte(`
id: bad
steps:
  - step:
      id: s1
      type: router
      ruleset_id: nope
`)
	_, err := LoadPipeline("bad.yaml", src)
	require.Error(t, err)
}

func TestLoadPipelineLegacyFlatStepsSynthesizeNext(t *testing.T) {
	src := []byte(`
id: legacy_flow
steps:
  - type: function
    feature:
      type: velocity
      field: count
  - type: ruleset
    ruleset_id: high_risk
`)
	p, err := LoadPipeline("legacy.yaml", src)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "step_0", p.Steps[0].ID)
	assert.Equal(t, "step_1", p.Steps[0].Next)
	assert.Equal(t, "step_1", p.Steps[1].ID)
	assert.Equal(t, "end", p.Steps[1].Next)
	assert.Equal(t, "step_0", p.Entry)
}

func TestLoadPipelineLegacyBranchShorthand(t *testing.T) {
	src := []byte(`
id: branch_flow
steps:
  - branch:
      when: "vars.risk > 5"
      then: escalate
      else: approve_step
  - type: ruleset
    id: escalate
    ruleset_id: high_risk
  - type: ruleset
    id: approve_step
    ruleset_id: low_risk
`)
	p, err := LoadPipeline("branch.yaml", src)
	require.NoError(t, err)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, ast.StepRouter, p.Steps[0].Type)
	require.Len(t, p.Steps[0].Routes, 1)
	assert.Equal(t, "escalate", p.Steps[0].Routes[0].Next)
	assert.Equal(t, "approve_step", p.Steps[0].Default)
}

func TestLoadPipelineLegacyIncludeShorthand(t *testing.T) {
	src := []byte(`
id: include_flow
steps:
  - include: sub_flow
`)
	p, err := LoadPipeline("include.yaml", src)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, ast.StepPipeline, p.Steps[0].Type)
	assert.Equal(t, "sub_flow", p.Steps[0].SubPipelineID)
}

func TestLoadPipelineLegacyParallelShorthandIsNoOpMarker(t *testing.T) {
	src := []byte(`
id: parallel_flow
steps:
  - parallel:
      - score_a
      - score_b
  - type: ruleset
    ruleset_id: high_risk
`)
	p, err := LoadPipeline("parallel.yaml", src)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, ast.StepExtract, p.Steps[0].Type)
	assert.Equal(t, "step_1", p.Steps[0].Next)
}
