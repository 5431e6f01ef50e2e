package yamlload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/signal"
)

func TestLoadRuleDecodesCoreFields(t *testing.T) {
	src := []byte(`
id: velocity_high
name: High velocity
when: "event.amount > 500"
score: 40
params:
  threshold: "100 + 1"
version: "1.2"
`)
	rule, err := LoadRule("velocity_high.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "velocity_high", rule.ID)
	assert.Equal(t, int32(40), rule.Score)
	assert.Equal(t, "1.2", rule.Version)
	require.Contains(t, rule.Params, "threshold")
	require.NotNil(t, rule.When.ConditionGroup)
}

func TestLoadRuleRequiresID(t *testing.T) {
	_, err := LoadRule("bad.yaml", []byte(`name: no id here`))
	require.Error(t, err)
}

func TestLoadRuleRejectsLegacyConditions(t *testing.T) {
	src := []byte(`
id: r1
conditions:
  - "amount > 1"
`)
	_, err := LoadRule("legacy.yaml", src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegacyConditions)
}

func TestLoadRuleDefaultsVersion(t *testing.T) {
	rule, err := LoadRule("v.yaml", []byte(`id: r1`))
	require.NoError(t, err)
	assert.Equal(t, "0.1", rule.Version)
}

func TestLoadRuleRejectsInvalidVersion(t *testing.T) {
	_, err := LoadRule("bad_version.yaml", []byte(`
id: r1
version: "not-a-version"
`))
	require.Error(t, err)
}

func TestLoadRulesetConclusionRows(t *testing.T) {
	src := []byte(`
id: rs1
rules: [velocity_high]
conclusion:
  - condition: "score >= 40"
    signal: decline
    reason: "too risky"
  - default: true
    signal: approve
`)
	rs, err := LoadRuleset("rs1.yaml", src)
	require.NoError(t, err)
	require.Len(t, rs.Conclusion, 2)
	assert.Equal(t, signal.Decline, rs.Conclusion[0].Signal)
	assert.True(t, rs.Conclusion[1].Default)
	assert.Equal(t, signal.Approve, rs.Conclusion[1].Signal)
}

func TestLoadRulesetRejectsUnknownSignal(t *testing.T) {
	src := []byte(`
id: rs1
conclusion:
  - default: true
    signal: maybe
`)
	_, err := LoadRuleset("rs1.yaml", src)
	require.Error(t, err)
}

func TestLoadRulesetRejectsMissingConditionOnNonDefaultRow(t *testing.T) {
	src := []byte(`
id: rs1
conclusion:
  - signal: decline
`)
	_, err := LoadRuleset("rs1.yaml", src)
	require.Error(t, err)
}
