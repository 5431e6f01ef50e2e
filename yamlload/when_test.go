package yamlload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/corint-sh/corint/ast"
)

func decodeWhen(t *testing.T, src string) whenDoc {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	var w whenDoc
	require.NoError(t, node.Content[0].Decode(&w))
	return w
}

func TestWhenDocBareStringSugar(t *testing.T) {
	w := decodeWhen(t, `"amount > 100"`)
	require.NotNil(t, w.ConditionGroup)
	assert.Equal(t, ast.GroupKindAll, w.ConditionGroup.Kind)
	assert.Len(t, w.ConditionGroup.Conditions, 1)
}

func TestWhenDocMappingWithEventTypeAndAny(t *testing.T) {
	w := decodeWhen(t, `
event_type: payment
any:
  - "amount > 100"
  - 'country == "US"'
`)
	assert.Equal(t, "payment", w.EventType)
	require.NotNil(t, w.ConditionGroup)
	assert.Equal(t, ast.GroupKindAny, w.ConditionGroup.Kind)
	assert.Len(t, w.ConditionGroup.Conditions, 2)
}

func TestWhenDocRejectsLegacyConditionsKey(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
conditions:
  - "amount > 100"
`), &node))
	var w whenDoc
	err := node.Content[0].Decode(&w)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegacyConditions)
}

func TestWhenDocRejectsMutuallyExclusiveKeys(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
all:
  - "amount > 100"
any:
  - 'country == "US"'
`), &node))
	var w whenDoc
	err := node.Content[0].Decode(&w)
	require.Error(t, err)
}

func TestWhenDocAbsentIsVacuouslyTrue(t *testing.T) {
	type holder struct {
		When whenDoc `yaml:"when"`
	}
	var h holder
	require.NoError(t, yaml.Unmarshal([]byte(`name: foo`), &h))
	assert.Nil(t, h.When.ConditionGroup)
	assert.Empty(t, h.When.EventType)
}
