package yamlload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryPreservesOrder(t *testing.T) {
	src := []byte(`
- when: 'event_type == "payment"'
  pipeline: pay_flow
- when:
    event_type: refund
  pipeline: refund_flow
`)
	reg, err := LoadRegistry("registry.yaml", src)
	require.NoError(t, err)
	require.Len(t, reg.Entries, 2)
	assert.Equal(t, "pay_flow", reg.Entries[0].PipelineID)
	assert.Equal(t, "refund_flow", reg.Entries[1].PipelineID)
	assert.Equal(t, "refund", reg.Entries[1].When.EventType)
}

func TestLoadRegistryRequiresPipelineID(t *testing.T) {
	src := []byte(`
- when: "true"
`)
	_, err := LoadRegistry("registry.yaml", src)
	require.Error(t, err)
}
