package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/value"
)

func newTestCtx(event map[string]value.Value) *ExecutionContext {
	return NewExecutionContext("req_test", time.Unix(0, 0), event, nil, nil, nil, nil, nil)
}

func TestValidateEventKeysRejectsReservedTopLevelKey(t *testing.T) {
	event := map[string]value.Value{"total_score": value.Number(1)}
	err := ValidateEventKeys(event)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReservedField)
}

func TestValidateEventKeysRejectsReservedPrefixAtAnyDepth(t *testing.T) {
	event := map[string]value.Value{
		"user": value.Object(map[string]value.Value{
			"sys_internal": value.Bool(true),
		}),
	}
	err := ValidateEventKeys(event)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReservedField)
}

func TestValidateEventKeysAcceptsOrdinaryEvent(t *testing.T) {
	event := map[string]value.Value{
		"event_type": value.String("transaction"),
		"amount":     value.Number(10),
	}
	require.NoError(t, ValidateEventKeys(event))
}

func TestLoadFieldNamespaceRouting(t *testing.T) {
	ec := newTestCtx(map[string]value.Value{
		"country": value.String("US"),
	})

	v, err := ec.LoadField([]string{"event", "country"})
	require.NoError(t, err)
	assert.Equal(t, "US", v.AsString())

	// A bare namespace name returns the whole object (spec §4.5.1).
	v, err = ec.LoadField([]string{"event"})
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, v.Kind())
}

func TestLoadFieldFallsBackToEventThenResultVariables(t *testing.T) {
	ec := newTestCtx(map[string]value.Value{"country": value.String("US")})

	// No namespace prefix: falls back to event first.
	v, err := ec.LoadField([]string{"country"})
	require.NoError(t, err)
	assert.Equal(t, "US", v.AsString())

	// Not in event: falls back to result.variables.
	ec.Result.SetVar("risk_tier", value.String("high"))
	v, err = ec.LoadField([]string{"risk_tier"})
	require.NoError(t, err)
	assert.Equal(t, "high", v.AsString())
}

func TestLoadFieldVirtualFields(t *testing.T) {
	ec := newTestCtx(nil)
	ec.Result.Score = 42
	ec.Result.MarkTriggered("rule_a")
	ec.Result.MarkTriggered("rule_b")
	ec.Result.MarkTriggered("rule_a") // de-duplicated, first-trigger order preserved

	v, err := ec.LoadField([]string{"total_score"})
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.AsNumber())

	v, err = ec.LoadField([]string{"triggered_count"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), v.AsNumber())

	v, err = ec.LoadField([]string{"triggered_rules"})
	require.NoError(t, err)
	require.Equal(t, value.KindArray, v.Kind())
	arr := v.AsArray()
	require.Len(t, arr, 2)
	assert.Equal(t, "rule_a", arr[0].AsString())
	assert.Equal(t, "rule_b", arr[1].AsString())
}

func TestLoadFieldMissingIsNullNeverErrors(t *testing.T) {
	ec := newTestCtx(map[string]value.Value{
		"user": value.Object(map[string]value.Value{
			"country": value.String("US"),
		}),
	})

	v, err := ec.LoadField([]string{"event", "user", "does_not_exist"})
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	// Traversal into a non-object also returns Null gracefully.
	v, err = ec.LoadField([]string{"event", "user", "country", "deeper"})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestLoadFieldEmptyPathIsFatal(t *testing.T) {
	ec := newTestCtx(nil)
	_, err := ec.LoadField(nil)
	require.Error(t, err)
}

func TestStoreRejectsReadOnlyNamespaces(t *testing.T) {
	ec := newTestCtx(map[string]value.Value{"country": value.String("US")})

	err := ec.Store([]string{"event", "country"}, value.String("CA"))
	require.Error(t, err)

	err = ec.Store([]string{"sys", "request_id"}, value.String("x"))
	require.Error(t, err)

	err = ec.Store([]string{"env", "anything"}, value.String("x"))
	require.Error(t, err)
}

func TestStoreDottedPathIntoVars(t *testing.T) {
	ec := newTestCtx(nil)
	require.NoError(t, ec.Store([]string{"vars", "risk", "tier"}, value.String("high")))

	v, err := ec.LoadField([]string{"vars", "risk", "tier"})
	require.NoError(t, err)
	assert.Equal(t, "high", v.AsString())
}

func TestStoreBareNonNamespacedPathDefaultsToVars(t *testing.T) {
	ec := newTestCtx(nil)
	require.NoError(t, ec.Store([]string{"ip_reputation"}, value.Number(7)))

	v, err := ec.LoadField([]string{"vars", "ip_reputation"})
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.AsNumber())
}

func TestStackDiscipline(t *testing.T) {
	ec := newTestCtx(nil)

	_, err := ec.Pop()
	assert.ErrorIs(t, err, ErrStackUnderflow)

	err = ec.Dup()
	assert.ErrorIs(t, err, ErrStackUnderflow)

	err = ec.Swap()
	assert.ErrorIs(t, err, ErrStackUnderflow)

	ec.Push(value.Number(1))
	err = ec.Swap()
	assert.ErrorIs(t, err, ErrStackUnderflow)

	ec.Push(value.Number(2))
	require.NoError(t, ec.Swap())
	top, err := ec.Pop()
	require.NoError(t, err)
	assert.Equal(t, float64(1), top.AsNumber())
}

func TestSysNamespaceSeeded(t *testing.T) {
	ec := newTestCtx(nil)
	v, err := ec.LoadField([]string{"sys", "request_id"})
	require.NoError(t, err)
	assert.Equal(t, "req_test", v.AsString())
}
