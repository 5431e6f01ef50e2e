package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/value"
)

func TestBuiltinTSScriptTranspilesTypeAnnotations(t *testing.T) {
	src := `
const double = (n: number): number => n * 2;
double(arg0);
`
	result, err := builtinTSScript([]value.Value{value.String(src), value.Number(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), result.AsNumber())
}

func TestBuiltinTSScriptRejectsInvalidSyntax(t *testing.T) {
	_, err := builtinTSScript([]value.Value{value.String("const x: = ;")})
	require.Error(t, err)
}

func TestBuiltinTSScriptRequiresStringFirstArg(t *testing.T) {
	_, err := builtinTSScript([]value.Value{value.Number(1)})
	require.Error(t, err)
}
