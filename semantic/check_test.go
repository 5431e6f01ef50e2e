package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/value"
)

func TestArithmeticRequiresNumbers(t *testing.T) {
	expr := &ast.Binary{
		Left:  &ast.Literal{Value: value.Number(1)},
		Op:    ast.OpAdd,
		Right: &ast.Literal{Value: value.String("x")},
	}
	_, err := Check(expr, DefaultScope())
	require.Error(t, err)
}

func TestComparisonOfUnknownFieldIsBoolean(t *testing.T) {
	expr := &ast.Binary{
		Left:  &ast.FieldAccess{Path: []string{"event", "age"}},
		Op:    ast.OpGt,
		Right: &ast.Literal{Value: value.Number(18)},
	}
	typ, err := Check(expr, DefaultScope())
	require.NoError(t, err)
	require.Equal(t, KindBoolean, typ.Kind)
}

func TestInRequiresArrayRHS(t *testing.T) {
	expr := &ast.Binary{
		Left:  &ast.Literal{Value: value.String("US")},
		Op:    ast.OpIn,
		Right: &ast.ArrayLiteral{Items: []ast.Expression{&ast.Literal{Value: value.String("US")}}},
	}
	typ, err := Check(expr, DefaultScope())
	require.NoError(t, err)
	require.Equal(t, KindBoolean, typ.Kind)
}

func TestTernaryJoinsBranches(t *testing.T) {
	expr := &ast.Ternary{
		Cond: &ast.Literal{Value: value.Bool(true)},
		Then: &ast.Literal{Value: value.Number(1)},
		Else: &ast.Literal{Value: value.String("x")},
	}
	typ, err := Check(expr, DefaultScope())
	require.NoError(t, err)
	require.Equal(t, KindAny, typ.Kind)
}

func TestLogicalGroupRejectsNonBoolean(t *testing.T) {
	expr := &ast.LogicalGroup{
		Op:         ast.GroupAll,
		Conditions: []ast.Expression{&ast.Literal{Value: value.Number(1)}},
	}
	_, err := Check(expr, DefaultScope())
	require.Error(t, err)
}
