package parser

import (
	"testing"

	"github.com/corint-sh/corint/ast"
)

func TestParseValidExpressions(t *testing.T) {
	cases := []string{
		`user.age > 18`,
		`count(x, y) >= 10`,
		`"US" in ["US","CA"]`,
		`event.country not in ["RU","CN"]`,
		`x not in list.blocklist`,
		`!(a || b) && c`,
		`x == null`,
		`x + y * z`,
		`(a + b) * c`,
		`event.user.average_transaction * 3 < event.amount`,
	}
	for _, src := range cases {
		if _, err := Parse(src); err != nil {
			t.Errorf("Parse(%q) failed: %v", src, err)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse(`x + `); err == nil {
		t.Fatalf("expected error for incomplete expression")
	}
	if _, err := Parse(``); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestNotInBeforeIn(t *testing.T) {
	expr, err := Parse(`x not in list.blocklist`)
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := expr.(*ast.Binary)
	if !ok {
		t.Fatalf("expected *ast.Binary, got %T", expr)
	}
	if bin.Op != ast.OpNotIn {
		t.Fatalf("expected OpNotIn, got %v", bin.Op)
	}
	if _, ok := bin.Right.(*ast.ListReference); !ok {
		t.Fatalf("expected ListReference RHS, got %T", bin.Right)
	}
}
