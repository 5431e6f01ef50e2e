package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null, false},
		{Bool(false), false},
		{Bool(true), true},
		{Number(0), false},
		{Number(1), true},
		{String(""), false},
		{String("x"), true},
		{Array(nil), false},
		{Array([]Value{Number(1)}), true},
		{Object(nil), false},
		{Object(map[string]Value{"a": Number(1)}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestEqualStructural(t *testing.T) {
	a := Array([]Value{Number(1), String("x")})
	b := Array([]Value{Number(1), String("x")})
	if !Equal(a, b) {
		t.Fatalf("expected structural equality")
	}
	if Equal(Number(1), String("1")) {
		t.Fatalf("cross-kind values must never be equal")
	}
}

func TestCompare(t *testing.T) {
	if r, ok := Compare(Number(1), Number(2)); !ok || r != -1 {
		t.Fatalf("expected -1, got %d ok=%v", r, ok)
	}
	if _, ok := Compare(Number(1), String("a")); ok {
		t.Fatalf("cross-kind compare should be incomparable")
	}
}

func TestArithmeticDivisionByZero(t *testing.T) {
	if _, err := Div(Number(1), Number(0)); err != ErrDivisionByZero {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestAddConcatenatesStrings(t *testing.T) {
	v, err := Add(String("a"), String("b"))
	if err != nil {
		t.Fatal(err)
	}
	if v.AsString() != "ab" {
		t.Fatalf("got %q", v.AsString())
	}
}
