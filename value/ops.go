package value

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// ErrType is returned for runtime type errors inside arithmetic/comparison
// operators (§7: "runtime TypeError" is fatal to the request).
var ErrType = errors.New("type error")

// ErrDivisionByZero is raised by Divide/Modulo on a zero divisor (§7).
var ErrDivisionByZero = errors.New("division by zero")

// Add implements `+`. Numbers add numerically; strings concatenate, matching
// the "+ -" arithmetic row of the expression grammar (§4.1) while keeping a
// pragmatic string-concatenation escape hatch authors rely on in practice.
func Add(a, b Value) (Value, error) {
	if a.kind == KindNumber && b.kind == KindNumber {
		return Number(a.n + b.n), nil
	}
	if a.kind == KindString || b.kind == KindString {
		return String(a.String() + b.String()), nil
	}
	return Null, errors.Wrapf(ErrType, "cannot add %s and %s", a.kind, b.kind)
}

func Sub(a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Null, errors.Wrapf(ErrType, "cannot subtract %s and %s", a.kind, b.kind)
	}
	return Number(a.n - b.n), nil
}

func Mul(a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Null, errors.Wrapf(ErrType, "cannot multiply %s and %s", a.kind, b.kind)
	}
	return Number(a.n * b.n), nil
}

func Div(a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Null, errors.Wrapf(ErrType, "cannot divide %s and %s", a.kind, b.kind)
	}
	if b.n == 0 {
		return Null, ErrDivisionByZero
	}
	return Number(a.n / b.n), nil
}

func Mod(a, b Value) (Value, error) {
	if a.kind != KindNumber || b.kind != KindNumber {
		return Null, errors.Wrapf(ErrType, "cannot modulo %s and %s", a.kind, b.kind)
	}
	if b.n == 0 {
		return Null, ErrDivisionByZero
	}
	ai, bi := int64(a.n), int64(b.n)
	return Number(float64(ai % bi)), nil
}

// Contains implements the `contains` string operator.
func Contains(haystack, needle Value) (Value, error) {
	if haystack.kind != KindString || needle.kind != KindString {
		return Null, errors.Wrapf(ErrType, "contains requires strings, got %s/%s", haystack.kind, needle.kind)
	}
	return Bool(strings.Contains(haystack.s, needle.s)), nil
}

func StartsWith(s, prefix Value) (Value, error) {
	if s.kind != KindString || prefix.kind != KindString {
		return Null, errors.Wrapf(ErrType, "starts_with requires strings, got %s/%s", s.kind, prefix.kind)
	}
	return Bool(strings.HasPrefix(s.s, prefix.s)), nil
}

func EndsWith(s, suffix Value) (Value, error) {
	if s.kind != KindString || suffix.kind != KindString {
		return Null, errors.Wrapf(ErrType, "ends_with requires strings, got %s/%s", s.kind, suffix.kind)
	}
	return Bool(strings.HasSuffix(s.s, suffix.s)), nil
}

// Matches implements the `=~` regex operator. It uses dlclark/regexp2
// rather than the standard library so authors can use lookaround and
// backreferences in fraud signatures (e.g. negative lookahead on card BINs),
// which RE2 cannot express.
func Matches(s, pattern Value) (Value, error) {
	if s.kind != KindString || pattern.kind != KindString {
		return Null, errors.Wrapf(ErrType, "regex match requires strings, got %s/%s", s.kind, pattern.kind)
	}
	re, err := regexp2.Compile(pattern.s, regexp2.None)
	if err != nil {
		return Null, errors.Wrapf(ErrType, "invalid regex %q: %s", pattern.s, err)
	}
	ok, err := re.MatchString(s.s)
	if err != nil {
		return Null, errors.Wrap(err, "regex match failed")
	}
	return Bool(ok), nil
}

// In implements `in` / `not in` against an array right-hand side.
func In(needle, haystack Value) (Value, error) {
	if haystack.kind != KindArray {
		return Null, errors.Wrapf(ErrType, "in requires an array right-hand side, got %s", haystack.kind)
	}
	for _, item := range haystack.arr {
		if Equal(needle, item) {
			return Bool(true), nil
		}
	}
	return Bool(false), nil
}

// TypeName renders a diagnostic type name, used in compile-time error
// messages (§7 TypeError).
func TypeName(v Value) string { return v.kind.String() }

// Describe formats a Value for use in trace ConditionTrace left/right
// display (§4.8).
func Describe(v Value) string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.s)
	default:
		return v.String()
	}
}
