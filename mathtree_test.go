package nebulite

import (
	"math"
	"testing"
)

func TestMathtreeArithmetic(t *testing.T) {
	tree, err := parseMathExpr("2 + 3 * 4 - 1", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tree.eval(); got != 13 {
		t.Errorf("eval = %v, want 13", got)
	}
}

func TestMathtreePrecedenceAndParens(t *testing.T) {
	tree, err := parseMathExpr("(2 + 3) * 4", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tree.eval(); got != 20 {
		t.Errorf("eval = %v, want 20", got)
	}
}

func TestMathtreeVariables(t *testing.T) {
	x := 5.0
	lookup := func(name string) *float64 {
		if name == "x" {
			return &x
		}
		return nil
	}
	tree, err := parseMathExpr("x * x + 1", lookup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tree.eval(); got != 26 {
		t.Errorf("eval = %v, want 26", got)
	}
	x = 10
	if got := tree.eval(); got != 101 {
		t.Errorf("eval after mutating x = %v, want 101 (pointer should track latest value)", got)
	}
}

func TestMathtreeBuiltins(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"gt(3, 2)", 1},
		{"gt(2, 3)", 0},
		{"and(1, 1)", 1},
		{"and(1, 0)", 0},
		{"or(0, 1)", 1},
		{"not(0)", 1},
		{"sgn(-5)", -1},
		{"sgn(5)", 1},
		{"sgn(0)", 0},
	}
	for _, c := range cases {
		tree, err := parseMathExpr(c.expr, nil)
		if err != nil {
			t.Fatalf("parse %q: %v", c.expr, err)
		}
		if got := tree.eval(); got != c.want {
			t.Errorf("%q = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestMathtreeDivisionByZeroIsNaN(t *testing.T) {
	tree, err := parseMathExpr("1 / 0", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := tree.eval(); !math.IsNaN(got) {
		t.Errorf("1/0 = %v, want NaN", got)
	}
}

func TestMathtreeUnresolvedVariableErrors(t *testing.T) {
	_, err := parseMathExpr("unknown + 1", func(string) *float64 { return nil })
	if err == nil {
		t.Fatalf("expected error for unresolved variable")
	}
}
