package mip

import (
	"math"
	"testing"
)

func TestExprAlgebra(t *testing.T) {
	m := New(nil)
	x := m.Integer(0, 10)
	y := m.Integer(0, 10)

	sol := Solution{x: []float64{0, 2, 5}}

	tests := []struct {
		name   string
		expr   Expr
		expect float64
	}{
		{
			name:   "Constant",
			expr:   Const(7),
			expect: 7,
		},
		{
			name:   "Variable",
			expr:   x,
			expect: 2,
		},
		{
			name:   "Negation",
			expr:   x.Neg(),
			expect: -2,
		},
		{
			name:   "Sum of variables",
			expr:   x.Add(y),
			expect: 7,
		},
		{
			name:   "Difference",
			expr:   x.Sub(y),
			expect: -3,
		},
		{
			name:   "Scalar addition",
			expr:   x.AddConst(3.5),
			expect: 5.5,
		},
		{
			name:   "Scaling",
			expr:   x.Mul(2).Add(y.Mul(-1)),
			expect: -1,
		},
		{
			name:   "Division",
			expr:   y.Div(2),
			expect: 2.5,
		},
		{
			name:   "Composite",
			expr:   Const(1).Sub(x).Mul(4).AddConst(0.5),
			expect: -3.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sol.Value(tt.expr); math.Abs(got-tt.expect) > 1e-9 {
				t.Errorf("Value() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestExprOperationsArePure(t *testing.T) {
	m := New(nil)
	x := m.Integer(0, 10)

	sum := x.Add(Const(1))
	_ = sum.Mul(10)
	_ = sum.AddConst(100)

	sol := Solution{x: []float64{0, 3}}
	if got := sol.Value(sum); got != 4 {
		t.Errorf("original expression changed, Value() = %v, want 4", got)
	}
	if got := sol.Value(x); got != 3 {
		t.Errorf("operand changed, Value() = %v, want 3", got)
	}
}

func TestComparisonsCarryDifference(t *testing.T) {
	m := New(nil)
	x := m.Integer(0, 10)
	y := m.Integer(0, 10)

	tests := []struct {
		name string
		cond Constraint
		rel  Relation
	}{
		{"LessOrEqual", x.Le(y), LE},
		{"GreaterOrEqual", x.Ge(y), GE},
		{"Equal", x.Eq(y), EQ},
	}

	sol := Solution{x: []float64{0, 4, 1.5}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cond.Rel() != tt.rel {
				t.Errorf("Rel() = %v, want %v", tt.cond.Rel(), tt.rel)
			}
			// The carried expression is always lhs - rhs.
			if got := sol.Value(tt.cond.Expr()); math.Abs(got-2.5) > 1e-9 {
				t.Errorf("Value(Expr()) = %v, want 2.5", got)
			}
		})
	}
}

func TestConstraintConstantCarriesRHS(t *testing.T) {
	m := New(nil)
	x := m.Integer(0, 10)

	cond := x.AddConst(3).Le(Const(5))
	if got := cond.Expr().Constant(); got != -2 {
		t.Errorf("Constant() = %v, want -2", got)
	}
}
