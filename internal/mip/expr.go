// Package mip builds mixed-integer programs from algebraic expressions and
// constraints and solves them with a branch-and-bound backend.
package mip

import "sort"

// Relation classifies a constraint against zero.
type Relation int8

const (
	EQ Relation = iota
	LE
	GE
)

// Expr is a linear expression c + sum(k_i * x_i) over model variables.
// Expressions are values; every operation returns a new one and leaves its
// operands untouched.
type Expr struct {
	c       float64
	factors map[int]float64
}

// Const returns the constant expression v.
func Const(v float64) Expr {
	return Expr{c: v}
}

func (e Expr) clone() Expr {
	f := make(map[int]float64, len(e.factors))
	for id, k := range e.factors {
		f[id] = k
	}
	return Expr{c: e.c, factors: f}
}

// Neg returns -e.
func (e Expr) Neg() Expr {
	return e.Mul(-1)
}

// Add returns e + o.
func (e Expr) Add(o Expr) Expr {
	res := e.clone()
	for id, k := range o.factors {
		res.factors[id] += k
	}
	res.c += o.c
	return res
}

// Sub returns e - o.
func (e Expr) Sub(o Expr) Expr {
	return e.Add(o.Neg())
}

// AddConst returns e + v.
func (e Expr) AddConst(v float64) Expr {
	res := e.clone()
	res.c += v
	return res
}

// Mul returns e scaled by v.
func (e Expr) Mul(v float64) Expr {
	res := e.clone()
	for id := range res.factors {
		res.factors[id] *= v
	}
	res.c *= v
	return res
}

// Div returns e divided by v.
func (e Expr) Div(v float64) Expr {
	res := e.clone()
	for id := range res.factors {
		res.factors[id] /= v
	}
	res.c /= v
	return res
}

// Constant reports the constant term of e.
func (e Expr) Constant() float64 {
	return e.c
}

// Le returns the constraint e <= o.
func (e Expr) Le(o Expr) Constraint {
	return Constraint{expr: e.Sub(o), rel: LE}
}

// Ge returns the constraint e >= o.
func (e Expr) Ge(o Expr) Constraint {
	return Constraint{expr: e.Sub(o), rel: GE}
}

// Eq returns the constraint e = o.
func (e Expr) Eq(o Expr) Constraint {
	return Constraint{expr: e.Sub(o), rel: EQ}
}

// Constraint pairs an expression with a relation; it reads "expr rel 0",
// the constant term of the expression carrying the right-hand side.
type Constraint struct {
	expr Expr
	rel  Relation
}

// Expr returns the carried expression.
func (c Constraint) Expr() Expr {
	return c.expr
}

// Rel returns the relation.
func (c Constraint) Rel() Relation {
	return c.rel
}

// sortedIDs fixes the variable iteration order so that floating-point
// accumulation is reproducible across runs.
func sortedIDs(factors map[int]float64) []int {
	ids := make([]int, 0, len(factors))
	for id := range factors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
