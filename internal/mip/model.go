package mip

import (
	"fmt"
	"math"

	"github.com/iwvelando/allocator/pkg/mathutil"
)

// VarKind distinguishes the variable domains supported by the model.
type VarKind int8

const (
	ContinuousVar VarKind = iota
	IntegerVar
	BinaryVar
)

type varInfo struct {
	kind VarKind
	min  float64
	max  float64
}

// StatusCallback receives branch-and-bound progress as the number of active
// nodes and a completion fraction in [0, 1]. Returning false stops the
// search; the pending solve then yields the empty Solution.
type StatusCallback func(activeNodes int, progress float64) bool

// Model is an append-only arena of variables and constraints that can be
// optimized repeatedly. It is not safe for concurrent use; one optimize call
// owns the model for its whole duration.
type Model struct {
	vars     []varInfo
	conds    []Constraint
	callback StatusCallback
	backend  backend
}

// New returns an empty model. Backends reject problems without variables or
// constraints, so the model is seeded with one fixed variable and a trivial
// constraint on it.
func New(callback StatusCallback) *Model {
	m := &Model{callback: callback, backend: &simplexBackend{}}
	v := m.newVar(ContinuousVar, 0, 0)
	m.Restrict(v.Eq(Const(0)))
	return m
}

// Binary declares a new 0/1 variable and returns it as an expression.
func (m *Model) Binary() Expr {
	return m.newVar(BinaryVar, 0, 1)
}

// Integer declares an integer variable on [min, max]. Non-integral bounds
// are truncated toward zero.
func (m *Model) Integer(min, max float64) Expr {
	lo, hi := math.Trunc(min), math.Trunc(max)
	if lo > hi {
		panic(fmt.Sprintf("mip: inverted integer bounds [%v, %v]", min, max))
	}
	return m.newVar(IntegerVar, lo, hi)
}

// IntegerTo declares an integer variable on [0, max].
func (m *Model) IntegerTo(max float64) Expr {
	return m.Integer(0, max)
}

func (m *Model) newContinuous(min, max float64) Expr {
	if min > max {
		panic(fmt.Sprintf("mip: inverted continuous bounds [%v, %v]", min, max))
	}
	return m.newVar(ContinuousVar, min, max)
}

func (m *Model) newVar(kind VarKind, min, max float64) Expr {
	id := len(m.vars)
	m.vars = append(m.vars, varInfo{kind: kind, min: min, max: max})
	return Expr{factors: map[int]float64{id: 1}}
}

// Restrict appends the constraint to the model.
func (m *Model) Restrict(c Constraint) {
	m.conds = append(m.conds, c)
}

// Checkpoint captures the arena sizes of a model at one point in time.
type Checkpoint struct {
	vars  int
	conds int
}

// Checkpoint records the current model state for a later Rollback.
func (m *Model) Checkpoint() Checkpoint {
	return Checkpoint{vars: len(m.vars), conds: len(m.conds)}
}

// Rollback truncates the variable and constraint arenas to the sizes the
// checkpoint recorded. A checkpoint ahead of the current state is a
// programming error.
func (m *Model) Rollback(cp Checkpoint) {
	if cp.vars > len(m.vars) || cp.conds > len(m.conds) {
		panic("mip: rollback past the current model state")
	}
	m.vars = m.vars[:cp.vars]
	m.conds = m.conds[:cp.conds]
}

// Bounds computes interval-arithmetic bounds of e under the variable bounds.
func (m *Model) Bounds(e Expr) (minV, maxV float64) {
	minV, maxV = e.c, e.c
	for _, id := range sortedIDs(e.factors) {
		k := e.factors[id]
		vi := m.vars[id]
		if k > 0 {
			minV += vi.min * k
			maxV += vi.max * k
		} else {
			minV += vi.max * k
			maxV += vi.min * k
		}
	}
	if minV > maxV {
		panic("mip: inverted expression bounds")
	}
	return minV, maxV
}

// Abs returns an expression equal to |e| under every feasible assignment.
// When the sign of e is fixed by its bounds no variables are created;
// otherwise a binary selector splits e into its positive and negative parts.
func (m *Model) Abs(e Expr) Expr {
	minV, maxV := m.Bounds(e)
	switch {
	case minV >= 0:
		return e
	case maxV <= 0:
		return e.Neg()
	}

	isPositive := m.Binary()
	pos := m.newContinuous(0, maxV)
	neg := m.newContinuous(minV, 0)

	m.Restrict(pos.Add(neg).Eq(e))

	m.Restrict(pos.Le(isPositive.Mul(maxV)))
	m.Restrict(neg.Ge(Const(1).Sub(isPositive).Mul(minV)))

	return pos.Sub(neg)
}

// SquareApprox returns a piecewise-linear underestimate of e*e over the
// bounds of e, anchored at the reference points: the approximation matches
// the true square exactly at every point in the set. An empty set is seeded
// with the in-range value closest to zero.
func (m *Model) SquareApprox(e Expr, points *RefPoints) Expr {
	minV, maxV := m.Bounds(e)
	if minV == maxV {
		return Const(minV * maxV)
	}

	if points.Empty() {
		points.Insert(mathutil.Clamp(0, minV, maxV))
	}

	pts := points.Points()
	x1 := minV
	y1 := pts[0] * (2*x1 - pts[0])

	var parts, source, result Expr
	for i, p1 := range pts {
		var x2, y2 float64
		if i+1 < len(pts) {
			p2 := pts[i+1]
			x2 = (p1 + p2) / 2
			y2 = p1 * p2
		} else {
			x2 = maxV
			y2 = p1 * (2*x2 - p1)
		}

		enable := m.Binary()
		parts = parts.Add(enable)

		x := m.newContinuous(0, x2-x1)
		m.Restrict(x.Le(enable.Mul(x2 - x1)))

		source = source.Add(x).Add(enable.Mul(x1))
		result = result.Add(x.Mul((y2 - y1) / (x2 - x1))).Add(enable.Mul(y1))

		x1 = x2
		y1 = y2
	}

	m.Restrict(parts.Eq(Const(1)))
	m.Restrict(e.Eq(source))

	return result
}

// Minimize solves the model for the minimum of e.
func (m *Model) Minimize(e Expr) Solution {
	return m.optimize(e)
}

// Maximize solves the model for the maximum of e.
func (m *Model) Maximize(e Expr) Solution {
	return m.optimize(e.Neg())
}

func (m *Model) optimize(obj Expr) Solution {
	if m.callback != nil {
		m.callback(0, 0)
	}

	x := m.backend.solve(m.vars, m.conds, obj, m.callback)

	if m.callback != nil {
		m.callback(0, 1)
	}
	return Solution{x: x}
}
