package mip

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

func TestIntegerBoundsTruncateTowardZero(t *testing.T) {
	tests := []struct {
		name      string
		min, max  float64
		expectMin float64
		expectMax float64
	}{
		{"Integral bounds", -3, 5, -3, 5},
		{"Fractional positive", 0.9, 5.9, 0, 5},
		{"Fractional negative", -5.9, -0.9, -5, 0},
		{"Mixed", -2.5, 2.5, -2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			x := m.Integer(tt.min, tt.max)
			minV, maxV := m.Bounds(x)
			if minV != tt.expectMin || maxV != tt.expectMax {
				t.Errorf("Bounds() = [%v, %v], want [%v, %v]", minV, maxV, tt.expectMin, tt.expectMax)
			}
		})
	}
}

func TestExpressionBounds(t *testing.T) {
	m := New(nil)
	x := m.Integer(-3, 5)
	y := m.Binary()

	e := x.Mul(-2).Add(y.Mul(4)).AddConst(1)
	minV, maxV := m.Bounds(e)
	if minV != -9 || maxV != 11 {
		t.Errorf("Bounds() = [%v, %v], want [-9, 11]", minV, maxV)
	}
}

func TestMinimizeAndMaximize(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)
	m.Restrict(x.Ge(Const(2.5)))

	sol := m.Minimize(x)
	if !sol.Valid() {
		t.Fatal("Minimize() returned no solution")
	}
	if got := sol.Value(x); !approx(got, 3) {
		t.Errorf("minimum = %v, want 3", got)
	}

	sol = m.Maximize(x)
	if !sol.Valid() {
		t.Fatal("Maximize() returned no solution")
	}
	if got := sol.Value(x); !approx(got, 10) {
		t.Errorf("maximum = %v, want 10", got)
	}
}

func TestKnapsack(t *testing.T) {
	m := New(nil)
	a := m.Binary()
	b := m.Binary()
	c := m.Binary()

	weight := a.Mul(10).Add(b.Mul(20)).Add(c.Mul(30))
	m.Restrict(weight.Le(Const(50)))

	value := a.Mul(60).Add(b.Mul(100)).Add(c.Mul(120))
	sol := m.Maximize(value)
	if !sol.Valid() {
		t.Fatal("Maximize() returned no solution")
	}
	if got := sol.Value(value); !approx(got, 220) {
		t.Errorf("value = %v, want 220", got)
	}
	if got := sol.Value(a); !approx(got, 0) {
		t.Errorf("a = %v, want 0", got)
	}
}

func TestInfeasibleIntegerGap(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)
	m.Restrict(x.Ge(Const(1.1)))
	m.Restrict(x.Le(Const(1.9)))

	if sol := m.Minimize(x); sol.Valid() {
		t.Errorf("expected no solution, got x = %v", sol.Value(x))
	}
}

func TestInfeasibleConstantRow(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)
	m.Restrict(Const(1).Le(Const(0)))

	if sol := m.Minimize(x); sol.Valid() {
		t.Error("expected no solution")
	}
}

func TestCheckpointRollback(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)
	m.Restrict(x.Le(Const(7)))

	vars, conds := len(m.vars), len(m.conds)
	cp := m.Checkpoint()

	y := m.Binary()
	m.Restrict(y.Le(x))
	m.Restrict(x.Ge(Const(5)))

	m.Rollback(cp)
	if len(m.vars) != vars || len(m.conds) != conds {
		t.Errorf("after rollback model has %d vars and %d conds, want %d and %d",
			len(m.vars), len(m.conds), vars, conds)
	}

	// The restored model must solve as if nothing ever happened.
	sol := m.Maximize(x)
	if !sol.Valid() {
		t.Fatal("Maximize() returned no solution")
	}
	if got := sol.Value(x); !approx(got, 7) {
		t.Errorf("maximum = %v, want 7", got)
	}
}

func TestRollbackProbing(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)

	cp := m.Checkpoint()
	m.Restrict(x.Eq(Const(4)))
	sol := m.Minimize(Const(0))
	if !sol.Valid() || !approx(sol.Value(x), 4) {
		t.Fatal("probe solve failed")
	}
	m.Rollback(cp)

	sol = m.Maximize(x)
	if !sol.Valid() || !approx(sol.Value(x), 10) {
		t.Errorf("probe constraint leaked into the model")
	}
}

func TestRollbackPastStatePanics(t *testing.T) {
	m := New(nil)
	m.Binary()
	cp := m.Checkpoint()
	m.Rollback(Checkpoint{vars: 0, conds: 0}) // legal, truncates

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	m.Rollback(cp)
}

func TestAbsShortcuts(t *testing.T) {
	m := New(nil)
	x := m.IntegerTo(10)

	conds := len(m.conds)
	pos := m.Abs(x.AddConst(1)) // bounds [1, 11], already non-negative
	neg := m.Abs(x.Neg())       // bounds [-10, 0], flipped sign
	if len(m.conds) != conds {
		t.Errorf("shortcut cases added %d constraints", len(m.conds)-conds)
	}

	sol := Solution{x: []float64{0, 6}}
	if got := sol.Value(pos); got != 7 {
		t.Errorf("Value(pos) = %v, want 7", got)
	}
	if got := sol.Value(neg); got != 6 {
		t.Errorf("Value(neg) = %v, want 6", got)
	}
}

func TestAbsGadget(t *testing.T) {
	tests := []struct {
		name   string
		fixed  float64
		expect float64
	}{
		{"Negative side", 2, 5},
		{"Positive side", 9, 2},
		{"At zero", 7, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			x := m.IntegerTo(10)
			e := x.AddConst(-7) // bounds [-7, 3] span zero
			abs := m.Abs(e)

			m.Restrict(x.Eq(Const(tt.fixed)))
			sol := m.Minimize(abs)
			if !sol.Valid() {
				t.Fatal("Minimize() returned no solution")
			}
			if got := sol.Value(abs); !approx(got, tt.expect) {
				t.Errorf("Value(abs) = %v, want %v", got, tt.expect)
			}
			if got, want := sol.Value(abs), math.Abs(sol.Value(e)); !approx(got, want) {
				t.Errorf("Value(abs) = %v, |Value(e)| = %v", got, want)
			}
		})
	}
}

func TestAbsMinimization(t *testing.T) {
	m := New(nil)
	x := m.Integer(-5, 5)

	sol := m.Minimize(m.Abs(x.AddConst(-2.4)))
	if !sol.Valid() {
		t.Fatal("Minimize() returned no solution")
	}
	if got := sol.Value(x); !approx(got, 2) {
		t.Errorf("x = %v, want 2", got)
	}
}

func TestSquareApproxDegenerate(t *testing.T) {
	m := New(nil)
	var points RefPoints

	sq := m.SquareApprox(Const(3), &points)
	if got := sq.Constant(); got != 9 {
		t.Errorf("Constant() = %v, want 9", got)
	}
	if !points.Empty() {
		t.Error("degenerate case must not touch the reference points")
	}
}

func TestSquareApproxExactAtReferencePoints(t *testing.T) {
	tests := []struct {
		name   string
		points []float64
		fixed  float64
		expect float64
	}{
		{"Seeded zero", nil, 0, 0},
		{"At negative point", []float64{-3, 0}, -3, 9},
		{"At positive point", []float64{-3, 0, 4}, 4, 16},
		{"Between points is linear", []float64{2, 4}, 3, 2 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(nil)
			x := m.Integer(-5, 5)

			var points RefPoints
			for _, p := range tt.points {
				points.Insert(p)
			}

			sq := m.SquareApprox(x, &points)
			m.Restrict(x.Eq(Const(tt.fixed)))

			sol := m.Minimize(sq)
			if !sol.Valid() {
				t.Fatal("Minimize() returned no solution")
			}
			if got := sol.Value(sq); !approx(got, tt.expect) {
				t.Errorf("Value(sq) = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestSquareApproxSeedsEmptySet(t *testing.T) {
	m := New(nil)
	x := m.Integer(2, 8)

	var points RefPoints
	m.SquareApprox(x, &points)

	pts := points.Points()
	if len(pts) != 1 || pts[0] != 2 {
		t.Errorf("Points() = %v, want the in-range value closest to zero [2]", pts)
	}
}

func TestCancellation(t *testing.T) {
	calls := 0
	m := New(func(activeNodes int, progress float64) bool {
		calls++
		return false
	})
	x := m.IntegerTo(10)
	m.Restrict(x.Ge(Const(2.5)))

	if sol := m.Minimize(x); sol.Valid() {
		t.Error("cancelled solve must return no solution")
	}
	if calls == 0 {
		t.Error("callback was never invoked")
	}
}

func TestCallbackBracketsSolve(t *testing.T) {
	type call struct {
		nodes    int
		progress float64
	}
	var calls []call
	m := New(func(activeNodes int, progress float64) bool {
		calls = append(calls, call{activeNodes, progress})
		return true
	})
	x := m.IntegerTo(10)

	if sol := m.Minimize(x); !sol.Valid() {
		t.Fatal("Minimize() returned no solution")
	}
	if len(calls) < 2 {
		t.Fatalf("callback invoked %d times, want at least 2", len(calls))
	}
	if first := calls[0]; first.nodes != 0 || first.progress != 0 {
		t.Errorf("first call = %+v, want (0, 0)", first)
	}
	if last := calls[len(calls)-1]; last.nodes != 0 || last.progress != 1 {
		t.Errorf("last call = %+v, want (0, 1)", last)
	}
	for _, c := range calls {
		if c.progress < 0 || c.progress > 1 {
			t.Errorf("progress %v outside [0, 1]", c.progress)
		}
	}
}

func TestSolutionBoundsInvariant(t *testing.T) {
	m := New(nil)
	x := m.Integer(-4, 9)
	y := m.Binary()
	e := x.Mul(3).Sub(y.Mul(2)).AddConst(1)

	m.Restrict(x.Add(y).Ge(Const(2)))
	sol := m.Minimize(e)
	if !sol.Valid() {
		t.Fatal("Minimize() returned no solution")
	}

	minV, maxV := m.Bounds(e)
	if v := sol.Value(e); v < minV-1e-9 || v > maxV+1e-9 {
		t.Errorf("Value(e) = %v outside bounds [%v, %v]", v, minV, maxV)
	}
}
