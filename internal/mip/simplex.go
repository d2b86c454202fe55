package mip

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// intTol is the integrality tolerance of relaxation values.
	intTol = 1e-6

	// rowTol decides whether a constant constraint row is satisfied.
	rowTol = 1e-9

	// pruneTol guards incumbent comparisons against simplex round-off.
	pruneTol = 1e-9
)

// backend is the narrow solving capability behind the model. Keeping it an
// interface lets an alternative solver plug in without touching callers.
type backend interface {
	solve(vars []varInfo, conds []Constraint, obj Expr, callback StatusCallback) []float64
}

// simplexBackend drives branch-and-bound over LP relaxations solved with
// gonum's dense simplex method. There is no presolve and there are no
// cutting planes: on the small models this package builds, reproducibility
// matters more than node counts. Nodes are explored best-local-bound first,
// branching on the most fractional integer variable.
type simplexBackend struct{}

type lpRows struct {
	nvars   int
	obj     []float64
	eq      [][]float64
	eqRHS   []float64
	ineq    [][]float64
	ineqRHS []float64

	// infeasible marks a constant constraint row that is already violated,
	// which no assignment can repair.
	infeasible bool
}

func buildRows(nvars int, conds []Constraint, obj Expr) *lpRows {
	rows := &lpRows{nvars: nvars, obj: make([]float64, nvars)}
	for id, k := range obj.factors {
		rows.obj[id] = k
	}

	for _, cond := range conds {
		e := cond.Expr()
		row := make([]float64, nvars)
		zero := true
		for id, k := range e.factors {
			row[id] = k
			if k != 0 {
				zero = false
			}
		}
		rhs := -e.Constant()

		rel := cond.Rel()
		if rel == GE {
			for i := range row {
				row[i] = -row[i]
			}
			rhs = -rhs
			rel = LE
		}

		// Constant rows cannot go to the simplex; they are either
		// trivially true or decide the whole problem.
		if zero {
			switch rel {
			case EQ:
				if math.Abs(rhs) > rowTol {
					rows.infeasible = true
				}
			case LE:
				if rhs < -rowTol {
					rows.infeasible = true
				}
			}
			continue
		}

		if rel == EQ {
			rows.eq = append(rows.eq, row)
			rows.eqRHS = append(rows.eqRHS, rhs)
		} else {
			rows.ineq = append(rows.ineq, row)
			rows.ineqRHS = append(rows.ineqRHS, rhs)
		}
	}
	return rows
}

// relax solves the LP relaxation under the node's variable bounds. The
// bounds are appended as inequality rows, the general form is converted to
// standard form and handed to the simplex method.
func (r *lpRows) relax(lower, upper []float64) (x []float64, bound float64, ok bool) {
	n := r.nvars
	nineq := len(r.ineq) + 2*n

	gData := make([]float64, 0, nineq*n)
	h := make([]float64, 0, nineq)
	for i, row := range r.ineq {
		gData = append(gData, row...)
		h = append(h, r.ineqRHS[i])
	}
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		row[i] = 1
		gData = append(gData, row...)
		h = append(h, upper[i])

		row = make([]float64, n)
		row[i] = -1
		gData = append(gData, row...)
		h = append(h, -lower[i])
	}
	g := mat.NewDense(nineq, n, gData)

	// The model always carries at least one non-constant equality row.
	aData := make([]float64, 0, len(r.eq)*n)
	for _, row := range r.eq {
		aData = append(aData, row...)
	}
	a := mat.NewDense(len(r.eq), n, aData)
	b := append([]float64(nil), r.eqRHS...)

	cNew, aNew, bNew := lp.Convert(r.obj, g, h, a, b)
	optF, optX, err := lp.Simplex(cNew, aNew, bNew, 0, nil)
	if err != nil {
		return nil, 0, false
	}

	// Convert splits every free variable into positive and negative parts.
	x = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = optX[i] - optX[n+i]
	}
	return x, optF, true
}

type bbNode struct {
	seq   int
	bound float64
	x     []float64
	lower []float64
	upper []float64
}

// nodeHeap orders open nodes by their relaxation bound; insertion order
// breaks ties to keep the search deterministic.
type nodeHeap []*bbNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].bound != h[j].bound {
		return h[i].bound < h[j].bound
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) {
	*h = append(*h, x.(*bbNode))
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return node
}

func (b *simplexBackend) solve(vars []varInfo, conds []Constraint, obj Expr, callback StatusCallback) []float64 {
	n := len(vars)
	rows := buildRows(n, conds, obj)
	if rows.infeasible {
		return nil
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, vi := range vars {
		lower[i] = vi.min
		upper[i] = vi.max
	}

	x, bound, ok := rows.relax(lower, upper)
	if !ok {
		return nil
	}

	seq := 0
	open := &nodeHeap{}
	heap.Push(open, &bbNode{seq: seq, bound: bound, x: x, lower: lower, upper: upper})

	var best []float64
	bestF := math.Inf(1)
	haveBest := false

	for open.Len() > 0 {
		node := heap.Pop(open).(*bbNode)

		if callback != nil {
			// Popped best-bound first, so the node bound is the global one.
			gap := 1.0
			if haveBest {
				gap = math.Abs(bestF-node.bound) / (math.Abs(bestF) + rowTol)
				gap = math.Min(math.Max(gap, 0), 1)
			}
			if !callback(open.Len()+1, 1-gap) {
				return nil
			}
		}

		if haveBest && node.bound >= bestF-pruneTol {
			continue
		}

		branchVar := -1
		branchDist := 0.0
		for i, vi := range vars {
			if vi.kind == ContinuousVar {
				continue
			}
			frac := node.x[i] - math.Floor(node.x[i])
			dist := math.Min(frac, 1-frac)
			if dist > intTol && dist > branchDist {
				branchDist = dist
				branchVar = i
			}
		}

		if branchVar < 0 {
			if !haveBest || node.bound < bestF {
				haveBest = true
				bestF = node.bound
				best = append(best[:0], node.x...)
			}
			continue
		}

		floor := math.Floor(node.x[branchVar])
		for _, child := range []struct {
			lo, hi float64
		}{
			{node.lower[branchVar], floor},
			{floor + 1, node.upper[branchVar]},
		} {
			if child.lo > child.hi {
				continue
			}
			lo := append([]float64(nil), node.lower...)
			hi := append([]float64(nil), node.upper...)
			lo[branchVar] = child.lo
			hi[branchVar] = child.hi

			cx, cBound, cok := rows.relax(lo, hi)
			if !cok {
				continue
			}
			if haveBest && cBound >= bestF-pruneTol {
				continue
			}
			seq++
			heap.Push(open, &bbNode{seq: seq, bound: cBound, x: cx, lower: lo, upper: hi})
		}
	}

	if !haveBest {
		return nil
	}
	for i, vi := range vars {
		if vi.kind != ContinuousVar {
			best[i] = math.Round(best[i])
		}
	}
	return best
}
