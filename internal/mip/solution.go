package mip

// Solution holds the variable values of a solved model. The zero value
// stands for an infeasible, unbounded or cancelled solve.
type Solution struct {
	x []float64
}

// Valid reports whether the solve produced an optimum.
func (s Solution) Valid() bool {
	return len(s.x) > 0
}

// Value evaluates the expression against the solution.
func (s Solution) Value(e Expr) float64 {
	res := e.c
	for _, id := range sortedIDs(e.factors) {
		res += s.x[id] * e.factors[id]
	}
	return res
}
