// Package optimizer lowers a portfolio allocation into a mixed-integer
// program and turns the solution back into per-asset trade results and
// portfolio-wide quality metrics.
package optimizer

import (
	"math"

	"github.com/iwvelando/allocator/internal/config"
	"github.com/iwvelando/allocator/internal/mip"
	"github.com/iwvelando/allocator/pkg/constants"
	"go.uber.org/zap"
)

// StatusCallback receives optimizer progress. Iteration 0 is the no-trade
// source solve, 1 the first main solve, 2 the tie-breaking stage of the
// absolute-deviations model or each refinement of the least-squares model.
// Returning false cancels the optimization.
type StatusCallback func(iteration uint, activeNodes int, progress float64) bool

// RatesFunc reports the bid and ask prices for a ticker. The caller must
// guarantee 0 <= bid <= ask and ask > 0 for every ticker in the allocation.
type RatesFunc func(ticker string) (bid, ask float64)

// Result describes the optimized position of one asset, or of cash when the
// ticker is empty.
type Result struct {
	Ticker string

	Bid float64
	Ask float64

	Have       float64
	Result     float64
	Change     float64
	Commission float64

	InPercents     bool
	Percents       float64
	SourcePercents float64
}

// Quality summarizes how far a plan deviates from the targets, in dollars:
// the mean absolute deviation and the root mean square deviation.
type Quality struct {
	AbsErr float64
	StdDev float64
}

// Optimizer computes an integer buy/sell plan that minimizes the deviation
// from the allocation targets. It is stateless between Optimize calls.
type Optimizer struct {
	logger   *zap.Logger
	callback StatusCallback

	iteration uint

	results    map[string]Result
	cashResult Result

	qsource Quality
	qresult Quality
}

// New returns an optimizer reporting progress to the optional callback.
func New(logger *zap.Logger, callback StatusCallback) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{logger: logger, callback: callback}
}

// Result returns the optimized position for a ticker of the last Optimize
// call.
func (o *Optimizer) Result(ticker string) (Result, bool) {
	r, ok := o.results[ticker]
	return r, ok
}

// CashResult returns the optimized cash position of the last Optimize call.
func (o *Optimizer) CashResult() Result {
	return o.cashResult
}

// SourceQuality reports the deviation of the untouched portfolio.
func (o *Optimizer) SourceQuality() Quality {
	return o.qsource
}

// ResultQuality reports the deviation of the optimized plan. When no plan
// was found it equals SourceQuality.
func (o *Optimizer) ResultQuality() Quality {
	return o.qresult
}

// Optimize computes the trade plan for the allocation, reading prices from
// rates. It reports whether an optimal plan was found; on cancellation or an
// infeasible model the results fall back to the no-trade source plan.
func (o *Optimizer) Optimize(a *config.Allocation, rates RatesFunc) bool {
	n := len(a.Assets)

	bid := make([]float64, n)
	ask := make([]float64, n)
	for i, asset := range a.Assets {
		bid[i], ask[i] = rates(asset.Ticker)
		if bid[i] < 0 || ask[i] <= 0 || ask[i] < bid[i] {
			o.logger.Error("rates contract violated",
				zap.String("op", "optimizer.Optimize"),
				zap.String("ticker", asset.Ticker),
				zap.Float64("bid", bid[i]),
				zap.Float64("ask", ask[i]),
			)
			return false
		}
	}

	o.results = make(map[string]Result, n)
	for i, asset := range a.Assets {
		o.results[asset.Ticker] = Result{
			Ticker: asset.Ticker,
			Bid:    bid[i],
			Ask:    ask[i],
			Have:   asset.Have,
		}
	}
	o.cashResult = Result{Bid: 1, Ask: 1, Have: a.Cash}
	o.qsource = Quality{}
	o.qresult = Quality{}

	// The portfolio can never be worth more than everything sold at bid
	// plus the cash at hand.
	upperBound := a.Cash
	for i, asset := range a.Assets {
		upperBound += asset.Have * bid[i]
	}

	var modelCallback mip.StatusCallback
	if o.callback != nil {
		modelCallback = func(activeNodes int, progress float64) bool {
			return o.callback(o.iteration, activeNodes, progress)
		}
	}
	m := mip.New(modelCallback)

	count := make([]mip.Expr, n)
	commission := make([]mip.Expr, n)
	oneMore := make([]mip.Expr, n)

	var totalDeals mip.Expr
	cash := mip.Const(a.Cash)

	for i, asset := range a.Assets {
		exists := asset.Have
		count[i] = mip.Const(exists)

		var allDeals mip.Expr

		if asset.CanBuy {
			maxBuyVol := math.Floor((upperBound - exists*bid[i]) / ask[i])
			if maxBuyVol > 0 {
				buy := m.Binary()
				allDeals = allDeals.Add(buy)

				buyVol := m.IntegerTo(maxBuyVol)
				m.Restrict(buyVol.Ge(buy))
				m.Restrict(buyVol.Le(buy.Mul(maxBuyVol)))

				count[i] = count[i].Add(buyVol)
				cash = cash.Sub(buyVol.Mul(ask[i]))
				oneMore[i] = oneMore[i].Add(buy.Mul(ask[i]))
			}
		}

		if asset.CanSell && exists > 0 {
			// Selling everything also liquidates the fractional share
			// tail, which the partial-sale variable cannot reach.
			sellAll := m.Binary()
			allDeals = allDeals.Add(sellAll)

			count[i] = count[i].Sub(sellAll.Mul(exists))
			cash = cash.Add(sellAll.Mul(exists * bid[i]))
			oneMore[i] = oneMore[i].Add(sellAll.Mul(exists*bid[i] - asset.Commission))

			maxSellVol := math.Floor(exists)
			if maxSellVol != exists {
				maxSellVol--
			}
			if maxSellVol > 1 {
				sell := m.Binary()
				allDeals = allDeals.Add(sell)

				sellVol := m.IntegerTo(maxSellVol)
				m.Restrict(sellVol.Ge(sell))
				m.Restrict(sellVol.Le(sell.Mul(maxSellVol)))

				count[i] = count[i].Sub(sellVol)
				cash = cash.Add(sellVol.Mul(bid[i]))
				oneMore[i] = oneMore[i].Add(sell.Mul(bid[i]))
			}
		}

		totalDeals = totalDeals.Add(allDeals)
		m.Restrict(allDeals.Le(mip.Const(1)))

		commission[i] = allDeals.Mul(asset.Commission)
		cash = cash.Sub(commission[i])

		if asset.CanBuy {
			oneMore[i] = oneMore[i].Add(mip.Const(1).Sub(allDeals).Mul(ask[i] + asset.Commission))
		} else {
			oneMore[i] = oneMore[i].Add(mip.Const(1).Sub(allDeals).Mul(upperBound + constants.CurrencyTolerance))
		}
	}

	if a.MaxDeals > 0 {
		m.Restrict(totalDeals.Le(mip.Const(float64(a.MaxDeals))))
	}

	// Volume is the denominator of every percentage target: the resulting
	// dollar value of the percent-targeted assets, plus cash when the cash
	// target is a percentage too.
	var volume mip.Expr
	for i, asset := range a.Assets {
		if asset.TargetInPercents {
			volume = volume.Add(count[i].Mul(bid[i]))
		}
	}
	if a.CashTargetInPercents {
		volume = volume.Add(cash)
	}

	diffs := make([]mip.Expr, 0, n+1)
	for i, asset := range a.Assets {
		var target mip.Expr
		if asset.TargetInPercents {
			target = volume.Mul(asset.Target / constants.PercentageMultiplier)
		} else {
			target = mip.Const(asset.Target * bid[i])
		}
		diffs = append(diffs, count[i].Mul(bid[i]).Sub(target))
	}
	if a.CashTargetSet {
		var target mip.Expr
		if a.CashTargetInPercents {
			target = volume.Mul(a.CashTarget / constants.PercentageMultiplier)
		} else {
			target = mip.Const(a.CashTarget)
		}
		diffs = append(diffs, cash.Sub(target))
	}

	cp := m.Checkpoint()
	m.Restrict(totalDeals.Eq(mip.Const(0)))
	o.iteration = 0
	source := m.Minimize(mip.Const(0))
	m.Rollback(cp)
	if !source.Valid() {
		o.logger.Error("source solve failed",
			zap.String("op", "optimizer.Optimize"),
		)
		o.fallback(a)
		return false
	}

	m.Restrict(cash.Ge(mip.Const(0)))

	for i, asset := range a.Assets {
		if a.UseAllCash {
			m.Restrict(cash.Le(oneMore[i].AddConst(-constants.CurrencyTolerance)))
		} else if asset.TargetInPercents {
			// An artificial restriction to avoid trivial solutions
			m.Restrict(volume.Ge(cash.Sub(oneMore[i]).AddConst(constants.CurrencyTolerance)))
		}
	}

	var sol mip.Solution
	if a.UseLeastSquares {
		sol = o.runLeastSquares(m, diffs)
	} else {
		sol = o.runLeastAbsolute(m, diffs)
	}

	if sol.Valid() {
		for i, asset := range a.Assets {
			r := o.results[asset.Ticker]
			r.Result = sol.Value(count[i])
			r.Commission = sol.Value(commission[i])
			o.results[asset.Ticker] = r
		}
		o.cashResult.Result = sol.Value(cash)
	} else {
		for _, asset := range a.Assets {
			r := o.results[asset.Ticker]
			r.Result = r.Have
			r.Commission = 0
			o.results[asset.Ticker] = r
		}
		o.cashResult.Result = o.cashResult.Have
	}

	for ticker, r := range o.results {
		r.Change = r.Result - r.Have
		o.results[ticker] = r
	}
	o.cashResult.Change = o.cashResult.Result - o.cashResult.Have

	sourceVolume := source.Value(volume)
	for i, asset := range a.Assets {
		r := o.results[asset.Ticker]
		r.InPercents = asset.TargetInPercents
		if r.InPercents {
			if sourceVolume > 0 {
				r.SourcePercents = constants.PercentageMultiplier * r.Have * bid[i] / sourceVolume
			}
			if sol.Valid() {
				if volumeValue := sol.Value(volume); volumeValue > 0 {
					r.Percents = constants.PercentageMultiplier * r.Result * bid[i] / volumeValue
				}
			}
		}
		o.results[asset.Ticker] = r
	}

	o.cashResult.InPercents = a.CashTargetInPercents
	if o.cashResult.InPercents {
		if sourceVolume > 0 {
			o.cashResult.SourcePercents = constants.PercentageMultiplier * o.cashResult.Have / sourceVolume
		}
		if sol.Valid() {
			if volumeValue := sol.Value(volume); volumeValue > 0 {
				o.cashResult.Percents = constants.PercentageMultiplier * o.cashResult.Result / volumeValue
			}
		}
	}

	o.qsource = calculateQuality(diffs, source)
	if sol.Valid() {
		o.qresult = calculateQuality(diffs, sol)
	} else {
		for ticker, r := range o.results {
			r.Percents = r.SourcePercents
			o.results[ticker] = r
		}
		o.cashResult.Percents = o.cashResult.SourcePercents
		o.qresult = o.qsource
	}

	o.logger.Debug("optimization finished",
		zap.String("op", "optimizer.Optimize"),
		zap.Bool("leastSquares", a.UseLeastSquares),
		zap.Bool("solved", sol.Valid()),
		zap.Uint("iterations", o.iteration),
		zap.Float64("abserr", o.qresult.AbsErr),
		zap.Float64("stddev", o.qresult.StdDev),
	)

	return sol.Valid()
}

// fallback fills the no-trade plan when not even the source solve succeeded.
func (o *Optimizer) fallback(a *config.Allocation) {
	for _, asset := range a.Assets {
		r := o.results[asset.Ticker]
		r.Result = r.Have
		r.InPercents = asset.TargetInPercents
		o.results[asset.Ticker] = r
	}
	o.cashResult.Result = o.cashResult.Have
	o.cashResult.InPercents = a.CashTargetInPercents
}

// runLeastAbsolute minimizes the sum of absolute deviations, then re-solves
// with the optimum fixed as a cap to spread the deviation evenly across the
// assets instead of piling it on one.
func (o *Optimizer) runLeastAbsolute(m *mip.Model, diffs []mip.Expr) mip.Solution {
	abs := make([]mip.Expr, len(diffs))
	var sum mip.Expr
	for i, d := range diffs {
		abs[i] = m.Abs(d)
		sum = sum.Add(abs[i])
	}

	o.iteration = 1
	sol := m.Minimize(sum)
	if sol.Valid() && len(diffs) > 0 {
		m.Restrict(sum.Le(mip.Const(sol.Value(sum))))
		avg := sum.Div(float64(len(diffs)))

		var spread mip.Expr
		for _, e := range abs {
			spread = spread.Add(m.Abs(e.Sub(avg)))
		}

		o.iteration = 2
		sol = m.Minimize(spread)
	}

	return sol
}

// runLeastSquares minimizes a piecewise-linear approximation of the squared
// deviations, refining the approximation with each solution until no diff
// lands on a new reference point.
func (o *Optimizer) runLeastSquares(m *mip.Model, diffs []mip.Expr) mip.Solution {
	cp := m.Checkpoint()
	points := make([]mip.RefPoints, len(diffs))

	var sol mip.Solution
	for o.iteration = 1; ; o.iteration++ {
		var sum mip.Expr
		for i, d := range diffs {
			sum = sum.Add(m.SquareApprox(d, &points[i]))
		}

		sol = m.Minimize(sum)
		if !sol.Valid() {
			break
		}

		done := true
		for i, d := range diffs {
			if points[i].Insert(sol.Value(d)) {
				done = false
			}
		}
		if done {
			break
		}

		m.Rollback(cp)
	}

	return sol
}

func calculateQuality(diffs []mip.Expr, sol mip.Solution) Quality {
	if len(diffs) == 0 {
		return Quality{}
	}

	var absSum, sqrSum float64
	for _, d := range diffs {
		delta := sol.Value(d)
		absSum += math.Abs(delta)
		sqrSum += delta * delta
	}

	n := float64(len(diffs))
	return Quality{
		AbsErr: absSum / n,
		StdDev: math.Sqrt(sqrSum / n),
	}
}
