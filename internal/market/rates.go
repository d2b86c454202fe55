package market

import (
	"github.com/iwvelando/allocator/pkg/constants"
	"github.com/iwvelando/allocator/pkg/mathutil"
)

// RateSource derives the bid/ask rates the optimizer consumes from
// retrieved quotes. A missing bid falls back to the last trade; a missing
// or crossed ask is synthesized from the average relative spread of the
// assets quoting both sides of the book.
type RateSource struct {
	provider     Provider
	spread       float64
	approximated bool
}

// NewRateSource computes the average relative spread over the tickers and
// returns a source for their rates.
func NewRateSource(p Provider, tickers []string) *RateSource {
	spread := 0.0
	quoted := 0
	for _, t := range tickers {
		bid, okBid := p.Price(t, Bid)
		ask, okAsk := p.Price(t, Ask)
		if okBid && okAsk && bid > 0 && ask > bid {
			spread += (ask - bid) / bid
			quoted++
		}
	}
	if quoted > 0 {
		spread /= float64(quoted)
	} else {
		spread = constants.DefaultAvgRelativeSpread
	}
	return &RateSource{provider: p, spread: spread}
}

// Rates reports the bid and ask for a ticker, synthesizing the ask when the
// market does not quote a usable one. Every ticker handed to the optimizer
// must have at least a last price.
func (r *RateSource) Rates(ticker string) (float64, float64) {
	bid, ok := r.provider.Price(ticker, Bid)
	if !ok {
		bid, _ = r.provider.Price(ticker, Last)
	}

	ask, ok := r.provider.Price(ticker, Ask)
	if !ok || ask <= bid {
		ask = bid + mathutil.Max(bid*r.spread, constants.CurrencyTolerance)
		r.approximated = true
	}
	return bid, ask
}

// Approximated reports whether any ask was synthesized rather than quoted.
func (r *RateSource) Approximated() bool {
	return r.approximated
}
