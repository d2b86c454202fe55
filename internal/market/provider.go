// Package market retrieves asset names and quotes from market information
// providers and derives the bid/ask rates consumed by the optimizer.
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// PriceKind selects which quoted price to read.
type PriceKind int

const (
	Last PriceKind = iota
	Bid
	Ask
	IOPV // indicative optimized portfolio value
)

// Provider supplies asset names and prices for a set of tickers. Retrieve
// must run before the lookups; lookups report false for anything the
// provider could not resolve.
type Provider interface {
	Retrieve(ctx context.Context, tickers []string) error
	AssetName(ticker string) (string, bool)
	Price(ticker string, kind PriceKind) (float64, bool)
}

var (
	// ErrUnknownProvider reports a provider name outside the built-in set.
	ErrUnknownProvider = errors.New("market: unknown provider")

	// ErrMissingToken reports a provider that requires an API token.
	ErrMissingToken = errors.New("market: provider requires an API token")
)

// New selects a provider by its case-insensitive name.
func New(name, token string, client *http.Client, logger *zap.Logger) (Provider, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch {
	case strings.EqualFold(name, "yahoo finance"):
		return NewYahooFinance(client, logger), nil
	case strings.EqualFold(name, "iex trading"):
		if token == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingToken, name)
		}
		return NewIexTrading(token, client, logger), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
}
