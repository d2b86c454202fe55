package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const yahooQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote" +
	"?lang=en-US&region=US&corsDomain=finance.yahoo.com&symbols="

// YahooFinance reads quotes from the Yahoo Finance API. No token required.
type YahooFinance struct {
	client *http.Client
	logger *zap.Logger
	quotes map[string]yahooQuote
}

type yahooQuote struct {
	Symbol             string  `json:"symbol"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	Bid                float64 `json:"bid"`
	Ask                float64 `json:"ask"`
}

// NewYahooFinance returns a provider downloading through client.
func NewYahooFinance(client *http.Client, logger *zap.Logger) *YahooFinance {
	return &YahooFinance{client: client, logger: logger}
}

// Retrieve downloads quotes for the tickers and their IOPV companions in
// one batch request.
func (y *YahooFinance) Retrieve(ctx context.Context, tickers []string) error {
	symbols := make([]string, 0, 2*len(tickers))
	for _, t := range tickers {
		symbols = append(symbols, t, iopvTicker(t))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		yahooQuoteURL+url.QueryEscape(strings.Join(symbols, ",")), nil)
	if err != nil {
		return err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo finance request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo finance returned status %s", resp.Status)
	}

	var payload struct {
		QuoteResponse struct {
			Result []yahooQuote `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("yahoo finance response is not valid JSON: %w", err)
	}

	y.quotes = make(map[string]yahooQuote, len(payload.QuoteResponse.Result))
	for _, q := range payload.QuoteResponse.Result {
		if q.Symbol != "" {
			y.quotes[q.Symbol] = q
		}
	}

	y.logger.Debug("retrieved quotes",
		zap.String("op", "market.YahooFinance.Retrieve"),
		zap.Int("requested", len(symbols)),
		zap.Int("received", len(y.quotes)),
	)
	return nil
}

// AssetName reports the short name of a retrieved ticker.
func (y *YahooFinance) AssetName(ticker string) (string, bool) {
	q, ok := y.quotes[ticker]
	if !ok || q.ShortName == "" {
		return "", false
	}
	return q.ShortName, true
}

// Price reports a quoted price; zero and negative quotes count as missing.
func (y *YahooFinance) Price(ticker string, kind PriceKind) (float64, bool) {
	if kind == IOPV {
		q, ok := y.quotes[iopvTicker(ticker)]
		if !ok {
			return 0, false
		}
		return q.RegularMarketPrice, q.RegularMarketPrice > 0
	}

	q, ok := y.quotes[ticker]
	if !ok {
		return 0, false
	}
	var price float64
	switch kind {
	case Last:
		price = q.RegularMarketPrice
	case Bid:
		price = q.Bid
	case Ask:
		price = q.Ask
	}
	return price, price > 0
}

func iopvTicker(ticker string) string {
	return "^" + ticker + "-IV"
}
