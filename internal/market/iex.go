package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const iexQuoteURL = "https://cloud.iexapis.com/v1/stock/%s/quote?token=%s"

// IexTrading reads quotes from the IEX Cloud API. Requires an API token.
type IexTrading struct {
	token  string
	client *http.Client
	logger *zap.Logger
	quotes map[string]iexQuote
}

type iexQuote struct {
	CompanyName string  `json:"companyName"`
	LatestPrice float64 `json:"latestPrice"`
	IexBidPrice float64 `json:"iexBidPrice"`
	IexAskPrice float64 `json:"iexAskPrice"`
}

// NewIexTrading returns a provider authenticating with token.
func NewIexTrading(token string, client *http.Client, logger *zap.Logger) *IexTrading {
	return &IexTrading{token: token, client: client, logger: logger}
}

// Retrieve downloads one quote per ticker. Tickers the API rejects are
// skipped so that the caller can report them as unresolved.
func (p *IexTrading) Retrieve(ctx context.Context, tickers []string) error {
	p.quotes = make(map[string]iexQuote, len(tickers))
	for _, t := range tickers {
		q, err := p.download(ctx, t)
		if err != nil {
			p.logger.Warn("quote download failed",
				zap.String("op", "market.IexTrading.Retrieve"),
				zap.String("ticker", t),
				zap.Error(err),
			)
			continue
		}
		p.quotes[t] = q
	}
	return nil
}

func (p *IexTrading) download(ctx context.Context, ticker string) (iexQuote, error) {
	endpoint := fmt.Sprintf(iexQuoteURL, url.PathEscape(ticker), url.QueryEscape(p.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return iexQuote{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return iexQuote{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return iexQuote{}, fmt.Errorf("iex trading returned status %s", resp.Status)
	}

	var q iexQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return iexQuote{}, err
	}
	return q, nil
}

// AssetName reports the company name of a retrieved ticker.
func (p *IexTrading) AssetName(ticker string) (string, bool) {
	q, ok := p.quotes[ticker]
	if !ok || q.CompanyName == "" {
		return "", false
	}
	return q.CompanyName, true
}

// Price reports a quoted price. IEX publishes no IOPV.
func (p *IexTrading) Price(ticker string, kind PriceKind) (float64, bool) {
	q, ok := p.quotes[ticker]
	if !ok || kind == IOPV {
		return 0, false
	}
	var price float64
	switch kind {
	case Last:
		price = q.LatestPrice
	case Bid:
		price = q.IexBidPrice
	case Ask:
		price = q.IexAskPrice
	}
	return price, price > 0
}
