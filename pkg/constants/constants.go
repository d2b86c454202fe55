// Package constants provides shared constants for the allocator application.
package constants

// Version is the application version reported by -v and -h.
const Version = "2.1.0"

// Financial constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the smallest cash amount the optimizer
	// distinguishes (1 cent)
	CurrencyTolerance = 0.01
)

// Market data constants
const (
	// DefaultProvider is the market information provider used when the
	// allocation file names none.
	DefaultProvider = "Yahoo Finance"

	// DefaultAvgRelativeSpread approximates the relative bid/ask spread
	// when no retrieved asset quotes both sides of the book.
	DefaultAvgRelativeSpread = 0.05 / 100

	// DefaultHTTPTimeoutSeconds bounds market data requests.
	DefaultHTTPTimeoutSeconds = 30
)
