// Package output renders optimizer results as a console table and as an
// ordered list of trades.
package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/iwvelando/allocator/internal/optimizer"
	"github.com/iwvelando/allocator/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Row is one line of the results table: an asset, or cash when IsCash is
// set.
type Row struct {
	Ticker string
	IsCash bool

	Bid             float64
	Ask             float64
	AskApproximated bool

	// IOPVPremium is the indicative optimized portfolio value minus the
	// last trade price, when the provider publishes one.
	IOPVPremium float64
	IOPVValid   bool

	Have       float64
	Result     float64
	Change     float64
	Commission float64

	InPercents     bool
	Percents       float64
	SourcePercents float64

	Target           float64
	TargetInPercents bool
	TargetSet        bool

	CanBuy  bool
	CanSell bool
}

// RenderTable writes the results table with one row per asset, one for cash
// and a totals row carrying the deviation qualities.
func RenderTable(w io.Writer, rows []Row, qsource, qresult optimizer.Quality) {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Asset\tBid\tAsk\tSource\tCount\t%\tChange\tResult\tCount\t%\tTarget\tBuy\tSell\tCommission")

	var totalHave, totalResult, totalCommission float64
	for _, r := range rows {
		name := r.Ticker
		if r.IsCash {
			name = "Cash"
		}

		askSuffix := ""
		if r.AskApproximated {
			askSuffix = "*"
		}

		haveValue := r.Have * r.Bid
		resultValue := r.Result * r.Bid
		totalHave += haveValue
		totalResult += resultValue
		totalCommission += r.Commission

		fmt.Fprintf(tw, "%s\t%s\t%s%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			name,
			p.Sprintf("$%.2f", r.Bid),
			p.Sprintf("$%.2f", r.Ask), askSuffix,
			p.Sprintf("$%.2f", haveValue),
			countCell(r, r.Have),
			percentCell(r, r.SourcePercents),
			changeCell(p, r),
			p.Sprintf("$%.2f", resultValue),
			countCell(r, r.Result),
			percentCell(r, r.Percents),
			targetCell(r),
			yesNoCell(r, r.CanBuy),
			yesNoCell(r, r.CanSell),
			commissionCell(p, r.Commission),
		)
	}

	fmt.Fprintf(tw, "Total (average deviation)\t\t\t%s\t(%.1f)\t\t\t%s\t(%.1f)\t\t\t\t\t%s\n",
		p.Sprintf("$%.2f", totalHave),
		qsource.StdDev,
		p.Sprintf("$%.2f", totalResult),
		qresult.StdDev,
		commissionCell(p, totalCommission),
	)
	_ = tw.Flush()
}

func countCell(r Row, count float64) string {
	if r.IsCash {
		return ""
	}
	return fmt.Sprintf("%g", count)
}

func percentCell(r Row, percents float64) string {
	if !r.InPercents {
		return ""
	}
	return fmt.Sprintf("%.1f%%", percents)
}

func changeCell(p *message.Printer, r Row) string {
	if mathutil.Round(r.Change) == 0 {
		return ""
	}
	if r.IsCash {
		if r.Change > 0 {
			return p.Sprintf("+$%.2f", r.Change)
		}
		return p.Sprintf("-$%.2f", -r.Change)
	}
	return fmt.Sprintf("%+g", r.Change)
}

func targetCell(r Row) string {
	if !r.TargetSet {
		return ""
	}
	if r.TargetInPercents {
		return fmt.Sprintf("%.1f%%", r.Target)
	}
	return fmt.Sprintf("%g", r.Target)
}

func yesNoCell(r Row, allowed bool) string {
	if r.IsCash {
		return ""
	}
	if allowed {
		return "Yes"
	}
	return "No"
}

func commissionCell(p *message.Printer, commission float64) string {
	if mathutil.Round(commission) == 0 {
		return ""
	}
	return p.Sprintf("$%.2f", commission)
}

// RenderStrategy writes the ordered trade list: sells first (IOPV premium,
// then dollar volume), buys last by descending ask, assets left untouched
// omitted.
func RenderStrategy(w io.Writer, rows []Row) {
	trades := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.IsCash {
			trades = append(trades, r)
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return tradeBefore(trades[i], trades[j])
	})

	for i, r := range trades {
		if mathutil.Round(r.Change) == 0 {
			break
		}
		if i == 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Rebalancing strategy:")
		}

		action := "Buy"
		count := int(r.Change)
		price := r.Ask
		if r.Change < 0 {
			action = "Sell"
			count = int(-r.Change)
			price = r.Bid
		}

		unit := "share"
		if count > 1 {
			unit = "shares"
		}
		fmt.Fprintf(w, "  %d. %s %d %s of %s, market price is $%.2f, total deal sum is $%.2f\n",
			i+1, action, count, unit, r.Ticker, price, price*float64(count))
	}
}

func tradeBefore(r1, r2 Row) bool {
	sign1 := sign(r1.Change)
	sign2 := sign(r2.Change)

	if sign1 == -1 && sign2 == -1 {
		if r1.IOPVValid && r2.IOPVValid {
			return r1.IOPVPremium > r2.IOPVPremium
		}

		if r1.IOPVValid && r1.IOPVPremium > 0 {
			return true
		}
		if r2.IOPVValid && r2.IOPVPremium > 0 {
			return false
		}

		if r1.IOPVValid && r1.IOPVPremium < 0 {
			return false
		}
		if r2.IOPVValid && r2.IOPVPremium < 0 {
			return true
		}

		return r1.Change*r1.Bid < r2.Change*r2.Bid
	}

	if sign1 == 1 && sign2 == 1 {
		return r1.Ask > r2.Ask
	}

	if sign1 == 0 {
		return false
	}
	if sign2 == 0 {
		return true
	}

	return sign1 < sign2
}

func sign(v float64) int {
	v = mathutil.Round(v)
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
