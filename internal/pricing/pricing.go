// Package pricing maps model names to per-1K-token prices.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a per-1,000-token price pair in USD.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// Cost returns the exact decimal cost of a request.
func (p Price) Cost(promptTokens, completionTokens int) decimal.Decimal {
	in := p.Input.Mul(decimal.NewFromInt(int64(promptTokens))).Shift(-3)
	out := p.Output.Mul(decimal.NewFromInt(int64(completionTokens))).Shift(-3)
	return in.Add(out)
}

type Entry struct {
	Match string
	Price Price
}

func usd(input, output string) Price {
	return Price{
		Input:  decimal.RequireFromString(input),
		Output: decimal.RequireFromString(output),
	}
}

// table order is significant: entries are scanned top to bottom and the
// first key that is a substring of the model name wins. Providers return
// model names with date suffixes (gpt-4o-2024-05-13), which substring
// matching tolerates. Keep narrower names above their prefixes.
var table = []Entry{
	{"gpt-5-mini", usd("0.00025", "0.002")},
	{"gpt-5", usd("0.00125", "0.01")},
	{"o1-mini", usd("0.003", "0.012")},
	{"o1", usd("0.015", "0.06")},
	{"gpt-4o-mini", usd("0.00015", "0.0006")},
	{"gpt-4o", usd("0.005", "0.015")},
	{"gpt-4-turbo", usd("0.01", "0.03")},
	{"gpt-4", usd("0.03", "0.06")},
	{"gpt-3.5-turbo", usd("0.0005", "0.0015")},
}

// Resolve returns the table price for the first entry whose key is a
// substring of the case-folded model name, or fallback when the name is
// empty or matches nothing.
func Resolve(model string, fallback Price) Price {
	if model == "" {
		return fallback
	}
	name := strings.ToLower(model)
	for _, e := range table {
		if strings.Contains(name, e.Match) {
			return e.Price
		}
	}
	return fallback
}
