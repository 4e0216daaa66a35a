package pnl

import (
	"github.com/shopspring/decimal"

	"traderboard/pkg/pricing"
)

// Breakdown converts holdings into percentage shares of total value in the
// base currency, rounded to 2 decimals. Assets whose share rounds to 0.00%
// are dust and dropped; assets with no valuation path are skipped rather than
// reported as worthless.
func Breakdown(balances map[string]decimal.Decimal, oracle *pricing.Oracle, base string) map[string]decimal.Decimal {
	values := make(map[string]decimal.Decimal, len(balances))
	total := decimal.Zero
	for asset, amount := range balances {
		if !amount.IsPositive() {
			continue
		}
		price, err := oracle.Price(asset, base)
		if err != nil {
			// no valuation path; unknown value, not zero value
			continue
		}
		value := amount.Mul(price)
		values[asset] = values[asset].Add(value)
		total = total.Add(value)
	}
	if !total.IsPositive() {
		return map[string]decimal.Decimal{}
	}

	hundred := decimal.NewFromInt(100)
	shares := make(map[string]decimal.Decimal, len(values))
	for asset, value := range values {
		pct := value.Mul(hundred).Div(total).Round(2)
		if pct.IsZero() {
			continue
		}
		shares[asset] = pct
	}
	return shares
}
