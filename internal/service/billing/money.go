package billing

import "github.com/shopspring/decimal"

// money converts a float amount to a decimal rounded to paise.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(v float64) string {
	return money(v).StringFixed(2)
}

// FormatQuantity renders a quantity trimmed to at most two decimals.
func FormatQuantity(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
