package money

import "github.com/shopspring/decimal"

// Platform fee formula: 10% marketplace cut, 2.9% card-processor percentage,
// plus a fixed 30-cent per-transaction charge. Computed exactly once when the
// escrow payout is created.
var (
	platformRate  = decimal.NewFromFloat(0.10)
	processorRate = decimal.NewFromFloat(0.029)
	fixedFeeCents = decimal.NewFromInt(30)
)

// PlatformFeeCents returns the combined fee for a gross amount in cents,
// rounded to the nearest cent. The fee is capped at the gross amount so the
// seller's net never goes negative on totals below the fixed charge.
func PlatformFeeCents(totalCents int) int {
	total := decimal.NewFromInt(int64(totalCents))
	fee := total.Mul(platformRate).
		Add(total.Mul(processorRate)).
		Add(fixedFeeCents)
	cents := int(fee.Round(0).IntPart())
	if cents > totalCents {
		return totalCents
	}
	return cents
}

// NetCents returns the seller's take-home for a gross amount in cents.
func NetCents(totalCents int) int {
	return totalCents - PlatformFeeCents(totalCents)
}
