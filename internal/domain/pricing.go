package domain

import "github.com/shopspring/decimal"

// PricingPolicy computes the amount charged for a booking from its seat count
// and the subtotal of the snapshotted seat prices. Fee and tax formulas are a
// policy concern, so the controller only depends on this seam.
type PricingPolicy interface {
	Total(seatCount int, subtotal decimal.Decimal) decimal.Decimal
}

// FlatFeePricing adds a flat platform fee per seat, then applies a
// proportional tax rate on top. All intermediate amounts round half-up to the
// minor unit.
type FlatFeePricing struct {
	FeePerSeat decimal.Decimal
	TaxRate    decimal.Decimal
}

func NewFlatFeePricing(feePerSeat, taxRate decimal.Decimal) FlatFeePricing {
	return FlatFeePricing{
		FeePerSeat: feePerSeat,
		TaxRate:    taxRate,
	}
}

func (p FlatFeePricing) Total(seatCount int, subtotal decimal.Decimal) decimal.Decimal {
	fee := p.FeePerSeat.Mul(decimal.NewFromInt(int64(seatCount)))
	taxed := subtotal.Add(fee)
	tax := taxed.Mul(p.TaxRate).Round(2)

	return taxed.Add(tax).Round(2)
}
