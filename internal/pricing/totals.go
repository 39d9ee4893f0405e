package pricing

import (
	"github.com/shopspring/decimal"

	"pos-terminal/internal/cart"
	"pos-terminal/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	maxPct  = hundred
)

// Totals is the itemized breakdown of one cart. Monetary fields are rounded
// to two places (half-up); inputs are treated as exact decimals.
type Totals struct {
	SubtotalProduct      decimal.Decimal `json:"subtotal_product"`
	SubtotalRoom         decimal.Decimal `json:"subtotal_room"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DiscountPercent      decimal.Decimal `json:"discount_percent"`
	DiscountNominal      decimal.Decimal `json:"discount_nominal"`
	ProductDiscountShare decimal.Decimal `json:"product_discount_share"`
	TaxableAmount        decimal.Decimal `json:"taxable_amount"`
	TaxRatePercent       decimal.Decimal `json:"tax_rate_percent"`
	TaxNominal           decimal.Decimal `json:"tax_nominal"`
	RoomTaxRatePercent   decimal.Decimal `json:"room_tax_rate_percent"`
	RoomTaxNominal       decimal.Decimal `json:"room_tax_nominal"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
}

func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ValidateDiscount accepts percentages in [0,100].
func ValidateDiscount(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxPct) {
		return domain.Ef(domain.CodeInvalidDiscount, "discount must be within 0..100, got %s", p)
	}
	return nil
}

// ComputeTotals prices a cart with tax applied to the product side only.
func ComputeTotals(lines []cart.Line, discountPercent, taxRatePercent decimal.Decimal) Totals {
	return ComputeTotalsWithRoomTax(lines, discountPercent, taxRatePercent, decimal.Zero)
}

// ComputeTotalsWithRoomTax is ComputeTotals with an extra rate on the room
// subtotal net of the discount that falls on it. A zero room rate gives the
// same result as ComputeTotals.
//
// The whole-cart discount is split by subtotal share: the product side gets
// subtotalProduct/subtotal of it, rooms get the remainder.
func ComputeTotalsWithRoomTax(lines []cart.Line, discountPercent, taxRatePercent, roomTaxRatePercent decimal.Decimal) Totals {
	subProduct, subRoom := decimal.Zero, decimal.Zero
	for _, ln := range lines {
		switch {
		case ln.Product != nil:
			subProduct = subProduct.Add(ln.Product.Amount())
		case ln.Room != nil:
			subRoom = subRoom.Add(ln.Room.Price)
		}
	}
	subtotal := subProduct.Add(subRoom)
	discount := round2(subtotal.Mul(discountPercent).Div(hundred))

	productShare := decimal.Zero
	if subtotal.IsPositive() {
		productShare = subProduct.Mul(discount).Div(subtotal)
	}
	roomShare := discount.Sub(productShare)

	taxable := nonNegative(subProduct.Sub(productShare))
	tax := round2(taxable.Mul(taxRatePercent).Div(hundred))

	roomTaxable := nonNegative(subRoom.Sub(roomShare))
	roomTax := round2(roomTaxable.Mul(roomTaxRatePercent).Div(hundred))

	return Totals{
		SubtotalProduct:      round2(subProduct),
		SubtotalRoom:         round2(subRoom),
		Subtotal:             round2(subtotal),
		DiscountPercent:      discountPercent,
		DiscountNominal:      discount,
		ProductDiscountShare: round2(productShare),
		TaxableAmount:        round2(taxable),
		TaxRatePercent:       taxRatePercent,
		TaxNominal:           tax,
		RoomTaxRatePercent:   roomTaxRatePercent,
		RoomTaxNominal:       roomTax,
		GrandTotal:           round2(subtotal.Sub(discount).Add(tax).Add(roomTax)),
	}
}

// TotalTax is product tax plus room tax.
func (t Totals) TotalTax() decimal.Decimal { return t.TaxNominal.Add(t.RoomTaxNominal) }

// ChangeDue is cashGiven minus the grand total, floored at zero.
func (t Totals) ChangeDue(cashGiven decimal.Decimal) decimal.Decimal {
	return round2(nonNegative(cashGiven.Sub(t.GrandTotal)))
}

// Covers reports whether cashGiven pays the grand total in full.
func (t Totals) Covers(cashGiven decimal.Decimal) bool {
	return cashGiven.GreaterThanOrEqual(t.GrandTotal)
}
