package pricing

import (
	"fmt"

	"ferryline/internal/shared/apperrors"

	"github.com/shopspring/decimal"
)

// Item is one ticket type in a selection together with its schedule modifiers.
type Item struct {
	TicketTypeID string
	Name         string
	BasePrice    decimal.Decimal
	Surcharge    decimal.Decimal
	Discount     decimal.Decimal
	Quantity     int
}

type Request struct {
	Items    []Item
	Profile  *TaxProfile
	Currency string

	// OwnerDiscountRate is a fraction of the subtotal, applied for the owner channel only.
	OwnerDiscountRate decimal.Decimal
	OwnerChannel      bool
}

type QuoteLine struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type Quote struct {
	Lines         []QuoteLine     `json:"lines"`
	Taxes         []LineAmount    `json:"taxes,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	IncludedTax   decimal.Decimal `json:"included_tax"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Currency      string          `json:"currency"`
}

// UnitPrice is base + surcharge - discount. A negative price is rejected.
func UnitPrice(base, surcharge, discount decimal.Decimal) (decimal.Decimal, error) {
	unit := base.Add(surcharge).Sub(discount)
	if unit.IsNegative() {
		return decimal.Zero, apperrors.Validation("discount", fmt.Sprintf("modifiers take the fare below zero (%s)", unit.StringFixed(2)))
	}
	return Money(unit), nil
}

// LineTotal is unit × count.
func LineTotal(unit decimal.Decimal, count int) decimal.Decimal {
	return Money(unit.Mul(decimal.NewFromInt(int64(count))))
}

// GrandTotal is subtotal + tax - discount.
func GrandTotal(subtotal, tax, discount decimal.Decimal) decimal.Decimal {
	return Money(subtotal.Add(tax).Sub(discount))
}

// CheckTotals verifies grand == subtotal + tax - discount.
func CheckTotals(subtotal, tax, discount, grand decimal.Decimal) error {
	want := GrandTotal(subtotal, tax, discount)
	if !Money(grand).Equal(want) {
		return apperrors.LedgerInvariant("grand_total %s != subtotal %s + tax %s - discount %s",
			grand.StringFixed(2), subtotal.StringFixed(2), tax.StringFixed(2), discount.StringFixed(2))
	}
	return nil
}

// NewQuote prices a ticket selection. Tax is computed on the subtotal,
// the owner discount on the subtotal as well.
func NewQuote(req Request) (Quote, error) {
	if len(req.Items) == 0 {
		return Quote{}, apperrors.Validation("tickets", "at least one ticket is required")
	}

	q := Quote{
		Currency:      req.Currency,
		Subtotal:      decimal.Zero,
		TaxTotal:      decimal.Zero,
		IncludedTax:   decimal.Zero,
		DiscountTotal: decimal.Zero,
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Quote{}, apperrors.Validation("quantity", "must be positive")
		}
		unit, err := UnitPrice(item.BasePrice, item.Surcharge, item.Discount)
		if err != nil {
			return Quote{}, err
		}
		line := QuoteLine{
			TicketTypeID: item.TicketTypeID,
			Name:         item.Name,
			UnitPrice:    unit,
			Quantity:     item.Quantity,
			LineTotal:    LineTotal(unit, item.Quantity),
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal = q.Subtotal.Add(line.LineTotal)
	}

	if req.Profile != nil {
		q.Taxes = req.Profile.Breakdown(q.Subtotal)
		q.TaxTotal = req.Profile.Tax(q.Subtotal)
		q.IncludedTax = req.Profile.IncludedTax(q.Subtotal)
	}

	if req.OwnerChannel && req.OwnerDiscountRate.IsPositive() {
		q.DiscountTotal = Money(q.Subtotal.Mul(req.OwnerDiscountRate))
	}

	q.GrandTotal = GrandTotal(q.Subtotal, q.TaxTotal, q.DiscountTotal)
	if err := CheckTotals(q.Subtotal, q.TaxTotal, q.DiscountTotal, q.GrandTotal); err != nil {
		return Quote{}, err
	}
	return q, nil
}
