// Package pricing computes fares, taxes and booking totals. Everything here is
// pure: no I/O, no clocks, decimal arithmetic only.
package pricing

import (
	"github.com/shopspring/decimal"
)

type LineType string

const (
	LineTypePercent LineType = "PERCENT"
	LineTypeFixed   LineType = "FIXED"
)

type AppliesTo string

const (
	AppliesToFare  AppliesTo = "FARE"
	AppliesToTotal AppliesTo = "TOTAL"
)

type Rounding string

const (
	RoundUp      Rounding = "ROUND_UP"
	RoundDown    Rounding = "ROUND_DOWN"
	RoundNearest Rounding = "ROUND_NEAREST"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// TaxLine is one entry of a tax profile. Inclusive lines are already part of
// the fare and are only used when backing a subtotal out of a total.
type TaxLine struct {
	Name      string          `json:"name"`
	Type      LineType        `json:"type" validate:"required,oneof=PERCENT FIXED"`
	Value     decimal.Decimal `json:"value"`
	AppliesTo AppliesTo       `json:"applies_to" validate:"omitempty,oneof=FARE TOTAL"`
	Inclusive bool            `json:"inclusive"`
	Active    bool            `json:"active"`
}

// TaxProfile is an ordered set of tax lines with a single rounding rule.
type TaxProfile struct {
	Lines    []TaxLine `json:"lines"`
	Rounding Rounding  `json:"rounding"`
}

// LineAmount is the unrounded contribution of one line.
type LineAmount struct {
	Name   string          `json:"name"`
	Type   LineType        `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Round applies the rounding rule to cents.
func (r Rounding) Round(d decimal.Decimal) decimal.Decimal {
	switch r {
	case RoundUp:
		return d.RoundUp(2)
	case RoundDown:
		return d.RoundDown(2)
	default:
		return d.Round(2)
	}
}

// Money quantizes an amount to cents, half-up.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Breakdown evaluates the active exclusive lines in stored order. A TOTAL line
// sees the base plus every amount accumulated before it.
func (p TaxProfile) Breakdown(base decimal.Decimal) []LineAmount {
	var out []LineAmount
	accumulated := decimal.Zero
	for _, line := range p.Lines {
		if !line.Active || line.Inclusive {
			continue
		}
		var amount decimal.Decimal
		switch line.Type {
		case LineTypeFixed:
			amount = line.Value
		case LineTypePercent:
			on := base
			if line.AppliesTo == AppliesToTotal {
				on = base.Add(accumulated)
			}
			amount = on.Mul(line.Value).Div(hundred)
		default:
			continue
		}
		accumulated = accumulated.Add(amount)
		out = append(out, LineAmount{Name: line.Name, Type: line.Type, Amount: amount})
	}
	return out
}

// Tax sums the breakdown and rounds once.
func (p TaxProfile) Tax(base decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, la := range p.Breakdown(base) {
		sum = sum.Add(la.Amount)
	}
	return p.Rounding.Round(sum)
}

// inclusiveParts returns the sum of inclusive percentage rates as a fraction
// and the sum of inclusive flat amounts.
func (p TaxProfile) inclusiveParts() (rate, flat decimal.Decimal) {
	rate, flat = decimal.Zero, decimal.Zero
	for _, line := range p.Lines {
		if !line.Active || !line.Inclusive {
			continue
		}
		switch line.Type {
		case LineTypePercent:
			rate = rate.Add(line.Value.Div(hundred))
		case LineTypeFixed:
			flat = flat.Add(line.Value)
		}
	}
	return rate, flat
}

// HasInclusive reports whether any active line is inclusive.
func (p TaxProfile) HasInclusive() bool {
	for _, line := range p.Lines {
		if line.Active && line.Inclusive {
			return true
		}
	}
	return false
}

// TotalFromSubtotal grosses a pre-tax subtotal up: inclusive percentages
// multiply by 1+sum(rates), inclusive flats are added, exclusive lines are
// added as Tax computes them.
func (p TaxProfile) TotalFromSubtotal(subtotal decimal.Decimal) decimal.Decimal {
	rate, flat := p.inclusiveParts()
	gross := subtotal.Mul(one.Add(rate)).Add(flat)
	return Money(gross.Add(p.Tax(subtotal)))
}

// SubtotalFromTotal backs the pre-tax subtotal out of a total: flat inclusive
// amounts first, then division by 1+sum(inclusive rates). Exclusive lines are
// affine in their base, so they are removed by solving for it.
func (p TaxProfile) SubtotalFromTotal(total decimal.Decimal) decimal.Decimal {
	rate, flat := p.inclusiveParts()

	// exclusive(S) = slope*S + intercept, before rounding
	intercept := p.exclusiveSum(decimal.Zero)
	slope := p.exclusiveSum(one).Sub(intercept)

	remaining := total.Sub(flat).Sub(intercept)
	divisor := one.Add(rate).Add(slope)
	if divisor.IsZero() {
		return decimal.Zero
	}
	return Money(remaining.Div(divisor))
}

// IncludedTax is the tax already contained in an inclusive-priced amount.
func (p TaxProfile) IncludedTax(total decimal.Decimal) decimal.Decimal {
	if !p.HasInclusive() {
		return decimal.Zero
	}
	rate, flat := p.inclusiveParts()
	net := total.Sub(flat)
	if rate.IsPositive() {
		net = net.Div(one.Add(rate))
	}
	return Money(total.Sub(net))
}

func (p TaxProfile) exclusiveSum(base decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, la := range p.Breakdown(base) {
		sum = sum.Add(la.Amount)
	}
	return sum
}
