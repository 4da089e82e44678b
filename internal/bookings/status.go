package bookings

import (
	"fmt"

	"ferryline/internal/shared/apperrors"
)

type Channel string

const (
	ChannelPublic Channel = "PUBLIC"
	ChannelAgent  Channel = "AGENT"
	ChannelOwner  Channel = "OWNER"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPublic, ChannelAgent, ChannelOwner:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPartial  PaymentStatus = "PARTIAL"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type FulfillmentStatus string

const (
	FulfillmentUnconfirmed FulfillmentStatus = "UNCONFIRMED"
	FulfillmentConfirmed   FulfillmentStatus = "CONFIRMED"
	FulfillmentCheckedIn   FulfillmentStatus = "CHECKED_IN"
	FulfillmentBoarded     FulfillmentStatus = "BOARDED"
	FulfillmentCancelled   FulfillmentStatus = "CANCELLED"
)

type FinanceStatus string

const (
	FinanceUnposted FinanceStatus = "UNPOSTED"
	FinancePosted   FinanceStatus = "POSTED"
	FinanceAdjusted FinanceStatus = "ADJUSTED"
	FinanceReversed FinanceStatus = "REVERSED"
)

// Each axis only moves forward. Skipping ahead is allowed; going back is not.
var (
	paymentTransitions = map[PaymentStatus][]PaymentStatus{
		PaymentPending: {PaymentPartial, PaymentPaid, PaymentFailed},
		PaymentPartial: {PaymentPaid, PaymentFailed},
		PaymentPaid:    {PaymentRefunded},
	}
	fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
		FulfillmentUnconfirmed: {FulfillmentConfirmed, FulfillmentCheckedIn, FulfillmentBoarded, FulfillmentCancelled},
		FulfillmentConfirmed:   {FulfillmentCheckedIn, FulfillmentBoarded, FulfillmentCancelled},
		FulfillmentCheckedIn:   {FulfillmentBoarded, FulfillmentCancelled},
	}
	financeTransitions = map[FinanceStatus][]FinanceStatus{
		FinanceUnposted: {FinancePosted},
		FinancePosted:   {FinanceAdjusted, FinanceReversed},
	}
)

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	return contains(paymentTransitions[s], to)
}

func (s FulfillmentStatus) CanTransition(to FulfillmentStatus) bool {
	return contains(fulfillmentTransitions[s], to)
}

func (s FinanceStatus) CanTransition(to FinanceStatus) bool {
	return contains(financeTransitions[s], to)
}

// IsTerminal reports statuses nothing moves on from. PAID still refunds.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentFailed || s == PaymentRefunded
}

func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentBoarded || s == FulfillmentCancelled
}

func (s FinanceStatus) IsTerminal() bool {
	return s == FinanceAdjusted || s == FinanceReversed
}

// SetPayment moves the payment axis or returns a StateConflict.
func (b *Booking) SetPayment(to PaymentStatus) error {
	if b.PaymentStatus == to {
		return nil
	}
	if !b.PaymentStatus.CanTransition(to) {
		return apperrors.StateConflict(fmt.Sprintf("payment cannot move from %s to %s", b.PaymentStatus, to))
	}
	b.PaymentStatus = to
	return nil
}

func (b *Booking) SetFulfillment(to FulfillmentStatus) error {
	if b.FulfillmentStatus == to {
		return nil
	}
	if !b.FulfillmentStatus.CanTransition(to) {
		return apperrors.StateConflict(fmt.Sprintf("fulfillment cannot move from %s to %s", b.FulfillmentStatus, to))
	}
	b.FulfillmentStatus = to
	return nil
}

func (b *Booking) SetFinance(to FinanceStatus) error {
	if b.FinanceStatus == to {
		return nil
	}
	if !b.FinanceStatus.CanTransition(to) {
		return apperrors.StateConflict(fmt.Sprintf("finance cannot move from %s to %s", b.FinanceStatus, to))
	}
	b.FinanceStatus = to
	return nil
}
