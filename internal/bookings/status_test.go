package bookings

import (
	"testing"

	"ferryline/internal/shared/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from PaymentStatus
		to   PaymentStatus
		ok   bool
	}{
		{PaymentPending, PaymentPartial, true},
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPartial, PaymentPaid, true},
		{PaymentPartial, PaymentFailed, true},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentPending, false},
		{PaymentPaid, PaymentPartial, false},
		{PaymentPartial, PaymentPending, false},
		{PaymentFailed, PaymentPaid, false},
		{PaymentRefunded, PaymentPaid, false},
		{PaymentPending, PaymentRefunded, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to))
		})
	}
}

func TestFulfillmentTransitions(t *testing.T) {
	cases := []struct {
		from FulfillmentStatus
		to   FulfillmentStatus
		ok   bool
	}{
		{FulfillmentUnconfirmed, FulfillmentConfirmed, true},
		{FulfillmentUnconfirmed, FulfillmentBoarded, true},
		{FulfillmentConfirmed, FulfillmentCheckedIn, true},
		{FulfillmentCheckedIn, FulfillmentBoarded, true},
		{FulfillmentConfirmed, FulfillmentCancelled, true},
		{FulfillmentCheckedIn, FulfillmentCancelled, true},
		{FulfillmentBoarded, FulfillmentCancelled, false},
		{FulfillmentCancelled, FulfillmentConfirmed, false},
		{FulfillmentConfirmed, FulfillmentUnconfirmed, false},
		{FulfillmentBoarded, FulfillmentCheckedIn, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to))
		})
	}
}

func TestFinanceTransitions(t *testing.T) {
	assert.True(t, FinanceUnposted.CanTransition(FinancePosted))
	assert.True(t, FinancePosted.CanTransition(FinanceAdjusted))
	assert.True(t, FinancePosted.CanTransition(FinanceReversed))
	assert.False(t, FinanceUnposted.CanTransition(FinanceReversed))
	assert.False(t, FinanceAdjusted.CanTransition(FinancePosted))
	assert.False(t, FinanceReversed.CanTransition(FinanceUnposted))
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, PaymentPaid.IsTerminal())
	assert.True(t, PaymentRefunded.IsTerminal())
	assert.True(t, FulfillmentCancelled.IsTerminal())
	assert.False(t, FulfillmentCheckedIn.IsTerminal())
	assert.True(t, FinanceReversed.IsTerminal())
	assert.False(t, FinancePosted.IsTerminal())
}

func TestBookingSetters(t *testing.T) {
	b := &Booking{
		PaymentStatus:     PaymentPending,
		FulfillmentStatus: FulfillmentUnconfirmed,
		FinanceStatus:     FinanceUnposted,
	}

	require.NoError(t, b.SetPayment(PaymentPaid))
	require.NoError(t, b.SetFulfillment(FulfillmentConfirmed))
	require.NoError(t, b.SetFinance(FinancePosted))

	// same status is a no-op
	require.NoError(t, b.SetPayment(PaymentPaid))

	err := b.SetPayment(PaymentPending)
	require.Error(t, err)
	var conflict *apperrors.StateConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, PaymentPaid, b.PaymentStatus)

	assert.Error(t, b.SetFinance(FinanceUnposted))
	assert.Error(t, b.SetFulfillment(FulfillmentUnconfirmed))
}

func TestChannelIsValid(t *testing.T) {
	assert.True(t, ChannelAgent.IsValid())
	assert.False(t, Channel("WALKIN").IsValid())
}
