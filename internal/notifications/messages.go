package notifications

import (
	"fmt"
	"strings"
)

const departureLayout = "02 Jan 2006 15:04"

// Message renders the SMS for an event. The second return is false for
// events that do not notify the buyer.
func Message(e *BookingEvent) (string, bool) {
	switch e.Type {
	case EventBookingCreated:
		var b strings.Builder
		fmt.Fprintf(&b, "Booking %s received", e.BookingCode)
		if e.ScheduleName != "" {
			fmt.Fprintf(&b, " for %s", e.ScheduleName)
		}
		if e.DepartureAt != nil {
			fmt.Fprintf(&b, " departing %s", e.DepartureAt.Format(departureLayout))
		}
		b.WriteString(".")
		if len(e.Seats) > 0 {
			fmt.Fprintf(&b, " Seats: %s.", strings.Join(e.Seats, ", "))
		}
		if e.GrandTotal != "" {
			fmt.Fprintf(&b, " Total %s %s.", e.Currency, e.GrandTotal)
		}
		return b.String(), true

	case EventTicketIssued:
		var b strings.Builder
		fmt.Fprintf(&b, "Ticket issued for booking %s.", e.BookingCode)
		if len(e.Seats) > 0 {
			fmt.Fprintf(&b, " Seats: %s.", strings.Join(e.Seats, ", "))
		}
		if e.DepartureAt != nil {
			fmt.Fprintf(&b, " Boarding %s.", e.DepartureAt.Format(departureLayout))
		}
		b.WriteString(" Show this code when boarding.")
		return b.String(), true

	case EventBookingCancelled:
		if e.Full {
			return fmt.Sprintf("Booking %s has been cancelled.", e.BookingCode), true
		}
		return fmt.Sprintf("Booking %s updated. Removed seats: %s.", e.BookingCode, strings.Join(e.Seats, ", ")), true
	}
	return "", false
}
