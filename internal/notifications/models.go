package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventBookingCreated   EventType = "BOOKING_CREATED"
	EventBookingCancelled EventType = "BOOKING_CANCELLED"
	EventTicketIssued     EventType = "TICKET_ISSUED"
)

type EventStatus string

const (
	EventStatusPending EventStatus = "PENDING"
	EventStatusQueued  EventStatus = "QUEUED"
	EventStatusSent    EventStatus = "SENT"
	EventStatusFailed  EventStatus = "FAILED"
)

// BookingEvent is what travels over Kafka or RabbitMQ after a booking
// mutation commits. It carries enough to render the SMS without a lookup.
type BookingEvent struct {
	ID   uuid.UUID `json:"id"`
	Type EventType `json:"type"`

	BookingID    uuid.UUID  `json:"booking_id"`
	BookingCode  string     `json:"booking_code"`
	ScheduleID   uuid.UUID  `json:"schedule_id"`
	ScheduleName string     `json:"schedule_name,omitempty"`
	DepartureAt  *time.Time `json:"departure_at,omitempty"`
	Channel      string     `json:"channel,omitempty"`

	BuyerName  string `json:"buyer_name"`
	BuyerPhone string `json:"buyer_phone"`

	Seats      []string `json:"seats,omitempty"`
	GrandTotal string   `json:"grand_total,omitempty"`
	Currency   string   `json:"currency,omitempty"`

	// cancellation only
	Full bool `json:"full,omitempty"`
	// issue only
	TransactionRef string `json:"transaction_ref,omitempty"`

	Status     EventStatus `json:"status"`
	RetryCount int         `json:"retry_count"`
	MaxRetries int         `json:"max_retries"`
	LastError  *string     `json:"last_error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	SentAt     *time.Time  `json:"sent_at,omitempty"`
}

type EventBuilder struct {
	event *BookingEvent
}

func NewEventBuilder(eventType EventType) *EventBuilder {
	return &EventBuilder{
		event: &BookingEvent{
			ID:         uuid.New(),
			Type:       eventType,
			Status:     EventStatusPending,
			MaxRetries: 3,
			CreatedAt:  time.Now(),
		},
	}
}

func (eb *EventBuilder) WithBooking(bookingID uuid.UUID, code string, scheduleID uuid.UUID, channel string) *EventBuilder {
	eb.event.BookingID = bookingID
	eb.event.BookingCode = code
	eb.event.ScheduleID = scheduleID
	eb.event.Channel = channel
	return eb
}

func (eb *EventBuilder) WithBuyer(name, phone string) *EventBuilder {
	eb.event.BuyerName = name
	eb.event.BuyerPhone = phone
	return eb
}

func (eb *EventBuilder) WithSchedule(name string, departureAt *time.Time) *EventBuilder {
	eb.event.ScheduleName = name
	eb.event.DepartureAt = departureAt
	return eb
}

func (eb *EventBuilder) WithSeats(seats []string) *EventBuilder {
	eb.event.Seats = append([]string(nil), seats...)
	return eb
}

func (eb *EventBuilder) WithTotal(amount decimal.Decimal, currency string) *EventBuilder {
	eb.event.GrandTotal = amount.StringFixed(2)
	eb.event.Currency = currency
	return eb
}

func (eb *EventBuilder) WithCancellation(full bool) *EventBuilder {
	eb.event.Full = full
	return eb
}

func (eb *EventBuilder) WithTransaction(reference string) *EventBuilder {
	eb.event.TransactionRef = reference
	return eb
}

func (eb *EventBuilder) WithMaxRetries(maxRetries int) *EventBuilder {
	eb.event.MaxRetries = maxRetries
	return eb
}

func (eb *EventBuilder) Build() *BookingEvent {
	return eb.event
}

// GetPartitionKey keeps every event of one booking on the same partition.
func (e *BookingEvent) GetPartitionKey() string {
	return e.BookingID.String()
}

func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *BookingEvent) MarkSent() {
	now := time.Now()
	e.Status = EventStatusSent
	e.SentAt = &now
}

func (e *BookingEvent) MarkFailed(err error) {
	e.Status = EventStatusFailed
	msg := err.Error()
	e.LastError = &msg
}
