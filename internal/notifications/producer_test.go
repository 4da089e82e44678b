package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(t EventType) *BookingEvent {
	departure := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	return NewEventBuilder(t).
		WithBooking(uuid.New(), "K7QX2M", uuid.New(), "PUBLIC").
		WithBuyer("Aisha", "7771234").
		WithSchedule("Male - Maafushi", &departure).
		WithSeats([]string{"A1", "A2"}).
		WithTotal(decimal.RequireFromString("200"), "MVR").
		Build()
}

func mockConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mockConfig())
	event := testEvent(EventBookingCreated)

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got BookingEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.BookingCode != "K7QX2M" || got.Type != EventBookingCreated {
			return errors.New("unexpected payload")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "booking-events")
	require.NoError(t, publisher.Publish(context.Background(), event))
	assert.Equal(t, EventStatusQueued, event.Status)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mockConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "booking-events")
	event := testEvent(EventTicketIssued)

	err := publisher.Publish(context.Background(), event)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Equal(t, EventStatusFailed, event.Status)
	require.NotNil(t, event.LastError)
	require.NoError(t, publisher.Close())
}

func TestCreateHeaders(t *testing.T) {
	event := testEvent(EventBookingCancelled)
	headers := map[string]string{}
	for _, h := range createHeaders(event) {
		headers[string(h.Key)] = string(h.Value)
	}
	assert.Equal(t, "BOOKING_CANCELLED", headers["event_type"])
	assert.Equal(t, event.BookingID.String(), headers["booking_id"])
	assert.Equal(t, event.BookingID.String(), event.GetPartitionKey())
}

func TestEventBuilder(t *testing.T) {
	seats := []string{"B4"}
	event := NewEventBuilder(EventBookingCancelled).
		WithSeats(seats).
		WithCancellation(true).
		WithTransaction("TXN-1").
		WithMaxRetries(5).
		Build()
	seats[0] = "changed"

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventStatusPending, event.Status)
	assert.Equal(t, []string{"B4"}, event.Seats)
	assert.True(t, event.Full)
	assert.Equal(t, "TXN-1", event.TransactionRef)
	assert.Equal(t, 5, event.MaxRetries)

	event.MarkSent()
	assert.Equal(t, EventStatusSent, event.Status)
	assert.NotNil(t, event.SentAt)
}

func TestMessage(t *testing.T) {
	created, ok := Message(testEvent(EventBookingCreated))
	require.True(t, ok)
	assert.Equal(t, "Booking K7QX2M received for Male - Maafushi departing 14 Mar 2026 07:30. Seats: A1, A2. Total MVR 200.00.", created)

	issued, ok := Message(testEvent(EventTicketIssued))
	require.True(t, ok)
	assert.Contains(t, issued, "Ticket issued for booking K7QX2M.")
	assert.Contains(t, issued, "Boarding 14 Mar 2026 07:30.")

	partial := testEvent(EventBookingCancelled)
	partial.Seats = []string{"A2"}
	msg, ok := Message(partial)
	require.True(t, ok)
	assert.Equal(t, "Booking K7QX2M updated. Removed seats: A2.", msg)

	partial.Full = true
	msg, _ = Message(partial)
	assert.Equal(t, "Booking K7QX2M has been cancelled.", msg)

	_, ok = Message(&BookingEvent{Type: "UNKNOWN"})
	assert.False(t, ok)
}

type recordingSender struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (s *recordingSender) Send(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("provider down")
	}
	s.sent = append(s.sent, phone+": "+message)
	return nil
}

func TestDispatcher_RetriesThenSends(t *testing.T) {
	sender := &recordingSender{failures: 2}
	dispatcher := NewDispatcher(sender, 3, time.Millisecond)

	payload, err := testEvent(EventTicketIssued).ToJSON()
	require.NoError(t, err)

	require.NoError(t, dispatcher.HandlePayload(context.Background(), payload))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "7771234: Ticket issued")
}

func TestDispatcher_GivesUp(t *testing.T) {
	sender := &recordingSender{failures: 10}
	dispatcher := NewDispatcher(sender, 1, time.Millisecond)

	event := testEvent(EventBookingCreated)
	require.Error(t, dispatcher.Handle(context.Background(), event))
	assert.Equal(t, EventStatusFailed, event.Status)
	assert.Empty(t, sender.sent)
}

func TestDispatcher_BadPayload(t *testing.T) {
	dispatcher := NewDispatcher(&recordingSender{}, 0, time.Millisecond)
	assert.Error(t, dispatcher.HandlePayload(context.Background(), []byte("{")))
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*BookingEvent
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, event *BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestService_NotifyIsFireAndForget(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewServiceWithPublisher(publisher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Notify(ctx, testEvent(EventBookingCreated))
	svc.Notify(ctx, testEvent(EventTicketIssued))

	require.NoError(t, svc.Stop())
	assert.Len(t, publisher.events, 2)
	assert.True(t, publisher.closed)
}
