package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ferryline/internal/sms"
	"ferryline/pkg/logger"
)

// Dispatcher turns a consumed booking event into an SMS to the buyer.
// Both the Kafka and the RabbitMQ consumers feed it.
type Dispatcher struct {
	sender     sms.Sender
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

func NewDispatcher(sender sms.Sender, maxRetries int, backoff time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:     sender,
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        logger.GetDefault(),
	}
}

// HandlePayload decodes and dispatches one message. A payload that cannot be
// decoded is reported as an error so the transport can drop it.
func (d *Dispatcher) HandlePayload(ctx context.Context, payload []byte) error {
	var event BookingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal booking event: %w", err)
	}
	return d.Handle(ctx, &event)
}

func (d *Dispatcher) Handle(ctx context.Context, event *BookingEvent) error {
	text, ok := Message(event)
	if !ok || event.BuyerPhone == "" {
		return nil
	}

	if err := d.executeWithRetry(ctx, event.BuyerPhone, text); err != nil {
		event.MarkFailed(err)
		d.log.ErrorWithContext(ctx, "Failed to send booking SMS", err, map[string]interface{}{
			"event_id":     event.ID,
			"type":         event.Type,
			"booking_code": event.BookingCode,
		})
		return err
	}

	event.MarkSent()
	d.log.InfoWithContext(ctx, "Booking SMS sent", map[string]interface{}{
		"type":         event.Type,
		"booking_code": event.BookingCode,
	})
	return nil
}

func (d *Dispatcher) executeWithRetry(ctx context.Context, phone, text string) error {
	for attempt := 0; ; attempt++ {
		err := d.sender.Send(ctx, phone, text)
		if err == nil {
			return nil
		}
		if attempt >= d.maxRetries {
			return err
		}

		delay := d.backoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
