package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ferryline/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitPrefetch = 50

// RabbitPublisher publishes booking events to a durable queue on the default
// exchange. The connection is opened lazily and reopened after a failure.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logger.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitPublisher(url, queue string) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: logger.GetDefault()}
}

func (p *RabbitPublisher) ensureChannel() (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.channel = conn, ch
	return ch, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event *BookingEvent) error {
	event.Status = EventStatusQueued
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err != nil {
		event.MarkFailed(err)
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Type:         string(event.Type),
		Timestamp:    event.CreatedAt,
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		event.MarkFailed(err)
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *RabbitPublisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// RabbitConsumer reads the booking event queue and feeds the dispatcher.
// It reconnects with exponential backoff until stopped.
type RabbitConsumer struct {
	url        string
	queue      string
	dispatcher *Dispatcher
	log        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRabbitConsumer(url, queue string, dispatcher *Dispatcher) *RabbitConsumer {
	return &RabbitConsumer{url: url, queue: queue, dispatcher: dispatcher, log: logger.GetDefault()}
}

func (c *RabbitConsumer) Start(ctx context.Context, numWorkers int) error {
	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < numWorkers; i++ {
		c.wg.Add(1)
		go func(workerID int) {
			defer c.wg.Done()
			c.run(ctx, workerID)
		}(i)
	}
	c.log.Info("RabbitMQ booking event consumers started", "workers", numWorkers, "queue", c.queue)
	return nil
}

func (c *RabbitConsumer) run(ctx context.Context, workerID int) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("RabbitMQ dial failed", "worker", workerID, "retry_in", backoff, "error", err)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if err != nil && ctx.Err() == nil {
			c.log.Warn("RabbitMQ consume loop ended, reconnecting", "worker", workerID, "error", err)
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
		}
	}
}

func (c *RabbitConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(rabbitPrefetch, 0, false); err != nil {
		c.log.Warn("RabbitMQ set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.dispatcher.HandlePayload(ctx, d.Body); err != nil {
				// no requeue, a poison message would loop forever
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *RabbitConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
