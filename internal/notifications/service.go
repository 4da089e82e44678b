package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ferryline/internal/shared/config"
	"ferryline/internal/sms"
	"ferryline/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Notifier is what the booking core depends on. Notify never reports an
// error; delivery problems are logged.
type Notifier interface {
	Notify(ctx context.Context, event *BookingEvent)
}

type Service struct {
	publisher  Publisher
	consumer   Consumer
	numWorkers int
	log        *logger.Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
	running  bool
}

// NewService wires the transport named by NOTIFY_TRANSPORT.
func NewService(cfg *config.Config, sender sms.Sender) (*Service, error) {
	dispatcher := NewDispatcher(sender, 3, time.Second)
	svc := &Service{numWorkers: cfg.Notifications.NumWorkers, log: logger.GetDefault()}

	switch cfg.Notifications.Transport {
	case "kafka":
		producerConfig := DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.Kafka.Brokers
		producerConfig.Topic = cfg.Kafka.BookingTopic
		publisher, err := NewKafkaPublisher(producerConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create booking event producer: %w", err)
		}

		consumerConfig := DefaultConsumerConfig()
		consumerConfig.Brokers = cfg.Kafka.Brokers
		consumerConfig.Topics = []string{cfg.Kafka.BookingTopic}
		consumerConfig.GroupID = cfg.Kafka.ConsumerGroupID
		consumer, err := NewKafkaConsumer(consumerConfig, dispatcher)
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("failed to create booking event consumer: %w", err)
		}
		svc.publisher, svc.consumer = publisher, consumer

	case "rabbitmq":
		svc.publisher = NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		svc.consumer = NewRabbitConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, dispatcher)

	case "none", "":
		svc.publisher = NoopPublisher{}

	default:
		return nil, fmt.Errorf("unknown notification transport %q", cfg.Notifications.Transport)
	}

	return svc, nil
}

// NewServiceWithPublisher builds a publish-only service.
func NewServiceWithPublisher(publisher Publisher) *Service {
	return &Service{publisher: publisher, log: logger.GetDefault()}
}

// Notify publishes in the background, detached from the request so a
// client disconnect does not drop the event.
func (s *Service) Notify(ctx context.Context, event *BookingEvent) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(pubCtx, event); err != nil {
			s.log.ErrorWithContext(pubCtx, "Failed to publish booking event", err, map[string]interface{}{
				"type":         event.Type,
				"booking_id":   event.BookingID,
				"booking_code": event.BookingCode,
			})
		}
	}()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("notification service is already running")
	}
	if s.consumer != nil && s.numWorkers > 0 {
		if err := s.consumer.Start(ctx, s.numWorkers); err != nil {
			return fmt.Errorf("failed to start consumers: %w", err)
		}
	}
	s.running = true
	return nil
}

// Stop waits for in-flight publishes, then shuts the consumers and the producer.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight.Wait()
	if s.running && s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.log.Error("Error stopping booking event consumer", "error", err)
		}
	}
	s.running = false
	return s.publisher.Close()
}
