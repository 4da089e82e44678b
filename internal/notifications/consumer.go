package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ferryline/pkg/logger"

	"github.com/IBM/sarama"
)

// Consumer runs the worker group that turns booking events into SMS.
type Consumer interface {
	Start(ctx context.Context, numWorkers int) error
	Stop() error
}

type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	SessionTimeoutMs  int
	HeartbeatMs       int
	RetryBackoffMs    int
	MaxProcessingTime time.Duration
	OffsetOldest      bool
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		GroupID:           "ferryline-notification-workers",
		Topics:            []string{"booking-events"},
		SessionTimeoutMs:  30000,
		HeartbeatMs:       3000,
		RetryBackoffMs:    100,
		MaxProcessingTime: 2 * time.Minute,
	}
}

type KafkaConsumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	dispatcher *Dispatcher
	log        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaConsumer(config *ConsumerConfig, dispatcher *Dispatcher) (*KafkaConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &KafkaConsumer{
		group:      group,
		topics:     config.Topics,
		dispatcher: dispatcher,
		log:        logger.GetDefault(),
	}, nil
}

func (kc *KafkaConsumer) Start(ctx context.Context, numWorkers int) error {
	ctx, kc.cancel = context.WithCancel(ctx)

	go kc.handleErrors()

	for i := 0; i < numWorkers; i++ {
		kc.wg.Add(1)
		go func(workerID int) {
			defer kc.wg.Done()
			kc.runWorker(ctx, workerID)
		}(i)
	}

	kc.log.Info("Booking event consumers started", "workers", numWorkers, "topics", kc.topics)
	return nil
}

func (kc *KafkaConsumer) runWorker(ctx context.Context, workerID int) {
	handler := &groupHandler{workerID: workerID, dispatcher: kc.dispatcher, log: kc.log}
	for {
		if err := kc.group.Consume(ctx, kc.topics, handler); err != nil {
			kc.log.Error("Consume failed", "worker", workerID, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (kc *KafkaConsumer) handleErrors() {
	for err := range kc.group.Errors() {
		kc.log.Error("Consumer group error", "error", err)
	}
}

func (kc *KafkaConsumer) Stop() error {
	if kc.cancel != nil {
		kc.cancel()
	}
	kc.wg.Wait()
	if err := kc.group.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type groupHandler struct {
	workerID   int
	dispatcher *Dispatcher
	log        *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message, including ones that failed to send. A
// booking SMS is best effort and must not block the partition.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.dispatcher.HandlePayload(session.Context(), message.Value); err != nil {
				h.log.Warn("Booking event not delivered",
					"worker", h.workerID,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err)
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
