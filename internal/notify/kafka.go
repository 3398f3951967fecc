package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/metrics"
	"github.com/sicilystay/stayservice/internal/retry"
)

// KafkaConfig configures the Kafka notifier
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaNotifier publishes booking events to a Kafka topic, keyed by booking id
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	retry    retry.Config
	now      func() time.Time
}

// NewKafkaNotifier connects a synchronous producer to the brokers
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Version = sarama.V2_8_0_0
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Producer.Return.Successes = true
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, cfg.Topic), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		retry:    retry.DefaultConfig(),
		now:      time.Now,
	}
}

func (n *KafkaNotifier) BookingReserved(ctx context.Context, b domain.Booking) error {
	payload, err := json.Marshal(NewEvent(b, n.now()))
	if err != nil {
		return fmt.Errorf("failed to encode booking event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(b.ID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(EventBookingReserved)},
		},
	}
	if requestID := log.RequestID(ctx); requestID != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte("request_id"), Value: []byte(requestID)})
	}

	err = retry.Do(ctx, n.retry, func(context.Context) error {
		_, _, err := n.producer.SendMessage(msg)
		return err
	})
	if err != nil {
		metrics.RecordNotification("kafka", "failed")
		return fmt.Errorf("failed to publish booking %s: %w", b.ID, err)
	}
	metrics.RecordNotification("kafka", "sent")
	return nil
}

// Close closes the underlying producer
func (n *KafkaNotifier) Close() error {
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}
