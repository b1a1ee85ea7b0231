package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
)

// KafkaSink publishes each alert as one message.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Logger
}

// NewProducerConfig returns the producer settings KafkaSink expects.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Timeout = 5 * time.Second
	return config
}

// DialKafka connects a SyncProducer to brokers.
func DialKafka(brokers []string, topic string, log logger.Logger) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaSink(producer, topic, log), nil
}

// NewKafkaSink wraps an existing producer.
func NewKafkaSink(producer sarama.SyncProducer, topic string, log logger.Logger) *KafkaSink {
	if log == nil {
		log = logger.Get().Named("kafka")
	}
	log.Info(context.Background(), "kafka alert sink ready", logger.String("topic", topic))
	return &KafkaSink{producer: producer, topic: topic, logger: log}
}

// Name implements Sink.
func (s *KafkaSink) Name() string { return SinkKafka }

// MessageKey identifies an alert message.
func MessageKey(a model.Alert) string { return a.RunID + ":" + strconv.Itoa(a.Row) }

// Deliver publishes a and waits for the acknowledgement or ctx.
func (s *KafkaSink) Deliver(ctx context.Context, a model.Alert) error {
	value, err := json.Marshal(a.Payload)
	if err != nil {
		return &DeliveryError{Row: a.Row, Err: fmt.Errorf("marshal error: %w", err)}
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(MessageKey(a)),
		Value: sarama.ByteEncoder(value),
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	resultCh := make(chan result, 1)
	go func() {
		partition, offset, err := s.producer.SendMessage(msg)
		resultCh <- result{partition, offset, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return &DeliveryError{Row: a.Row, Err: res.err}
		}
		s.logger.Debug(ctx, "alert published",
			logger.Int("row", a.Row),
			logger.Int("partition", int(res.partition)),
			logger.Any("offset", res.offset),
		)
		return nil
	case <-ctx.Done():
		return &DeliveryError{Row: a.Row, Err: ctx.Err()}
	}
}

// Close closes the producer.
func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	return s.producer.Close()
}
