package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/agora-social/agora/pkg/events"
)

// Record headers.
const (
	HeaderEventName = "event_name"
	HeaderEventID   = "event_id"
	HeaderError     = "error"
	HeaderPartition = "source_partition"
	HeaderOffset    = "source_offset"
)

// NewProducerConfig returns the producer settings used for events.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	return config
}

// Publisher writes events to a single topic keyed by event name.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// DeadLetterTopic is where deliveries that kept failing are written.
func (p *Publisher) DeadLetterTopic() string {
	return p.topic + ".dlq"
}

// Publish sends the event envelope. The key keeps one event name on one
// partition.
func (p *Publisher) Publish(_ context.Context, event *events.Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.EventName),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventName), Value: []byte(event.EventName)},
			{Key: []byte(HeaderEventID), Value: []byte(event.ID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending %s: %w", event.EventName, err)
	}

	p.logger.Debug("published event",
		zap.String("event", event.EventName),
		zap.String("event_id", event.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// deadLetter copies a consumed record to the dead-letter topic.
func (p *Publisher) deadLetter(msg *sarama.ConsumerMessage, cause error) error {
	headers := make([]sarama.RecordHeader, 0, len(msg.Headers)+3)
	for _, h := range msg.Headers {
		if h != nil {
			headers = append(headers, *h)
		}
	}
	headers = append(headers,
		sarama.RecordHeader{Key: []byte(HeaderError), Value: []byte(cause.Error())},
		sarama.RecordHeader{Key: []byte(HeaderPartition), Value: []byte(strconv.FormatInt(int64(msg.Partition), 10))},
		sarama.RecordHeader{Key: []byte(HeaderOffset), Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)

	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   p.DeadLetterTopic(),
		Key:     sarama.ByteEncoder(msg.Key),
		Value:   sarama.ByteEncoder(msg.Value),
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("sending to %s: %w", p.DeadLetterTopic(), err)
	}
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.producer.Close()
}
