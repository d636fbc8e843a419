package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"techloc/map-core/internal/metrics"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaOptions struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaReader(opts KafkaOptions) (*kafka.Reader, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if opts.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	groupID := opts.GroupID
	if groupID == "" {
		groupID = "map-core"
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        opts.Brokers,
		GroupID:        groupID,
		Topic:          opts.Topic,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	}), nil
}

// KafkaConsumer applies JSON vehicle deltas from a topic in arrival order.
type KafkaConsumer struct {
	log     zerolog.Logger
	reader  MessageReader
	sink    Sink
	metrics *metrics.Metrics
	// retryDelay is the pause after a failed fetch.
	retryDelay time.Duration
}

func NewKafkaConsumer(log zerolog.Logger, reader MessageReader, sink Sink, m *metrics.Metrics) *KafkaConsumer {
	return &KafkaConsumer{
		log:        log.With().Str("feed", "kafka").Logger(),
		reader:     reader,
		sink:       sink,
		metrics:    m,
		retryDelay: time.Second,
	}
}

// Run consumes until ctx is done. Malformed messages are committed and
// skipped so they cannot stall the partition.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("kafka fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("apply kafka message at offset %d: %w", msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) error {
	start := time.Now()
	d, err := DecodeDelta(msg.Value)
	if err != nil {
		c.log.Debug().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed vehicle delta")
		c.metrics.ObserveFeedPoll("kafka", err, time.Since(start))
		return nil
	}
	err = c.sink.Delta(ctx, d)
	c.metrics.ObserveFeedPoll("kafka", err, time.Since(start))
	return err
}
