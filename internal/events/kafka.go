package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// KafkaPublisher keys messages by purchase id so redeliveries of one purchase
// stay ordered on a single partition.
type KafkaPublisher struct {
	w MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) PublishPurchaseCreated(ctx context.Context, ev PurchaseCreated) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal purchase event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.Purchase.ID), 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("purchase_created")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write purchase event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// KafkaConsumer commits only after the handler has run, so a crash in
// between means the event is seen again. Handler errors are logged and the
// message is committed anyway; nothing is retried.
type KafkaConsumer struct {
	r       MessageReader
	handler Handler
	log     *slog.Logger
}

func NewKafkaConsumer(r MessageReader, h Handler, log *slog.Logger) *KafkaConsumer {
	return &KafkaConsumer{r: r, handler: h, log: log}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: fetch: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: commit offset %d: %w", msg.Offset, err)
		}
	}
}

// NewConsumerBackOff never gives up; the consumer only stops with its context.
func NewConsumerBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// RunWithRetry restarts Run after a fetch or commit failure, waiting as b
// dictates. It returns nil once ctx is done, or the last error when b stops.
func (c *KafkaConsumer) RunWithRetry(ctx context.Context, b backoff.BackOff) error {
	notify := func(err error, wait time.Duration) {
		c.log.Error("purchase_consumer_restarting", "error", err, "retry_in", wait.String())
	}
	err := backoff.RetryNotify(func() error { return c.Run(ctx) }, backoff.WithContext(b, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	var ev PurchaseCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("purchase_event_decode_failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return
	}
	if err := c.handler.HandlePurchaseCreated(ctx, ev); err != nil {
		c.log.Error("purchase_event_handler_failed",
			"purchase_id", ev.Purchase.ID,
			"book_ids", ev.Purchase.ItemIDs(),
			"offset", msg.Offset,
			"error", err,
		)
	}
}

func (c *KafkaConsumer) Close() error { return c.r.Close() }
