package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sushiko/orderflow/internal/notify/dispatcher"
	"github.com/sushiko/orderflow/internal/order/domain"
	"github.com/sushiko/orderflow/pkg/idempotency"
	"github.com/sushiko/orderflow/pkg/tracing"
)

// Consumer reads committed transitions from the order topic and hands them
// to the dispatcher. The broker may redeliver, so every message passes the
// redis idempotency check before any push goes out.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	disp   *dispatcher.Dispatcher
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, disp *dispatcher.Dispatcher, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		disp:   disp,
		idem:   idem,
		tracer: otel.Tracer("notify-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderStatusChanged")

		var event domain.OrderStatusChanged
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Error("unmarshal failed", "err", err)
			span.End()
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		c.disp.Notify(msgCtx, event)

		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}
