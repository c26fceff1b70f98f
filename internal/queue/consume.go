package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message is retried before it is moved to the
// dead letter queue.
const MaxRetries = 10

const retriesHeader = "x-retries"

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Consumer is the consume side of an AMQP channel.
type Consumer interface {
	Publisher
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

// Consume delivers messages from queueName to handle, one at a time, until
// ctx is done or the channel closes. Failed messages go to the retry
// queue. After MaxRetries, or on an error marked util.Permanent, they go
// to the dead letter queue.
func Consume(ctx context.Context, ch Consumer, queueName string, handle Handler) error {
	msgs, err := ch.ConsumeWithContext(ctx, queueName, queueName+"_consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}

	logger.Info("[Queue] Listening for messages", "queue", queueName)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", queueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consume %s: delivery channel closed", queueName)
			}
			HandleDelivery(ctx, ch, msg, queueName, handle)
		}
	}
}

// HandleDelivery runs handle on msg and acknowledges it.
func HandleDelivery(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, handle Handler) {
	start := time.Now()
	err := handle(ctx, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			logger.Error("[Queue] Failed to ack message", "queue", queueName, "err", ackErr)
		}
		logger.Info("[Queue] Message processed", "queue", queueName, "duration", time.Since(start).Round(time.Millisecond))
		return
	}

	logger.Error("[Queue] Error processing message", "queue", queueName, "err", err)
	handleProcessingError(ctx, ch, msg, queueName, util.IsPermanent(err))
}

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func handleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, permanent bool) {
	retries := retryCount(msg.Headers)

	if permanent || retries >= MaxRetries {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		pubErr := ch.PublishWithContext(ctx, "", dlqName, false, false, amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     msg.Headers,
		})
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)

	pubErr := ch.PublishWithContext(ctx, "", retryName, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
