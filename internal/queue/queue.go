package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// IndexQueue carries index run requests.
const IndexQueue = "index_queue"

// RetryDelay is how long a failed message waits in the retry queue before
// it is routed back to its work queue.
const RetryDelay = 10 * time.Second

// Publisher is the publish side of an AMQP channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// URLFromEnv builds the broker URL from RABBITMQ_USER, RABBITMQ_PASSWORD,
// RABBITMQ_HOST and RABBITMQ_PORT. RABBITMQ_URL wins when set.
func URLFromEnv() string {
	if u := util.GetEnv("RABBITMQ_URL"); u != "" {
		return u
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(util.GetEnvString("RABBITMQ_USER", "guest"), util.GetEnvString("RABBITMQ_PASSWORD", "guest")),
		Host:   util.GetEnvString("RABBITMQ_HOST", "localhost") + ":" + util.GetEnvString("RABBITMQ_PORT", "5672"),
		Path:   "/",
	}
	return u.String()
}

// Dial connects to the broker, retrying while it starts up.
func Dial(ctx context.Context, connURL string, maxTries int) (*amqp091.Connection, error) {
	return util.RetryWithContext(ctx, maxTries, func(ctx context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(connURL)
		if err != nil {
			logger.Warn("[Queue] Broker not reachable", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			return nil, err
		}
		return conn, nil
	})
}

// Declarer declares queues on a channel.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// SetupQueues declares each work queue with its dead letter queue and a
// retry queue that routes expired messages back to the work queue.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}
