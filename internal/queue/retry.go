package queue

import (
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	retriesHeader = "x-retries"
	maxRetries    = 10
)

// retryCount reads the retry header. The broker may hand integers back in
// any width.
func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

// nextRoute returns the queue a failed message goes to and the headers to
// publish it with.
func nextRoute(queueName string, headers amqp091.Table) (string, amqp091.Table) {
	retries := retryCount(headers)
	if retries >= maxRetries {
		return queueName + "_dlq", headers
	}

	out := amqp091.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[retriesHeader] = int32(retries + 1)
	return queueName + "_retry", out
}

// HandleProcessingError sends a failed message to the retry queue, or to
// the dead letter queue once it ran out of retries. The original delivery
// is acked after a successful republish and requeued otherwise.
func HandleProcessingError(ch Channel, msg amqp091.Delivery, queueName string) {
	target, headers := nextRoute(queueName, msg.Headers)
	logger.Info("[Queue] Rerouting failed message", "queue", queueName, "target", target,
		"retries", retryCount(msg.Headers))

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to reroute message", "target", target, "err", pubErr)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
