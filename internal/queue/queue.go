package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/util"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	IngestQueue = "ingest_queue"

	TopicExchange = "pubsub_exchange"
	// TopicGraphUpdated is published after a worker changed the graph.
	TopicGraphUpdated = "graph.updated"

	retryTTLMs = 10000

	dialAttempts = 5
)

var (
	dial        = amqp091.Dial
	dialBackoff = time.Second
)

// Channel is the subset of *amqp091.Channel used by the queue helpers.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

var _ Channel = (*amqp091.Channel)(nil)

// Queues lists every work queue consumed by the worker.
var Queues = []string{IngestQueue}

func Init(ctx context.Context, cfg config.RabbitMQ) (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	// the broker often comes up after us in compose setups
	conn, err := util.RetryWithBackoff(ctx, dialAttempts, dialBackoff, func(ctx context.Context) (*amqp091.Connection, error) {
		conn, err := dial(connURL)
		if err != nil {
			logger.Warn("[Queue] Broker not reachable", "host", cfg.Host, "err", err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	return conn, nil
}

// SetupQueues declares the topic exchange and, for every queue, its
// dead letter queue and a retry queue that routes back after a delay.
func SetupQueues(ch Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryTTLMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

func PublishTopic(ch Channel, topic string, data []byte) error {
	err := ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	// not mandatory: nobody may be listening
	return ch.Publish(
		TopicExchange,
		topic,
		false,
		false,
		publishing,
	)
}

// SubscribeTopic binds a private, auto-deleted queue to topic and starts
// consuming it with auto-ack.
func SubscribeTopic(ch *amqp091.Channel, topic string) (<-chan amqp091.Delivery, error) {
	err := ch.ExchangeDeclare(
		TopicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",
		false,
		true, // autoDelete
		true, // exclusive
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if err := ch.QueueBind(q.Name, topic, TopicExchange, false, nil); err != nil {
		return nil, err
	}

	return ch.Consume(
		q.Name,
		"",
		true, // autoAck
		true, // exclusive
		false,
		false,
		nil,
	)
}
