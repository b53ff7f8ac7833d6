package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/queue"
	"github.com/scilab-ai/scilab/backend/internal/storage"
	"github.com/scilab-ai/scilab/backend/pkg/leaselock"
	"github.com/scilab-ai/scilab/backend/pkg/loader/pdf"
	s3loader "github.com/scilab-ai/scilab/backend/pkg/loader/s3"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/logger/console"
	pgxstore "github.com/scilab-ai/scilab/backend/pkg/store/pgx"

	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.New(console.Options{
		Debug: cfg.Debug,
	})
	logger.Init(consoleLogger)

	if !cfg.RabbitMQ.Enabled() || !cfg.S3.Enabled() {
		logger.Fatal("Worker needs RABBITMQ_HOST and AWS_BUCKET")
	}

	// Init s3 client
	client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Fatal("Could not create s3 client", "err", err)
	}
	files := pdf.NewPDFGraphLoader(s3loader.NewS3GraphFileLoaderWithClient(cfg.S3.Bucket, client))

	components, err := bootstrap.Build(ctx, bootstrap.Params{Config: cfg, Files: files})
	if err != nil {
		logger.Fatal("Could not initialize graph components", "err", err)
	}
	defer components.Close()
	aiClient := components.AIClient

	// Init rabbitmq
	conn, err := queue.Init(ctx, cfg.RabbitMQ)
	if err != nil {
		logger.Fatal("Could not connect to queue", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	worker := &queue.IngestWorker{
		Pipeline: components.Pipeline,
		Files:    files,
		Channel:  ch,
		Cleanup: func(ctx context.Context, key string) error {
			return storage.DeleteFile(ctx, client, cfg.S3.Bucket, key)
		},
	}

	// Workers sharing a graph database take turns on the same document
	if cfg.Graph.Store != "memory" && cfg.Graph.DatabaseURL != "" {
		pool, err := pgxstore.NewPool(ctx, cfg.Graph.DatabaseURL)
		if err != nil {
			logger.Fatal("Could not connect to graph database", "err", err)
		}
		defer pool.Close()
		locker := leaselock.New(pool, leaselock.Options{
			Wait:       true,
			PollJitter: 250 * time.Millisecond,
		})
		worker.Lock = locker.Do
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = worker.ProcessIngestMessage(ctx, qm.msg.Body)
				default:
					processingErr = fmt.Errorf("no handler for queue %s", qm.queueName)
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"requests", metrics.Requests,
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info(
					"Processing time",
					"duration", formatDuration(time.Since(startTime)),
				)
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
