package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"price_tracker/internal/lib/logger/sl"

	amqp "github.com/rabbitmq/amqp091-go"
)

type HandlerFunc = func(ctx context.Context, body []byte) error

type Consumer struct {
	ch             *amqp.Channel
	log            *slog.Logger
	queueName      string
	workerPoolSize int
}

func NewConsumer(ch *amqp.Channel, log *slog.Logger, queueName string, poolSize int) *Consumer {
	return &Consumer{
		ch:             ch,
		log:            log,
		queueName:      queueName,
		workerPoolSize: max(poolSize, 1),
	}
}

// Consume starts delivering messages to handler on at most workerPoolSize
// goroutines and returns once the subscription is set up. A failed message is
// dropped rather than requeued, since alert delivery is at most once.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	const op = "rabbitmq.Consume"

	if err := c.ch.Qos(c.workerPoolSize, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msgs, err := c.ch.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log := c.log.With(slog.String("op", op), slog.String("queue", c.queueName))

	go func() {
		var wg sync.WaitGroup
		semaphore := make(chan struct{}, c.workerPoolSize)

		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case msg, ok := <-msgs:
				if !ok {
					wg.Wait()
					return
				}

				wg.Add(1)
				semaphore <- struct{}{}

				go func(m amqp.Delivery) {
					defer wg.Done()
					defer func() { <-semaphore }()

					if err := handler(ctx, m.Body); err != nil {
						log.Error("message handling failed", sl.Err(err))

						if err := m.Nack(false, false); err != nil {
							log.Error("nack failed", sl.Err(err))
						}
						return
					}

					if err := m.Ack(false); err != nil {
						log.Error("ack failed", sl.Err(err))
					}
				}(msg)
			}
		}
	}()

	return nil
}
