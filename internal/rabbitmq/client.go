package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQClient struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// New connects to the broker and declares queue as durable so alerts
// published before the consumer starts are kept.
func New(url, queue string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: channel: %w", op, err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: declare %s: %w", op, queue, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		Channel: ch,
	}, nil
}

func (c *RabbitMQClient) Close() error {
	if err := c.Channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
