package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Producer struct {
	ch        *amqp.Channel
	queueName string
}

func NewProducer(ch *amqp.Channel, queueName string) *Producer {
	return &Producer{
		ch:        ch,
		queueName: queueName,
	}
}

func (p *Producer) PublishJSON(ctx context.Context, msg any) error {
	const op = "rabbitmq.Producer.PublishJSON"

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
