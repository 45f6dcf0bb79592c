package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DirectDispatcher delivers alerts synchronously from the sweep.
type DirectDispatcher struct {
	sender Sender
}

func NewDirectDispatcher(sender Sender) *DirectDispatcher {
	return &DirectDispatcher{sender: sender}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, event models.AlertEvent) error {
	const op = "notifier.DirectDispatcher.Dispatch"

	if err := d.sender.Send(ctx, FormatAlert(event)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type Publisher interface {
	PublishJSON(ctx context.Context, msg any) error
}

// QueueDispatcher publishes alerts to the broker; a Service on the other end
// of the queue delivers them.
type QueueDispatcher struct {
	publisher Publisher
}

func NewQueueDispatcher(p Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: p}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, event models.AlertEvent) error {
	const op = "notifier.QueueDispatcher.Dispatch"

	if err := d.publisher.PublishJSON(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type Consumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, body []byte) error) error
}

// Service consumes queued alerts and hands them to the sender.
type Service struct {
	log    *slog.Logger
	sender Sender
}

func NewService(log *slog.Logger, sender Sender) *Service {
	return &Service{log: log, sender: sender}
}

func (s *Service) Run(ctx context.Context, consumer Consumer) error {
	return consumer.Consume(ctx, s.HandleMessage)
}

func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	const op = "notifier.Service.HandleMessage"

	var event models.AlertEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: invalid message format: %w", op, err)
	}

	if err := s.sender.Send(ctx, FormatAlert(event)); err != nil {
		s.log.Error("failed to deliver alert",
			slog.String("op", op),
			slog.Int64("product_id", event.ProductID),
			sl.Err(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("alert delivered",
		slog.String("op", op),
		slog.Int64("product_id", event.ProductID),
	)

	return nil
}
