package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"price_tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type recordingPublisher struct {
	msgs []any
}

func (r *recordingPublisher) PublishJSON(_ context.Context, msg any) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

var event = models.AlertEvent{
	ProductID:    9,
	ProductName:  "Phone X",
	CurrentPrice: 999,
	TargetPrice:  1000,
	URL:          "https://www.flipkart.com/x/p/itm9",
}

func TestDirectDispatcher(t *testing.T) {
	s := &recordingSender{}

	require.NoError(t, NewDirectDispatcher(s).Dispatch(context.Background(), event))
	require.Len(t, s.sent, 1)
	assert.Equal(t, FormatAlert(event), s.sent[0])

	s.err = errors.New("dial tcp: refused")
	assert.Error(t, NewDirectDispatcher(s).Dispatch(context.Background(), event))
}

func TestQueueRoundTrip(t *testing.T) {
	pub := &recordingPublisher{}
	require.NoError(t, NewQueueDispatcher(pub).Dispatch(context.Background(), event))
	require.Len(t, pub.msgs, 1)

	body, err := json.Marshal(pub.msgs[0])
	require.NoError(t, err)

	sender := &recordingSender{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), sender)

	require.NoError(t, svc.HandleMessage(context.Background(), body))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, FormatAlert(event), sender.sent[0])
}

func TestServiceRejectsMalformedMessage(t *testing.T) {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), &recordingSender{})

	assert.Error(t, svc.HandleMessage(context.Background(), []byte("{not json")))
}
