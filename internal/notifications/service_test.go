package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	queued []Notification
	err    error
}

func (q *recordingQueue) Enqueue(n Notification) error {
	if q.err != nil {
		return q.err
	}
	q.queued = append(q.queued, n)
	return nil
}

func TestService_OnUserCreated(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	queue := &recordingQueue{}
	service := NewService(queue, renderer, ServiceConfig{BaseURL: "https://shop.example"})

	err = service.OnUserCreated(context.Background(), &domain.User{
		ID:        "u1",
		Email:     "a@x.com",
		Name:      "ada",
		CreatedAt: time.Now(),
	})

	require.NoError(t, err)
	require.Len(t, queue.queued, 1)
	n := queue.queued[0]
	assert.Equal(t, "a@x.com", n.To)
	assert.Equal(t, KindWelcome, n.Kind)
	assert.Equal(t, "Welcome to Storefront", n.Subject)
	assert.Contains(t, n.Body, "Hello Ada,")
}

func TestService_OnUserCreated_QueueFull(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	service := NewService(&recordingQueue{err: ErrQueueFull}, renderer, ServiceConfig{})

	err = service.OnUserCreated(context.Background(), &domain.User{ID: "u1", Email: "a@x.com"})

	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestService_WithWorker(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	sender := &fakeSender{}
	worker := NewWorker(fastConfig(), sender)
	worker.Start(context.Background())
	service := NewService(worker, renderer, ServiceConfig{})

	require.NoError(t, service.OnUserCreated(context.Background(), &domain.User{ID: "u1", Email: "a@x.com"}))
	worker.Stop(context.Background())

	_, sent := sender.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To)
}
