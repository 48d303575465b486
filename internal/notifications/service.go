package notifications

import (
	"context"
	"fmt"

	"github.com/bissquit/storefront-auth/internal/domain"
	"github.com/bissquit/storefront-auth/internal/pkg/ctxlog"
)

// Enqueuer accepts notifications for asynchronous delivery.
type Enqueuer interface {
	Enqueue(n Notification) error
}

// ServiceConfig contains the values rendered into account emails.
type ServiceConfig struct {
	StoreName string
	BaseURL   string
}

// Service turns account events into queued notifications.
type Service struct {
	queue    Enqueuer
	renderer *Renderer
	config   ServiceConfig
}

// NewService creates a new notifications service.
func NewService(queue Enqueuer, renderer *Renderer, config ServiceConfig) *Service {
	if config.StoreName == "" {
		config.StoreName = "Storefront"
	}
	return &Service{
		queue:    queue,
		renderer: renderer,
		config:   config,
	}
}

// OnUserCreated queues a welcome email. It never waits for delivery.
func (s *Service) OnUserCreated(ctx context.Context, user *domain.User) error {
	subject, body, err := s.renderer.Render(KindWelcome, MessageData{
		StoreName: s.config.StoreName,
		Name:      user.Name,
		Email:     user.Email,
		BaseURL:   s.config.BaseURL,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("render welcome: %w", err)
	}

	if err := s.queue.Enqueue(Notification{
		To:      user.Email,
		Subject: subject,
		Body:    body,
		Kind:    KindWelcome,
	}); err != nil {
		return fmt.Errorf("enqueue welcome: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("welcome email queued", "user_id", user.ID)
	return nil
}
