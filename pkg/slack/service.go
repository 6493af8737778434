package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// Service satisfies simulation.Notifier by posting ActionNotify
// scenario conditions to a Slack channel. Nil-safe: Notify is a no-op
// when the service is nil, so a deployment without Slack configured
// can pass a nil *Service wherever simulation.Notifier is expected.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service. Returns nil if
// Token or Channel is empty, so construction can be unconditional at
// the composition root.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing against a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// Notify delivers a scenario's ActionNotify condition to Slack.
// Fail-open: delivery errors are logged, never returned, since a
// failed notification must never fail the simulation step that
// triggered it.
func (s *Service) Notify(ctx context.Context, target, message string) {
	if s == nil {
		return
	}

	blocks := BuildNotifyMessage(target, message)
	if err := s.client.PostMessage(ctx, blocks, 5*time.Second); err != nil {
		s.logger.Error("failed to send Slack notification", "target", target, "error", err)
	}
}
