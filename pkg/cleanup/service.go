// Package cleanup provides the Execution Core's background retention loop.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Retainer is the subset of *wasmexec.Core the cleanup loop drives. A
// narrow interface keeps this package from importing wasmexec directly.
type Retainer interface {
	Cleanup(olderThan time.Duration)
}

// Service periodically evicts terminal executions older than the
// configured retention window, so the Execution Core's result table
// doesn't grow without bound across a long-running process.
type Service struct {
	core            Retainer
	retention       time.Duration
	interval        time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(core Retainer, retention, interval time.Duration) *Service {
	return &Service{core: core, retention: retention, interval: interval}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"retention", s.retention,
		"interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.core.Cleanup(s.retention)
		}
	}
}
