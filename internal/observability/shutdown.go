package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ShutdownCoordinator runs registered cleanup functions in reverse order of
// registration.
type ShutdownCoordinator struct {
	mu    sync.Mutex
	steps []shutdownStep
}

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// Register adds a cleanup function.
func (s *ShutdownCoordinator) Register(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

// Shutdown runs every cleanup function, newest first, and forgets them.
// Every function runs even when an earlier one fails.
func (s *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	steps := slices.Clone(s.steps)
	s.steps = nil
	s.mu.Unlock()

	var errs []error
	for _, step := range slices.Backward(steps) {
		slog.Debug("shutting down", "component", step.name)
		if err := step.fn(ctx); err != nil {
			slog.Error("shutdown failed", "component", step.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}
