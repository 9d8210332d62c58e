package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// compensation undoes one committed step of an upload.
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga records compensations as steps commit and runs them newest first
// on failure.
type saga struct {
	steps  []compensation
	logger *slog.Logger
}

func newSaga(logger *slog.Logger) *saga {
	return &saga{logger: logger}
}

func (s *saga) push(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// rollback runs every compensation even when an earlier one fails and
// returns the joined failures.
func (s *saga) rollback(ctx context.Context) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			s.logger.Error("compensation failed", "step", step.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		s.logger.Debug("compensation applied", "step", step.name)
	}
	s.steps = nil
	return errors.Join(errs...)
}
