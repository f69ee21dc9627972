package operations

import (
	"context"
	"fmt"

	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/logger"
)

// compensation undoes one committed step
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga is the compensation stack of a single operation. Every committed
// step pushes its inverse; rollback pops and applies them in reverse order.
type saga struct {
	steps []compensation
	rec   *recorder
}

func newSaga(rec *recorder) *saga {
	return &saga{rec: rec}
}

func (s *saga) push(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

// depth is the number of pending compensations
func (s *saga) depth() int {
	return len(s.steps)
}

// rollback applies every pending compensation, newest first, and returns
// the error to report for the failed operation. Compensations run even if
// ctx is canceled. A compensation that fails does not stop the others; the
// original cause is then wrapped in a ROLLBACK error listing them.
func (s *saga) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	log := logger.WithContext(ctx).WithError(cause)
	log.WithField("compensations", len(s.steps)).Warn("Rolling back")

	var failed []string
	for i := len(s.steps) - 1; i >= 0; i-- {
		c := s.steps[i]
		err := c.undo(ctx)
		s.rec.step(ctx, c.name, db.PhaseCompensate, err, nil)
		if err != nil {
			log.WithField("compensation", c.name).WithField("compensation_error", err.Error()).
				Error("Compensation failed")
			failed = append(failed, fmt.Sprintf("%s: %v", c.name, err))
		}
	}
	s.steps = nil

	if len(failed) > 0 {
		return errors.Rollback(cause, failed)
	}
	return cause
}
