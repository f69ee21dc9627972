package operations

import (
	"context"

	"twin/internal/db"
	"twin/internal/errors"
	"twin/internal/logger"
)

// recorder writes one operation to the journal. The journal is an audit
// trail: its failures are logged and never fail the operation. A recorder
// without a journal does nothing.
type recorder struct {
	journal Journal
	op      *db.Operation
}

func (eo *EnvironmentOperations) begin(ctx context.Context, kind db.OperationKind, environment string) *recorder {
	rec := &recorder{journal: eo.journal}
	if eo.journal == nil {
		return rec
	}

	op := &db.Operation{Kind: kind, Environment: environment}
	if err := eo.journal.Start(ctx, op); err != nil {
		logger.WithError(err).Warn("Failed to journal operation")
		rec.journal = nil
		return rec
	}
	rec.op = op
	return rec
}

func (r *recorder) enabled() bool {
	return r != nil && r.journal != nil && r.op != nil
}

func (r *recorder) target(ctx context.Context, branch, worktreePath string) {
	if !r.enabled() {
		return
	}
	r.op.Branch = branch
	r.op.WorktreePath = worktreePath
	if err := r.journal.SetTarget(context.WithoutCancel(ctx), r.op.ID, branch, worktreePath); err != nil {
		logger.WithError(err).Warn("Failed to journal operation target")
	}
}

func (r *recorder) step(ctx context.Context, name string, phase db.StepPhase, stepErr error, details db.JSONB) {
	if !r.enabled() {
		return
	}

	step := &db.OperationStep{
		OperationID: r.op.ID,
		Name:        name,
		Phase:       phase,
		Status:      db.StepOK,
		Details:     details,
	}
	if stepErr != nil {
		step.Status = db.StepFailed
		step.Error = stepErr.Error()
		if code := errors.GetCode(stepErr); code != "" {
			if step.Details == nil {
				step.Details = db.JSONB{}
			}
			step.Details["code"] = string(code)
		}
	}

	if err := r.journal.RecordStep(context.WithoutCancel(ctx), step); err != nil {
		logger.WithError(err).WithField("step", name).Warn("Failed to journal step")
	}
}

func (r *recorder) skipped(ctx context.Context, name, reason string) {
	if !r.enabled() {
		return
	}
	step := &db.OperationStep{
		OperationID: r.op.ID,
		Name:        name,
		Phase:       db.PhaseForward,
		Status:      db.StepSkipped,
		Details:     db.JSONB{"reason": reason},
	}
	if err := r.journal.RecordStep(context.WithoutCancel(ctx), step); err != nil {
		logger.WithError(err).WithField("step", name).Warn("Failed to journal step")
	}
}

// finish closes the operation. rolledBack marks a failure whose
// compensations were applied.
func (r *recorder) finish(ctx context.Context, opErr error, rolledBack bool) {
	if !r.enabled() {
		return
	}

	status := db.OperationSucceeded
	msg := ""
	switch {
	case opErr != nil && rolledBack:
		status = db.OperationRolledBack
		msg = opErr.Error()
	case opErr != nil:
		status = db.OperationFailed
		msg = opErr.Error()
	}

	if err := r.journal.Finish(context.WithoutCancel(ctx), r.op.ID, status, msg); err != nil {
		logger.WithError(err).Warn("Failed to finish journaled operation")
	}
}
