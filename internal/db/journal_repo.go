package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"twin/internal/errors"
)

// JournalRepository records lifecycle operations and their saga steps
type JournalRepository struct {
	db *DB
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// HistoryFilter narrows a history listing
type HistoryFilter struct {
	Environment string
	Kind        OperationKind
	Status      OperationStatus
}

func (f HistoryFilter) where() (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}
	if f.Environment != "" {
		clause += " AND environment = ?"
		args = append(args, f.Environment)
	}
	if f.Kind != "" {
		clause += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		clause += " AND status = ?"
		args = append(args, f.Status)
	}
	return clause, args
}

// Start inserts op with status running. An empty ID is filled with a new
// UUID and a zero StartedAt with the current time.
func (r *JournalRepository) Start(ctx context.Context, op *Operation) error {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now().UTC()
	}
	op.Status = OperationRunning

	query := `
		INSERT INTO operations (id, kind, environment, branch, worktree_path, status, error, started_at)
		VALUES (:id, :kind, :environment, :branch, :worktree_path, :status, :error, :started_at)`

	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return errors.DatabaseQueryError("insert operation", err)
	}
	return nil
}

// SetTarget records the branch and worktree path once they are resolved
func (r *JournalRepository) SetTarget(ctx context.Context, id, branch, worktreePath string) error {
	query := `UPDATE operations SET branch = ?, worktree_path = ? WHERE id = ?`
	return r.execOne(ctx, id, "update operation target", query, branch, worktreePath, id)
}

// RecordStep appends step to its operation. Seq is assigned in insertion
// order.
func (r *JournalRepository) RecordStep(ctx context.Context, step *OperationStep) error {
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var seq int
		if err := tx.GetContext(ctx, &seq,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM operation_steps WHERE operation_id = ?`,
			step.OperationID); err != nil {
			return errors.DatabaseQueryError("next step seq", err)
		}
		step.Seq = seq

		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO operation_steps (operation_id, seq, name, phase, status, error, details, created_at)
			VALUES (:operation_id, :seq, :name, :phase, :status, :error, :details, :created_at)`, step)
		if err != nil {
			return errors.DatabaseQueryError("insert operation step", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			step.ID = id
		}
		return nil
	})
}

// Finish closes the operation with its final status
func (r *JournalRepository) Finish(ctx context.Context, id string, status OperationStatus, errMsg string) error {
	query := `UPDATE operations SET status = ?, error = ?, finished_at = ? WHERE id = ?`
	return r.execOne(ctx, id, "finish operation", query, status, errMsg, time.Now().UTC(), id)
}

// Get returns an operation with its steps
func (r *JournalRepository) Get(ctx context.Context, id string) (*Operation, error) {
	query := `
		SELECT id, kind, environment, branch, worktree_path, status, error, started_at, finished_at
		FROM operations
		WHERE id = ?`

	var op Operation
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.OperationNotFound(id)
		}
		return nil, errors.DatabaseQueryError("get operation", err)
	}

	steps, err := r.Steps(ctx, id)
	if err != nil {
		return nil, err
	}
	op.Steps = steps
	return &op, nil
}

// Steps returns the steps of an operation in the order they ran
func (r *JournalRepository) Steps(ctx context.Context, operationID string) ([]OperationStep, error) {
	query := `
		SELECT id, operation_id, seq, name, phase, status, error, details, created_at
		FROM operation_steps
		WHERE operation_id = ?
		ORDER BY seq`

	var steps []OperationStep
	if err := r.db.SelectContext(ctx, &steps, query, operationID); err != nil {
		return nil, errors.DatabaseQueryError("list operation steps", err)
	}
	return steps, nil
}

// List returns operations matching filter, newest first by default
func (r *JournalRepository) List(ctx context.Context, filter HistoryFilter, page PaginationOptions) ([]Operation, error) {
	if err := page.Validate(); err != nil {
		return nil, errors.InvalidInput(fmt.Sprintf("%+v", page), err.Error())
	}

	where, args := filter.where()
	query := `
		SELECT id, kind, environment, branch, worktree_path, status, error, started_at, finished_at
		FROM operations` + where + " " + page.BuildOrderClause() + " " + page.BuildLimitClause()

	ops := []Operation{}
	if err := r.db.SelectContext(ctx, &ops, query, args...); err != nil {
		return nil, errors.DatabaseQueryError("list operations", err)
	}
	return ops, nil
}

// Count returns the number of operations matching filter
func (r *JournalRepository) Count(ctx context.Context, filter HistoryFilter) (int, error) {
	where, args := filter.where()

	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM operations`+where, args...); err != nil {
		return 0, errors.DatabaseQueryError("count operations", err)
	}
	return n, nil
}

// Prune deletes operations that finished before cutoff, with their steps
func (r *JournalRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM operations WHERE finished_at IS NOT NULL AND finished_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, errors.DatabaseQueryError("prune operations", err)
	}
	return res.RowsAffected()
}

func (r *JournalRepository) execOne(ctx context.Context, id, what, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.DatabaseQueryError(what, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseQueryError(what, err)
	}
	if rowsAffected == 0 {
		return errors.OperationNotFound(id)
	}
	return nil
}
