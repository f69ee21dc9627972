package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB represents a JSON column stored as TEXT
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			*j = nil
			return nil
		}
		return json.Unmarshal(v, j)
	case string:
		if v == "" {
			*j = nil
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
}

// OperationKind is the lifecycle operation that was journaled
type OperationKind string

const (
	KindCreate   OperationKind = "create"
	KindRemove   OperationKind = "remove"
	KindSwitch   OperationKind = "switch"
	KindValidate OperationKind = "validate"
)

// OperationStatus is the outcome of an operation
type OperationStatus string

const (
	OperationRunning    OperationStatus = "running"
	OperationSucceeded  OperationStatus = "succeeded"
	OperationFailed     OperationStatus = "failed"
	OperationRolledBack OperationStatus = "rolled_back"
)

// StepPhase tells a forward step from a compensation
type StepPhase string

const (
	PhaseForward    StepPhase = "forward"
	PhaseCompensate StepPhase = "compensate"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Operation is one create/remove/switch/validate run against an environment
type Operation struct {
	ID           string          `json:"id" db:"id"`
	Kind         OperationKind   `json:"kind" db:"kind"`
	Environment  string          `json:"environment" db:"environment"`
	Branch       string          `json:"branch" db:"branch"`
	WorktreePath string          `json:"worktree_path" db:"worktree_path"`
	Status       OperationStatus `json:"status" db:"status"`
	Error        string          `json:"error,omitempty" db:"error"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Steps        []OperationStep `json:"steps,omitempty" db:"-"`
}

// Duration returns how long the operation ran, or zero while it is running
func (o *Operation) Duration() time.Duration {
	if o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// OperationStep is one saga step or compensation of an operation
type OperationStep struct {
	ID          int64      `json:"id" db:"id"`
	OperationID string     `json:"operation_id" db:"operation_id"`
	Seq         int        `json:"seq" db:"seq"`
	Name        string     `json:"name" db:"name"`
	Phase       StepPhase  `json:"phase" db:"phase"`
	Status      StepStatus `json:"status" db:"status"`
	Error       string     `json:"error,omitempty" db:"error"`
	Details     JSONB      `json:"details,omitempty" db:"details"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
