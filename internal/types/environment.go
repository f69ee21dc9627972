// Package types provides the domain types shared by the lifecycle components
package types

import "time"

// EnvironmentStatus is the lifecycle state of an environment
type EnvironmentStatus string

const (
	StatusCreating EnvironmentStatus = "creating"
	StatusActive   EnvironmentStatus = "active"
	StatusInactive EnvironmentStatus = "inactive"
	StatusRemoving EnvironmentStatus = "removing"
	StatusError    EnvironmentStatus = "error"
)

// LinkKind is the strategy that was applied to materialize a shared file
type LinkKind string

const (
	LinkSymlink LinkKind = "symlink"
	LinkCopy    LinkKind = "copy"
)

// LinkRecord describes one shared file inside an environment's worktree
type LinkRecord struct {
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	Kind         LinkKind `json:"kind" yaml:"kind"`
	Valid        bool     `json:"is_valid" yaml:"is_valid"`
	ErrorMessage string   `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Environment is one isolated workspace: a worktree, its branch and its links
type Environment struct {
	Name         string            `json:"name" yaml:"name"`
	Branch       string            `json:"branch" yaml:"branch"`
	WorktreePath string            `json:"worktree_path" yaml:"worktree_path"`
	Links        []LinkRecord      `json:"symlinks" yaml:"symlinks"`
	Status       EnvironmentStatus `json:"status" yaml:"status"`
	StatusReason string            `json:"status_reason,omitempty" yaml:"status_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" yaml:"updated_at"`
	ConfigPath   string            `json:"config_path,omitempty" yaml:"config_path,omitempty"`
}

// SetStatus updates the status and its reason and bumps UpdatedAt.
func (e *Environment) SetStatus(status EnvironmentStatus, reason string) {
	e.Status = status
	e.StatusReason = reason
	e.UpdatedAt = time.Now()
}

// InvalidLinks returns the links that did not validate.
func (e *Environment) InvalidLinks() []LinkRecord {
	var out []LinkRecord
	for _, l := range e.Links {
		if !l.Valid {
			out = append(out, l)
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate it without touching the registry.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	c := *e
	if e.Links != nil {
		c.Links = make([]LinkRecord, len(e.Links))
		copy(c.Links, e.Links)
	}
	return &c
}
