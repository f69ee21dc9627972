package server

import (
	"twin/internal/db"
	"twin/internal/operations"
	"twin/internal/types"
)

// SuccessResponse represents a successful operation response
type SuccessResponse struct {
	Message string `json:"message" example:"Environment removed"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string         `json:"status" example:"healthy"`
	Version     string         `json:"version" example:"1.0.0"`
	Uptime      string         `json:"uptime" example:"2h30m15s"`
	ProjectRoot string         `json:"project_root"`
	Journal     *JournalHealth `json:"journal,omitempty"`
}

// JournalHealth reports the state of the operation journal database
type JournalHealth struct {
	Status        string `json:"status" example:"healthy"`
	SchemaVersion uint   `json:"schema_version"`
	Dirty         bool   `json:"dirty"`
	OpenConns     int    `json:"open_connections"`
	Error         string `json:"error,omitempty"`
}

// CreateEnvironmentRequest represents a request to create an environment
type CreateEnvironmentRequest struct {
	Name   string `json:"name" example:"agent-1"`
	Branch string `json:"branch,omitempty" example:"feature/auth"`
}

// EnvironmentsResponse represents a list of environments
type EnvironmentsResponse struct {
	Environments []*types.Environment `json:"environments"`
	Active       string               `json:"active,omitempty"`
	Total        int                  `json:"total"`
}

// WorktreesResponse represents the repository's git worktrees
type WorktreesResponse struct {
	Worktrees []operations.WorktreeEntry `json:"worktrees"`
	Total     int                        `json:"total"`
}

// OperationsResponse is one page of the operation journal
type OperationsResponse = db.PaginatedResponse[db.Operation]
