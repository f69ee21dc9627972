// Package constants defines application-wide constants to avoid magic numbers
package constants

import "time"

// Network and Port Constants
const (
	// DefaultServerHost is the default bind address for the twin API server
	DefaultServerHost = "127.0.0.1"

	// DefaultServerPort is the default port for the twin API server
	DefaultServerPort = 7420
)

// File System Permissions
const (
	// DirPermissions is the standard directory permissions for twin directories
	DirPermissions = 0755

	// FilePermissions is the standard file permissions for twin config files
	FilePermissions = 0644
)

// Registry and naming
const (
	// RegistryFileName is the registry document stored in the git common dir
	RegistryFileName = "twin-registry.json"

	// LockFileSuffix is appended to the registry path to form the lock file
	LockFileSuffix = ".lock"

	// DefaultWorktreeBase is where environments are checked out, relative to the project root
	DefaultWorktreeBase = "../workspaces"

	// DefaultBranchPrefix prefixes generated branch names
	DefaultBranchPrefix = "agent"

	// MaxBranchAttempts bounds numbered suffixes before falling back to a timestamp
	MaxBranchAttempts = 10

	// BranchTimestampLayout formats the timestamp suffix of a fallback branch name
	BranchTimestampLayout = "20060102-150405"
)

// Timeouts
const (
	// DefaultHookTimeout is applied to hooks that do not declare a timeout
	DefaultHookTimeout = 60 * time.Second

	// HookWaitDelay bounds how long output pipes are drained after a hook is killed
	HookWaitDelay = 2 * time.Second

	// DefaultLockTimeout is how long to wait for the registry lock
	DefaultLockTimeout = 10 * time.Second

	// LockRetryInterval is the delay between lock attempts
	LockRetryInterval = 100 * time.Millisecond

	// DefaultServerShutdownTimeout is the default server graceful shutdown timeout
	DefaultServerShutdownTimeout = 30 * time.Second

	// DefaultServerReadTimeout is the default server read timeout
	DefaultServerReadTimeout = 10 * time.Second

	// DefaultServerWriteTimeout bounds a request, which may run hooks
	DefaultServerWriteTimeout = 15 * time.Minute
)

// Journal
const (
	// DefaultHistoryLimit is the number of operations shown by default
	DefaultHistoryLimit = 20

	// MaxHistoryLimit caps history queries
	MaxHistoryLimit = 500

	// MaxOutputLength is the maximum length of hook output kept in a result
	MaxOutputLength = 64 * 1024
)
