// Package links materializes shared project files inside environment
// worktrees, as native symlinks where the platform allows it and as copies
// otherwise.
package links

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"twin/internal/constants"
	"twin/internal/errors"
	"twin/internal/logger"
	"twin/internal/types"
)

// Strategy is how a link is materialized
type Strategy string

const (
	StrategySymlink Strategy = "symlink"
	StrategyCopy    Strategy = "copy"
)

// State distinguishes a broken link from a missing one
type State string

const (
	StateAbsent State = "absent"
	StateBroken State = "broken"
	StateValid  State = "valid"
)

// Provisioner creates, removes and validates links
type Provisioner interface {
	SelectStrategy(source, target string) Strategy
	CreateLink(source, target string) (types.LinkRecord, error)
	CreateCopy(source, target string) (types.LinkRecord, error)
	RemoveLink(target string) error
	ValidateLink(target string) bool
	Inspect(target string) State
	ManualInstructions(source, target string) string
}

// Manager is the Provisioner used by twin. The strategy is decided once,
// when the Manager is built.
type Manager struct {
	strategy Strategy
}

// New probes the platform and returns a Manager using the best strategy
func New() *Manager {
	strategy := probeStrategy()
	logger.WithField("strategy", strategy).Debug("Link strategy selected")
	return &Manager{strategy: strategy}
}

// NewWithStrategy returns a Manager that always uses strategy
func NewWithStrategy(strategy Strategy) *Manager {
	return &Manager{strategy: strategy}
}

// SelectStrategy returns the strategy CreateLink applies. It depends only on
// the platform probe, never on the paths.
func (m *Manager) SelectStrategy(_, _ string) Strategy {
	return m.strategy
}

// CreateLink makes target refer to source. Any existing entry at target is
// replaced and missing parent directories are created. It fails without
// touching target when source does not exist.
func (m *Manager) CreateLink(source, target string) (types.LinkRecord, error) {
	return m.create(source, target, m.SelectStrategy(source, target))
}

// CreateCopy is CreateLink with the copy strategy forced
func (m *Manager) CreateCopy(source, target string) (types.LinkRecord, error) {
	return m.create(source, target, StrategyCopy)
}

func (m *Manager) create(source, target string, strategy Strategy) (types.LinkRecord, error) {
	record := types.LinkRecord{
		Source: source,
		Target: target,
		Kind:   types.LinkKind(strategy),
	}

	info, err := os.Stat(source)
	if err != nil {
		record.ErrorMessage = fmt.Sprintf("source not found: %v", err)
		return record, errors.Link(source, "Link source does not exist", err)
	}

	if err := removeEntry(target); err != nil {
		record.ErrorMessage = err.Error()
		return record, errors.Link(target, "Failed to remove existing entry", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), constants.DirPermissions); err != nil {
		record.ErrorMessage = err.Error()
		return record, errors.Link(target, "Failed to create parent directory", err)
	}

	switch strategy {
	case StrategyCopy:
		err = copyPath(source, target, info)
	default:
		err = os.Symlink(source, target)
	}
	if err != nil {
		record.ErrorMessage = err.Error()
		return record, errors.Link(target, fmt.Sprintf("Failed to create %s", strategy), err).
			WithContext("instructions", m.ManualInstructions(source, target))
	}

	record.Valid = true
	logger.WithFields(logger.Fields{
		"source":   source,
		"target":   target,
		"strategy": strategy,
	}).Debug("Link created")
	return record, nil
}

// RemoveLink removes whatever is at target: a symlink, a copied file or a
// copied directory tree. Nothing at target is not an error.
func (m *Manager) RemoveLink(target string) error {
	if err := removeEntry(target); err != nil {
		return errors.Link(target, "Failed to remove link", err)
	}
	return nil
}

// ValidateLink reports whether an entry exists at target and resolves
func (m *Manager) ValidateLink(target string) bool {
	return m.Inspect(target) == StateValid
}

// Inspect classifies the entry at target
func (m *Manager) Inspect(target string) State {
	if _, err := os.Lstat(target); err != nil {
		return StateAbsent
	}
	if _, err := os.Stat(target); err != nil {
		return StateBroken
	}
	return StateValid
}

// ManualInstructions returns the command an operator can run to create the
// link by hand
func (m *Manager) ManualInstructions(source, target string) string {
	if runtime.GOOS == "windows" {
		flag := ""
		if info, err := os.Stat(source); err == nil && info.IsDir() {
			flag = "/D "
		}
		return fmt.Sprintf("To create the link manually, run:\n  mklink %s\"%s\" \"%s\"", flag, target, source)
	}
	return fmt.Sprintf("To create the link manually, run:\n  ln -s \"%s\" \"%s\"", source, target)
}

func removeEntry(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}
