//go:build windows

package links

import (
	"os"
	"path/filepath"
)

// probeStrategy creates a throwaway symlink. It succeeds when the process
// is elevated or Developer Mode allows unprivileged symlinks.
func probeStrategy() Strategy {
	dir, err := os.MkdirTemp("", "twin-link-probe-")
	if err != nil {
		return StrategyCopy
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "source")
	if err := os.WriteFile(source, nil, 0o644); err != nil {
		return StrategyCopy
	}
	if err := os.Symlink(source, filepath.Join(dir, "link")); err != nil {
		return StrategyCopy
	}
	return StrategySymlink
}
