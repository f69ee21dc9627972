package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"twin/internal/constants"
	"twin/internal/xdg"
)

// GlobalConfigPath returns the location of the user-wide configuration file
func GlobalConfigPath() (string, error) {
	configDir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// SaveGlobalConfig writes settings to the user-wide configuration file
func SaveGlobalConfig(s *Settings) error {
	configPath, err := GlobalConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := s.Marshal("toml")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, constants.FilePermissions)
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}

// ResolveWorktreeBase returns the absolute directory environments are
// created under. Relative bases are anchored at projectRoot.
func (s *Settings) ResolveWorktreeBase(projectRoot string) (string, error) {
	base, err := ExpandPath(s.WorktreeBase)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(projectRoot, base)
	}
	return filepath.Clean(base), nil
}
