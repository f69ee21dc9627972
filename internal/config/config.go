package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"twin/internal/constants"
	"twin/internal/errors"
	"twin/internal/validation"
)

// ProjectConfigNames are searched, in order, in each directory from the
// starting directory up to the filesystem root.
var ProjectConfigNames = []string{"twin.toml", ".twin.toml", "twin.yaml", ".twin.yaml", "twin.yml", ".twin.yml"}

// MappingType selects how a shared file is materialized in a worktree
type MappingType string

const (
	MappingSymlink MappingType = "symlink"
	MappingCopy    MappingType = "copy"
)

// FileMapping declares a project file that every environment shares
type FileMapping struct {
	Path         string      `toml:"path" yaml:"path"`
	MappingType  MappingType `toml:"mapping_type,omitempty" yaml:"mapping_type,omitempty"`
	Description  string      `toml:"description,omitempty" yaml:"description,omitempty"`
	SkipIfExists bool        `toml:"skip_if_exists,omitempty" yaml:"skip_if_exists,omitempty"`
}

// HookCommand is one user-defined command run at a lifecycle phase
type HookCommand struct {
	Command         string            `toml:"command" yaml:"command"`
	Args            []string          `toml:"args,omitempty" yaml:"args,omitempty"`
	Env             map[string]string `toml:"env,omitempty" yaml:"env,omitempty"`
	Timeout         int               `toml:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
	ContinueOnError bool              `toml:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

// TimeoutDuration returns the hook timeout, falling back to the default
func (h HookCommand) TimeoutDuration() time.Duration {
	if h.Timeout <= 0 {
		return constants.DefaultHookTimeout
	}
	return time.Duration(h.Timeout) * time.Second
}

// HooksConfig groups hook commands by lifecycle phase
type HooksConfig struct {
	PreCreate  []HookCommand `toml:"pre_create,omitempty" yaml:"pre_create,omitempty"`
	PostCreate []HookCommand `toml:"post_create,omitempty" yaml:"post_create,omitempty"`
	PreRemove  []HookCommand `toml:"pre_remove,omitempty" yaml:"pre_remove,omitempty"`
	PostRemove []HookCommand `toml:"post_remove,omitempty" yaml:"post_remove,omitempty"`
}

// LockConfig configures the registry lock
type LockConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// JournalConfig configures the operation journal
type JournalConfig struct {
	Enabled *bool  `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	Path    string `toml:"path,omitempty" yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host string `toml:"host,omitempty" yaml:"host,omitempty"`
	Port int    `toml:"port,omitempty" yaml:"port,omitempty"`
}

// Settings is the effective configuration: the global file overlaid by the
// project file
type Settings struct {
	WorktreeBase string        `toml:"worktree_base,omitempty" yaml:"worktree_base,omitempty"`
	BranchPrefix string        `toml:"branch_prefix,omitempty" yaml:"branch_prefix,omitempty"`
	Files        []FileMapping `toml:"files,omitempty" yaml:"files,omitempty"`
	Hooks        HooksConfig   `toml:"hooks,omitempty" yaml:"hooks,omitempty"`
	Lock         LockConfig    `toml:"lock,omitempty" yaml:"lock,omitempty"`
	Journal      JournalConfig `toml:"journal,omitempty" yaml:"journal,omitempty"`
	Server       ServerConfig  `toml:"server,omitempty" yaml:"server,omitempty"`
}

// LockTimeout returns the registry lock timeout
func (s *Settings) LockTimeout() time.Duration {
	if s.Lock.TimeoutSeconds <= 0 {
		return constants.DefaultLockTimeout
	}
	return time.Duration(s.Lock.TimeoutSeconds) * time.Second
}

// JournalEnabled reports whether operations are recorded in the journal
func (s *Settings) JournalEnabled() bool {
	return s.Journal.Enabled == nil || *s.Journal.Enabled
}

// Manager handles configuration loading and validation
type Manager struct {
	Settings    *Settings
	ProjectPath string // empty when no project file was found
	GlobalPath  string
}

// New creates a new configuration manager holding defaults
func New() *Manager {
	s := &Settings{}
	applyDefaults(s)
	return &Manager{Settings: s}
}

// Load reads the global configuration and overlays the first project
// configuration found walking up from startDir. An explicit path skips the
// search and must exist.
func (m *Manager) Load(startDir, explicitPath string) error {
	settings := &Settings{}

	globalPath, err := GlobalConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	m.GlobalPath = globalPath
	if _, err := os.Stat(globalPath); err == nil {
		if err := decodeFile(globalPath, settings); err != nil {
			return err
		}
	}

	projectPath := explicitPath
	if projectPath != "" {
		if _, err := os.Stat(projectPath); err != nil {
			return errors.ConfigNotFound(projectPath)
		}
	} else {
		projectPath = FindProjectConfigPath(startDir)
	}

	if projectPath != "" {
		project := &Settings{}
		if err := decodeFile(projectPath, project); err != nil {
			return err
		}
		settings = Merge(settings, project)
		if abs, err := filepath.Abs(projectPath); err == nil {
			projectPath = abs
		}
	}
	m.ProjectPath = projectPath

	applyDefaults(settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	m.Settings = settings
	return nil
}

// FindProjectConfigPath walks from startDir to the filesystem root and
// returns the first project configuration file found. When startDir is
// inside a linked worktree the main checkout is searched as well, so
// environments pick up the configuration of the project they came from.
func FindProjectConfigPath(startDir string) string {
	current, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		for _, name := range ProjectConfigNames {
			candidate := filepath.Join(current, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}

		if mainRepo := mainCheckoutFromWorktree(current); mainRepo != "" && mainRepo != current {
			if found := FindProjectConfigPath(mainRepo); found != "" {
				return found
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// mainCheckoutFromWorktree returns the main checkout path if dir is the root
// of a linked worktree, whose .git is a file pointing into
// <main>/.git/worktrees/<name>.
func mainCheckoutFromWorktree(dir string) string {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Stat(gitPath)
	if err != nil || info.IsDir() {
		return ""
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return ""
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return ""
	}
	gitDir := filepath.ToSlash(strings.TrimPrefix(line, "gitdir: "))

	parts := strings.Split(gitDir, "/worktrees/")
	if len(parts) < 2 {
		return ""
	}
	return filepath.Dir(filepath.FromSlash(parts[0]))
}

// Merge overlays project on global: every field the project sets wins,
// and each list (files, each hook phase) is taken whole from whichever
// side declares it.
func Merge(global, project *Settings) *Settings {
	out := *global
	if project.WorktreeBase != "" {
		out.WorktreeBase = project.WorktreeBase
	}
	if project.BranchPrefix != "" {
		out.BranchPrefix = project.BranchPrefix
	}
	if len(project.Files) > 0 {
		out.Files = project.Files
	}
	if len(project.Hooks.PreCreate) > 0 {
		out.Hooks.PreCreate = project.Hooks.PreCreate
	}
	if len(project.Hooks.PostCreate) > 0 {
		out.Hooks.PostCreate = project.Hooks.PostCreate
	}
	if len(project.Hooks.PreRemove) > 0 {
		out.Hooks.PreRemove = project.Hooks.PreRemove
	}
	if len(project.Hooks.PostRemove) > 0 {
		out.Hooks.PostRemove = project.Hooks.PostRemove
	}
	if project.Lock.TimeoutSeconds != 0 {
		out.Lock.TimeoutSeconds = project.Lock.TimeoutSeconds
	}
	if project.Journal.Enabled != nil {
		out.Journal.Enabled = project.Journal.Enabled
	}
	if project.Journal.Path != "" {
		out.Journal.Path = project.Journal.Path
	}
	if project.Server.Host != "" {
		out.Server.Host = project.Server.Host
	}
	if project.Server.Port != 0 {
		out.Server.Port = project.Server.Port
	}
	return &out
}

func decodeFile(path string, into *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := yaml.Unmarshal(data, into); err != nil {
			return errors.ConfigParseError(path, err)
		}
	default:
		if err := toml.Unmarshal(data, into); err != nil {
			return errors.ConfigParseError(path, err)
		}
	}
	return nil
}

// applyDefaults applies default values to configuration
func applyDefaults(s *Settings) {
	if s.WorktreeBase == "" {
		s.WorktreeBase = constants.DefaultWorktreeBase
	}
	if s.BranchPrefix == "" {
		s.BranchPrefix = constants.DefaultBranchPrefix
	}
	s.BranchPrefix = strings.TrimSuffix(s.BranchPrefix, "/")
	for i := range s.Files {
		if s.Files[i].MappingType == "" {
			s.Files[i].MappingType = MappingSymlink
		}
	}
	if s.Server.Host == "" {
		s.Server.Host = constants.DefaultServerHost
	}
	if s.Server.Port == 0 {
		s.Server.Port = constants.DefaultServerPort
	}
}

// Validate validates the configuration
func (s *Settings) Validate() error {
	if err := validation.BranchName(s.BranchPrefix + "/x"); err != nil {
		return errors.ConfigValidationError("branch_prefix", err.Error())
	}

	for i, f := range s.Files {
		if _, err := validation.RelativePath(f.Path); err != nil {
			return errors.ConfigValidationError(fmt.Sprintf("files[%d].path", i), err.Error())
		}
		if f.MappingType != MappingSymlink && f.MappingType != MappingCopy {
			return errors.ConfigValidationError(fmt.Sprintf("files[%d].mapping_type", i),
				fmt.Sprintf("must be %q or %q, got %q", MappingSymlink, MappingCopy, f.MappingType))
		}
	}

	phases := map[string][]HookCommand{
		"pre_create":  s.Hooks.PreCreate,
		"post_create": s.Hooks.PostCreate,
		"pre_remove":  s.Hooks.PreRemove,
		"post_remove": s.Hooks.PostRemove,
	}
	for phase, hooks := range phases {
		for i, h := range hooks {
			field := fmt.Sprintf("hooks.%s[%d]", phase, i)
			if err := validation.NonEmptyString(h.Command); err != nil {
				return errors.ConfigValidationError(field+".command", "cannot be empty")
			}
			if h.Timeout < 0 {
				return errors.ConfigValidationError(field+".timeout", "cannot be negative")
			}
			for k := range h.Env {
				if err := validation.EnvVarKey(k); err != nil {
					return errors.ConfigValidationError(field+".env", err.Error())
				}
			}
		}
	}

	if s.Lock.TimeoutSeconds < 0 {
		return errors.ConfigValidationError("lock.timeout_seconds", "cannot be negative")
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return errors.ConfigValidationError("server.port", "must be between 1 and 65535")
	}

	return nil
}

// Marshal renders the settings in the given format ("toml" or "yaml")
func (s *Settings) Marshal(format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(s)
	case "toml", "":
		return toml.Marshal(s)
	default:
		return nil, errors.InvalidInput(format, "toml or yaml")
	}
}

// Example returns the configuration written by InitProjectConfig
func Example() *Settings {
	return &Settings{
		WorktreeBase: constants.DefaultWorktreeBase,
		BranchPrefix: constants.DefaultBranchPrefix,
		Files: []FileMapping{
			{Path: ".env", MappingType: MappingSymlink, Description: "Shared environment variables"},
			{Path: ".env.local", MappingType: MappingCopy, Description: "Per-environment overrides"},
			{Path: ".vscode/settings.local.json", MappingType: MappingSymlink, Description: "Local editor settings", SkipIfExists: true},
		},
		Hooks: HooksConfig{
			PostCreate: []HookCommand{
				{Command: "echo", Args: []string{"Setting up {agent_name} on {branch}"}, Timeout: 60},
			},
			PreRemove: []HookCommand{
				{Command: "echo", Args: []string{"Cleaning up {agent_name}"}, Timeout: 60, ContinueOnError: true},
			},
		},
	}
}

// InitProjectConfig writes an example project configuration to path. The
// format follows the file extension.
func InitProjectConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewWithDetails(errors.ErrInvalidInput, "Config file already exists",
			fmt.Sprintf("%s (use --force to overwrite)", path))
	}

	format := "toml"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		format = "yaml"
	}

	data, err := Example().Marshal(format)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return os.WriteFile(path, data, constants.FilePermissions)
}
