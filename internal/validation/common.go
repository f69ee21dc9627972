package validation

import (
	"path/filepath"
	"regexp"
	"strings"

	"twin/internal/errors"
)

var (
	// environmentNameRegex validates environment names; they become a
	// directory name and a branch suffix
	environmentNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

	// envVarKeyRegex validates environment variable keys
	envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	// invalidRefChars are characters git refuses in branch names
	invalidRefChars = []string{" ", "~", "^", ":", "?", "*", "[", "\\", "..", "@{"}
)

// EnvironmentName validates an environment name
func EnvironmentName(name string) error {
	if name == "" {
		return errors.InvalidInput(name, "non-empty environment name")
	}

	if len(name) > 100 {
		return errors.InvalidInput(name, "environment name of at most 100 characters")
	}

	if !environmentNameRegex.MatchString(name) {
		return errors.InvalidInput(name, "letters, digits, '.', '_' or '-', starting with a letter or digit")
	}

	if strings.HasSuffix(name, ".lock") {
		return errors.InvalidInput(name, "environment name not ending in .lock")
	}

	return nil
}

// BranchName performs the subset of git check-ref-format rules that can be
// checked without invoking git
func BranchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidInput(name, "non-empty branch name")
	}

	for _, c := range invalidRefChars {
		if strings.Contains(name, c) {
			return errors.InvalidInput(name, "branch name without "+c)
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") ||
		strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") ||
		strings.HasSuffix(name, ".lock") {
		return errors.InvalidInput(name, "a valid git branch name")
	}

	return nil
}

// RelativePath validates and cleans a project-relative path so it cannot
// escape the directory it is joined onto
func RelativePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.InvalidPath(path, "cannot be empty")
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", errors.InvalidPath(path, "must be relative to the project root")
	}

	cleaned := filepath.Clean(path)
	if cleaned == "." {
		return "", errors.InvalidPath(path, "must name a file or directory")
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.InvalidPath(path, "path traversal detected")
	}

	first, _, _ := strings.Cut(filepath.ToSlash(cleaned), "/")
	if strings.EqualFold(first, ".git") {
		return "", errors.InvalidPath(path, "cannot point into git metadata")
	}

	return cleaned, nil
}

// EnvVarKey validates an environment variable key
func EnvVarKey(key string) error {
	if !envVarKeyRegex.MatchString(key) {
		return errors.InvalidInput(key, "letters, numbers and underscores")
	}
	return nil
}

// NonEmptyString validates that a string is not empty or only whitespace
func NonEmptyString(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.InvalidInput(s, "non-empty value")
	}
	return nil
}
