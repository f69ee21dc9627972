package commands

import (
	"fmt"

	"twin/internal/errors"
	"twin/internal/logger"
)

// tips are shown under an error, keyed by its code
var tips = map[errors.ErrorCode]string{
	errors.ErrRollback: "Some changes could not be undone. Inspect them with 'twin history list' " +
		"and 'twin worktrees', then clean up by hand.",
	errors.ErrEnvironmentNotFound:      "Use 'twin list' to see available environments.",
	errors.ErrEnvironmentAlreadyExists: "Pick another name or remove it first with 'twin remove <name>'.",
	errors.ErrLock:                     "Another twin command is running for this repository. Retry when it finishes.",
	errors.ErrHook:                     "Check the hook commands in your twin.toml. Hooks can be made optional with continue_on_error = true.",
	errors.ErrLink:                     "Run 'twin validate' to re-check links, or switch the mapping to mapping_type = \"copy\".",
	errors.ErrVcsOperation:             "Ensure git is installed and that you are inside a git repository.",
	errors.ErrConfigNotFound:           "Create a configuration with 'twin config init'.",
	errors.ErrConfigParse:              "Fix the syntax of the configuration file shown above.",
	errors.ErrConfigValidation:         "Run 'twin config show' to see the effective configuration.",
	errors.ErrPersistence:              "Check that the repository's .git directory is writable.",
}

// tipOrder decides which tip wins when a wrapped error carries several codes
var tipOrder = []errors.ErrorCode{
	errors.ErrRollback,
	errors.ErrLock,
	errors.ErrEnvironmentAlreadyExists,
	errors.ErrEnvironmentNotFound,
	errors.ErrHook,
	errors.ErrLink,
	errors.ErrPersistence,
	errors.ErrConfigNotFound,
	errors.ErrConfigParse,
	errors.ErrConfigValidation,
	errors.ErrVcsOperation,
}

// Tip returns the operator hint for err, or "" when there is none
func Tip(err error) string {
	for _, code := range tipOrder {
		if errors.HasCode(err, code) {
			return tips[code]
		}
	}
	return ""
}

// HandleError processes errors and provides user-friendly output
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	logger.WithError(err).WithField("code", errors.GetCode(err)).Debug("Command failed")

	if tip := Tip(err); tip != "" {
		return fmt.Errorf("%w\n\nTip: %s", err, tip)
	}
	return err
}
