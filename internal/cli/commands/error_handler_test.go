package commands

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"twin/internal/errors"
)

func TestTip(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", errors.EnvironmentNotFound("x"), "twin list"},
		{"exists", errors.EnvironmentAlreadyExists("x"), "twin remove"},
		{"lock", errors.Lock("/tmp/reg.lock", nil), "Another twin command"},
		{"wrapped hook", fmt.Errorf("create: %w", errors.Hook("post_create", "make", 2, false, "")), "continue_on_error"},
		{"incomplete rollback wins", errors.Rollback(errors.Hook("post_create", "make", 2, false, ""), []string{"delete branch x"}), "could not be undone"},
		{"plain error", stderrors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				assert.Empty(t, Tip(tt.err))
				return
			}
			assert.Contains(t, Tip(tt.err), tt.want)
		})
	}
}

func TestHandleError(t *testing.T) {
	assert.NoError(t, HandleError(nil))

	plain := stderrors.New("boom")
	assert.Equal(t, plain, HandleError(plain))

	err := HandleError(errors.Lock("/tmp/reg.lock", nil))
	assert.Contains(t, err.Error(), "\n\nTip: ")
	assert.True(t, errors.HasCode(err, errors.ErrLock))
}
