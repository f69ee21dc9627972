package commands_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/db"
	"twin/internal/errors"
)

func TestHistoryCommands(t *testing.T) {
	h := newHarness(t, true, nil)
	h.mustRun(t, "create", "agent-1")
	h.mustRun(t, "create", "agent-2")
	h.mustRun(t, "remove", "agent-1")

	out := h.mustRun(t, "history", "list")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "remove")
	assert.Contains(t, out, "succeeded")

	out = h.mustRun(t, "history", "list", "agent-1", "--format", "json")
	var ops []db.Operation
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 2)
	assert.Equal(t, db.KindRemove, ops[0].Kind)
	assert.Equal(t, db.KindCreate, ops[1].Kind)

	out = h.mustRun(t, "history", "list", "--kind", "create", "--limit", "1", "-f", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, "agent-2", ops[0].Environment)

	out = h.mustRun(t, "history", "show", ops[0].ID)
	assert.Contains(t, out, "Operation:   "+ops[0].ID)
	assert.Contains(t, out, "create worktree")
	assert.Contains(t, out, "register environment")

	_, err := h.run(t, "history", "show", "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrOperationNotFound, errors.GetCode(err))

	_, err = h.run(t, "history", "list", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))
}

func TestHistoryPrune(t *testing.T) {
	h := newHarness(t, true, nil)
	h.mustRun(t, "create", "agent-1")

	out := h.mustRun(t, "history", "prune")
	assert.Equal(t, "Deleted 0 operations\n", out)

	_, err := h.run(t, "history", "prune", "--older-than", "0s")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidInput, errors.GetCode(err))

	count, err := h.ws.Journal.Count(context.Background(), db.HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHistoryWithoutJournal(t *testing.T) {
	h := newHarness(t, false, nil)

	_, err := h.run(t, "history", "list")
	require.Error(t, err)
	assert.Equal(t, errors.ErrConfigValidation, errors.GetCode(err))
}
