package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/jobboard-client/internal/model"
)

func TestStore_DurableSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile", "state.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, model.ScopeDurable, model.KeyToken, "tok"))
	require.NoError(t, s.Set(ctx, model.ScopeEphemeral, model.KeyTicket, "ticket"))

	reopened, err := New(path)
	require.NoError(t, err)

	v, ok, err := reopened.Get(ctx, model.ScopeDurable, model.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	_, ok, err = reopened.Get(ctx, model.ScopeEphemeral, model.KeyTicket)
	require.NoError(t, err)
	assert.False(t, ok, "ephemeral values must not outlive the process")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_SharedFileLastWriteWins(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	tabA, err := New(path)
	require.NoError(t, err)
	tabB, err := New(path)
	require.NoError(t, err)

	require.NoError(t, tabA.Set(ctx, model.ScopeDurable, model.KeyLoginAttempts, "1"))
	require.NoError(t, tabB.Set(ctx, model.ScopeDurable, model.KeyLoginAttempts, "3"))

	v, _, err := tabA.Get(ctx, model.ScopeDurable, model.KeyLoginAttempts)
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	keys, err := s.Keys(ctx, model.ScopeDurable)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Set(ctx, model.ScopeDurable, model.KeyToken, "tok"))
	require.NoError(t, s.Set(ctx, model.ScopeDurable, model.KeyDeviceID, "dev"))
	require.NoError(t, s.Delete(ctx, model.ScopeDurable, model.KeyToken))

	keys, err = s.Keys(ctx, model.ScopeDurable)
	require.NoError(t, err)
	assert.Equal(t, []string{model.KeyDeviceID}, keys)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := New(path)
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), model.ScopeDurable, model.KeyToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode state file")
}
