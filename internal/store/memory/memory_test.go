package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/jobboard-client/internal/model"
)

func TestStore_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, model.ScopeDurable, model.KeyToken, "durable"))
	require.NoError(t, s.Set(ctx, model.ScopeEphemeral, model.KeyToken, "ephemeral"))

	v, ok, err := s.Get(ctx, model.ScopeDurable, model.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "durable", v)

	v, ok, err = s.Get(ctx, model.ScopeEphemeral, model.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ephemeral", v)
}

func TestStore_MissingKey(t *testing.T) {
	_, ok, err := New().Get(context.Background(), model.ScopeDurable, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, model.ScopeDurable, "b", "2"))
	require.NoError(t, s.Set(ctx, model.ScopeDurable, "a", "1"))
	require.NoError(t, s.Set(ctx, model.ScopeDurable, "c", "3"))

	keys, err := s.Keys(ctx, model.ScopeDurable)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	require.NoError(t, s.Delete(ctx, model.ScopeDurable, "a", "c", "missing"))
	keys, err = s.Keys(ctx, model.ScopeDurable)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestStore_UnknownScope(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, _, err := s.Get(ctx, model.Scope(9), "k")
	require.ErrorIs(t, err, model.ErrUnknownScope)
	require.ErrorIs(t, s.Set(ctx, model.Scope(9), "k", "v"), model.ErrUnknownScope)
	require.ErrorIs(t, s.Delete(ctx, model.Scope(9), "k"), model.ErrUnknownScope)
	_, err = s.Keys(ctx, model.Scope(9))
	require.ErrorIs(t, err, model.ErrUnknownScope)
}
