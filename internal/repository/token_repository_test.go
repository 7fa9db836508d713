package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTokenRepo(f.db)

	require.NoError(t, repo.StoreRefresh(ctx, f.alice, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, repo.StoreRefresh(ctx, f.alice, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, repo.StoreRefresh(ctx, f.alice, "old", time.Now().Add(-time.Minute)))

	uid, err := repo.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, f.alice, uid)

	_, err = repo.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = repo.ValidateRefresh(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, repo.RevokeByHash(ctx, "h1"))
	assert.ErrorIs(t, repo.RevokeByHash(ctx, "h1"), ErrInvalidToken, "revocation is single-use")
	_, err = repo.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, repo.RevokeAllForUser(ctx, f.alice))
	_, err = repo.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
