package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenSQLiteStore(t *testing.T) {
	tokenStore := NewAccessTokenSQLiteStore(userStore.rdb, userStore.rwdb)

	t.Run("success - token created and found by hash", func(t *testing.T) {
		// arrange
		u := createUser(t, Operator)

		// act
		token, err := tokenStore.CreateAccessToken(context.Background(), u.UserID, "ci bot", "hash-1")

		// assert
		require.NoError(t, err)
		assert.NotZero(t, token.ID)
		read, err := tokenStore.ReadAccessTokenByHash(context.Background(), "hash-1")
		require.NoError(t, err)
		assert.Equal(t, u.UserID, read.UserID)
		assert.False(t, read.IsRevoked())
		assert.Nil(t, read.LastUsedOn)
	})
	t.Run("success - token touched and revoked", func(t *testing.T) {
		// arrange
		u := createUser(t, Operator)
		token, err := tokenStore.CreateAccessToken(context.Background(), u.UserID, "", "hash-2")
		require.NoError(t, err)

		// act
		touchErr := tokenStore.TouchAccessToken(context.Background(), token.ID)
		revokeErr := tokenStore.RevokeAccessToken(context.Background(), u.UserID, token.ID)

		// assert
		assert.NoError(t, touchErr)
		assert.NoError(t, revokeErr)
		tokens, err := tokenStore.ListAccessTokens(context.Background(), u.UserID)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.NotNil(t, tokens[0].LastUsedOn)
		assert.True(t, tokens[0].IsRevoked())
	})
	t.Run("failure - revoking another user's token", func(t *testing.T) {
		// arrange
		owner := createUser(t, Operator)
		other := createUser(t, Operator)
		token, err := tokenStore.CreateAccessToken(context.Background(), owner.UserID, "", "hash-3")
		require.NoError(t, err)

		// act
		err = tokenStore.RevokeAccessToken(context.Background(), other.UserID, token.ID)

		// assert
		assert.True(t, IsRecordNotFound(err))
	})
	t.Run("failure - unknown hash", func(t *testing.T) {
		// act
		_, err := tokenStore.ReadAccessTokenByHash(context.Background(), "missing")

		// assert
		assert.True(t, IsRecordNotFound(err))
	})
}
