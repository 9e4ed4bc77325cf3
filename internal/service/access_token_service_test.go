package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

func TestAccessTokenService_CreateAccessToken(t *testing.T) {
	t.Run("success - only the hash is stored", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockAccessTokenStore)
		mockStore.On("CreateAccessToken", ctx, int64(7), "ci", hashToken("plain")).
			Return(&store.AccessToken{ID: 1, UserID: 7, Description: "ci", TokenHash: hashToken("plain")}, nil)
		mockGen := new(MockUUIDGenerator)
		mockGen.On("GenerateUUID").Return("plain")
		tokenService := NewAccessTokenService(mockStore, mockGen)

		// act
		token, value, err := tokenService.CreateAccessToken(ctx, 7, "ci")

		// assert
		require.NoError(t, err)
		assert.Equal(t, "plain", value)
		assert.NotEqual(t, value, token.TokenHash)
		mockStore.AssertExpectations(t)
	})
}

func TestAccessTokenService_Authenticate(t *testing.T) {
	t.Run("success - token is touched", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockAccessTokenStore)
		mockStore.On("ReadAccessTokenByHash", ctx, hashToken("plain")).Return(&store.AccessToken{ID: 1, UserID: 7}, nil)
		mockStore.On("TouchAccessToken", ctx, int64(1)).Return(nil)
		tokenService := NewAccessTokenService(mockStore, NewUUIDGen())

		// act
		token, err := tokenService.Authenticate(ctx, "plain")

		// assert
		require.NoError(t, err)
		assert.Equal(t, int64(7), token.UserID)
		mockStore.AssertExpectations(t)
	})
	t.Run("failure - revoked token", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockAccessTokenStore)
		mockStore.On("ReadAccessTokenByHash", ctx, hashToken("plain")).
			Return(&store.AccessToken{ID: 1, UserID: 7, RevokedOn: util.AsPtr(time.Now())}, nil)
		tokenService := NewAccessTokenService(mockStore, NewUUIDGen())

		// act
		token, err := tokenService.Authenticate(ctx, "plain")

		// assert
		assert.ErrorIs(t, err, ErrAccessTokenRevoked)
		assert.Nil(t, token)
		mockStore.AssertNotCalled(t, "TouchAccessToken", ctx, int64(1))
	})
	t.Run("failure - unknown token", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockAccessTokenStore)
		mockStore.On("ReadAccessTokenByHash", ctx, hashToken("nope")).
			Return(nil, store.RecordNotFoundError{Entity: "access token"})
		tokenService := NewAccessTokenService(mockStore, NewUUIDGen())

		// act
		_, err := tokenService.Authenticate(ctx, "nope")

		// assert
		assert.True(t, store.IsRecordNotFound(err))
	})
}

func TestUUIDGen(t *testing.T) {
	g := NewUUIDGen()
	assert.NotEqual(t, g.GenerateUUID(), g.GenerateUUID())
	assert.Len(t, g.GenerateUUID(), 36)
}
