package testutil

import (
	"context"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockAccessTokenService struct {
	mock.Mock
}

func (m *MockAccessTokenService) CreateAccessToken(
	ctx context.Context,
	userID int64,
	description string,
) (*store.AccessToken, string, error) {
	args := m.Called(ctx, userID, description)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*store.AccessToken), args.String(1), args.Error(2)
}

func (m *MockAccessTokenService) Authenticate(ctx context.Context, value string) (*store.AccessToken, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.AccessToken), args.Error(1)
}

func (m *MockAccessTokenService) RevokeAccessToken(ctx context.Context, userID, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockAccessTokenService) ListAccessTokens(ctx context.Context, userID int64) ([]*store.AccessToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.AccessToken), args.Error(1)
}
