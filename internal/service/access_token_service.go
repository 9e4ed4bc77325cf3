package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"

	"github.com/haatos/simple-cd/internal/store"
)

func NewUUIDGen() *UUIDGen {
	return &UUIDGen{}
}

type UUIDGen struct{}

func (ug *UUIDGen) GenerateUUID() string {
	return uuid.NewString()
}

var ErrAccessTokenRevoked = errors.New("access token has been revoked")

type AccessTokenService struct {
	store         store.AccessTokenStore
	uuidGenerator UUIDGenerator
}

func NewAccessTokenService(s store.AccessTokenStore, uuidGenerator UUIDGenerator) *AccessTokenService {
	return &AccessTokenService{store: s, uuidGenerator: uuidGenerator}
}

// CreateAccessToken issues a token for userID. The returned value is the
// only copy of the token; only its hash is stored.
func (s *AccessTokenService) CreateAccessToken(
	ctx context.Context,
	userID int64,
	description string,
) (*store.AccessToken, string, error) {
	value := s.uuidGenerator.GenerateUUID()
	token, err := s.store.CreateAccessToken(ctx, userID, description, hashToken(value))
	if err != nil {
		return nil, "", err
	}
	return token, value, nil
}

// Authenticate returns the token matching value and records its use.
func (s *AccessTokenService) Authenticate(ctx context.Context, value string) (*store.AccessToken, error) {
	token, err := s.store.ReadAccessTokenByHash(ctx, hashToken(value))
	if err != nil {
		return nil, err
	}
	if token.IsRevoked() {
		return nil, ErrAccessTokenRevoked
	}
	if err := s.store.TouchAccessToken(ctx, token.ID); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *AccessTokenService) RevokeAccessToken(ctx context.Context, userID, id int64) error {
	return s.store.RevokeAccessToken(ctx, userID, id)
}

func (s *AccessTokenService) ListAccessTokens(ctx context.Context, userID int64) ([]*store.AccessToken, error) {
	return s.store.ListAccessTokens(ctx, userID)
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
