package store

import (
	"context"
	"time"
)

// AccessToken authenticates API clients as a user. Only the hash of the
// token value is stored.
type AccessToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	Description string     `json:"description"`
	TokenHash   string     `json:"-"`
	CreatedOn   time.Time  `json:"created_on"`
	LastUsedOn  *time.Time `json:"last_used_on"`
	RevokedOn   *time.Time `json:"revoked_on"`
}

func (t *AccessToken) IsRevoked() bool {
	return t.RevokedOn != nil
}

type AccessTokenStore interface {
	CreateAccessToken(ctx context.Context, userID int64, description, tokenHash string) (*AccessToken, error)
	ReadAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error)
	TouchAccessToken(ctx context.Context, id int64) error
	RevokeAccessToken(ctx context.Context, userID, id int64) error
	ListAccessTokens(ctx context.Context, userID int64) ([]*AccessToken, error)
}
