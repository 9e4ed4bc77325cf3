package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type AccessTokenSQLiteStore struct {
	rdb, rwdb *sql.DB
	now       func() time.Time
}

func NewAccessTokenSQLiteStore(rdb, rwdb *sql.DB) *AccessTokenSQLiteStore {
	return &AccessTokenSQLiteStore{rdb: rdb, rwdb: rwdb, now: time.Now}
}

func accessTokenSelect() sq.SelectBuilder {
	return psql.Select(
		"id",
		"user_id",
		"description",
		"token_hash",
		"created_on",
		"last_used_on",
		"revoked_on",
	).From("access_tokens")
}

func (store *AccessTokenSQLiteStore) CreateAccessToken(
	ctx context.Context,
	userID int64,
	description, tokenHash string,
) (*AccessToken, error) {
	token := &AccessToken{UserID: userID, Description: description, TokenHash: tokenHash}
	insert := psql.Insert("access_tokens").
		Columns("user_id", "description", "token_hash").
		Values(userID, description, tokenHash).
		Suffix("returning id, created_on")
	if err := getOne(ctx, store.rwdb, token, insert); err != nil {
		return nil, err
	}
	return token, nil
}

func (store *AccessTokenSQLiteStore) ReadAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	token := &AccessToken{}
	if err := getOne(ctx, store.rdb, token, accessTokenSelect().Where(sq.Eq{"token_hash": tokenHash})); err != nil {
		return nil, notFound(err, "access token", "")
	}
	return token, nil
}

func (store *AccessTokenSQLiteStore) TouchAccessToken(ctx context.Context, id int64) error {
	update := psql.Update("access_tokens").Set("last_used_on", store.now().UTC()).Where(sq.Eq{"id": id})
	_, err := execOne(ctx, store.rwdb, update)
	return err
}

// RevokeAccessToken marks a token of userID revoked. Revoking twice keeps
// the first revocation time.
func (store *AccessTokenSQLiteStore) RevokeAccessToken(ctx context.Context, userID, id int64) error {
	update := psql.Update("access_tokens").
		Set("revoked_on", sq.Expr("coalesce(revoked_on, ?)", store.now().UTC())).
		Where(sq.Eq{"id": id, "user_id": userID})
	res, err := execOne(ctx, store.rwdb, update)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return RecordNotFoundError{Entity: "access token", ID: id}
	}
	return nil
}

func (store *AccessTokenSQLiteStore) ListAccessTokens(ctx context.Context, userID int64) ([]*AccessToken, error) {
	tokens := make([]*AccessToken, 0)
	err := selectAll(ctx, store.rdb, &tokens, accessTokenSelect().Where(sq.Eq{"user_id": userID}).OrderBy("id"))
	return tokens, err
}
