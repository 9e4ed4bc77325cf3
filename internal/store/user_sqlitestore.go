package store

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type UserSQLiteStore struct {
	rdb  *sql.DB
	rwdb *sql.DB
	now  func() time.Time
}

func NewUserSQLiteStore(rdb, rwdb *sql.DB) *UserSQLiteStore {
	return &UserSQLiteStore{rdb: rdb, rwdb: rwdb, now: time.Now}
}

func userSelect() sq.SelectBuilder {
	return psql.Select(
		"user_id",
		"user_role_id",
		"username",
		"password_hash",
		"password_changed_on",
	).From("users")
}

func (store *UserSQLiteStore) insertUser(ctx context.Context, user *User) error {
	insert := psql.Insert("users").
		Columns("user_role_id", "username", "password_hash", "password_changed_on").
		Values(user.UserRoleID, user.Username, user.PasswordHash, user.PasswordChangedOn).
		Suffix("returning user_id")
	return getOne(ctx, store.rwdb, &user.UserID, insert)
}

func (store *UserSQLiteStore) CreateUser(
	ctx context.Context,
	role Role,
	username string,
	passwordHash string,
) (*User, error) {
	user := &User{UserRoleID: role, Username: username, PasswordHash: passwordHash}
	if err := store.insertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSuperuser stores a superuser whose password counts as changed,
// so it is never prompted for a reset.
func (store *UserSQLiteStore) CreateSuperuser(
	ctx context.Context,
	username string,
	passwordHash string,
) (*User, error) {
	changed := store.now().UTC()
	user := &User{
		UserRoleID:        Superuser,
		Username:          username,
		PasswordHash:      passwordHash,
		PasswordChangedOn: &changed,
	}
	if err := store.insertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (store *UserSQLiteStore) ReadUserByID(ctx context.Context, userID int64) (*User, error) {
	user := &User{}
	if err := getOne(ctx, store.rdb, user, userSelect().Where(sq.Eq{"user_id": userID})); err != nil {
		return nil, notFound(err, "user", userID)
	}
	return user, nil
}

func (store *UserSQLiteStore) ReadUserByUsername(ctx context.Context, username string) (*User, error) {
	user := &User{}
	if err := getOne(ctx, store.rdb, user, userSelect().Where(sq.Eq{"username": username})); err != nil {
		return nil, notFound(err, "user", username)
	}
	return user, nil
}

// ReadUserBySessionID returns the session's user with the session expiry
// set. Expiry is checked by the caller.
func (store *UserSQLiteStore) ReadUserBySessionID(ctx context.Context, sessionID string) (*User, error) {
	user := &User{}
	query := psql.Select(
		"u.user_id",
		"u.user_role_id",
		"u.username",
		"u.password_hash",
		"u.password_changed_on",
		"s.auth_session_expires as session_expires",
	).
		From("users u").
		Join("auth_sessions s on u.user_id = s.auth_session_user_id").
		Where(sq.Eq{"s.auth_session_id": sessionID}).
		OrderBy("s.auth_session_expires desc").
		Limit(1)
	if err := getOne(ctx, store.rdb, user, query); err != nil {
		return nil, notFound(err, "session", sessionID)
	}
	return user, nil
}

func (store *UserSQLiteStore) DeleteUser(ctx context.Context, userID int64) error {
	_, err := execOne(ctx, store.rwdb, psql.Delete("users").Where(sq.Eq{"user_id": userID}))
	return err
}

func (store *UserSQLiteStore) UpdateUserRole(ctx context.Context, userID int64, role Role) error {
	update := psql.Update("users").Set("user_role_id", role).Where(sq.Eq{"user_id": userID})
	_, err := execOne(ctx, store.rwdb, update)
	return err
}

func (store *UserSQLiteStore) UpdateUserPassword(
	ctx context.Context,
	userID int64,
	passwordHash string,
	changedOn *time.Time,
) error {
	update := psql.Update("users").
		Set("password_hash", passwordHash).
		Set("password_changed_on", changedOn).
		Where(sq.Eq{"user_id": userID})
	_, err := execOne(ctx, store.rwdb, update)
	return err
}

func (store *UserSQLiteStore) CreateAuthSession(
	ctx context.Context,
	authSessionID string,
	userID int64,
	expires time.Time,
) (*AuthSession, error) {
	as := &AuthSession{
		AuthSessionID:      authSessionID,
		AuthSessionUserID:  userID,
		AuthSessionExpires: expires,
	}
	insert := psql.Insert("auth_sessions").
		Columns("auth_session_id", "auth_session_user_id", "auth_session_expires").
		Values(as.AuthSessionID, as.AuthSessionUserID, as.AuthSessionExpires)
	if _, err := execOne(ctx, store.rwdb, insert); err != nil {
		return nil, err
	}
	return as, nil
}

func (store *UserSQLiteStore) DeleteAuthSessionsByUserID(ctx context.Context, userID int64) error {
	_, err := execOne(ctx, store.rwdb, psql.Delete("auth_sessions").Where(sq.Eq{"auth_session_user_id": userID}))
	return err
}

// DeleteExpiredAuthSessions removes sessions that expired before now and
// returns how many were removed.
func (store *UserSQLiteStore) DeleteExpiredAuthSessions(ctx context.Context) (int64, error) {
	res, err := execOne(ctx, store.rwdb,
		psql.Delete("auth_sessions").Where(sq.Lt{"auth_session_expires": store.now().UTC()}))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScheduleDailyCleanUp removes expired sessions every midnight.
func (store *UserSQLiteStore) ScheduleDailyCleanUp(s gocron.Scheduler, logger *zap.Logger) error {
	_, err := s.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(func() {
			n, err := store.DeleteExpiredAuthSessions(context.Background())
			if err != nil {
				logger.Error("deleting expired auth sessions", zap.Error(err))
				return
			}
			logger.Info("expired auth sessions deleted", zap.Int64("count", n))
		}),
		gocron.WithName("auth-session-cleanup"),
	)
	return err
}

func (store *UserSQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)
	err := selectAll(ctx, store.rdb, &users, userSelect().OrderBy("username"))
	return users, err
}

func (store *UserSQLiteStore) ListSuperusers(ctx context.Context) ([]User, error) {
	users := make([]User, 0)
	err := selectAll(ctx, store.rdb, &users, userSelect().Where(sq.Eq{"user_role_id": Superuser}))
	return users, err
}
