package service

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

var (
	ErrSessionExpired    = errors.New("session expired")
	ErrSuperuserPassword = errors.New("superuser passwords can only be set from the command line")
)

type UserWriter interface {
	CreateUser(context.Context, store.Role, string, string) (*store.User, error)
	CreateSuperuser(context.Context, string, string) (*store.User, error)
	UpdateUserRole(context.Context, int64, store.Role) error
	UpdateUserPassword(context.Context, int64, string, *time.Time) error
	DeleteUser(context.Context, int64) error
}

type UserReader interface {
	ReadUserByID(context.Context, int64) (*store.User, error)
	ReadUserByUsername(context.Context, string) (*store.User, error)
	ReadUserBySessionID(context.Context, string) (*store.User, error)
	ListUsers(context.Context) ([]*store.User, error)
	ListSuperusers(context.Context) ([]store.User, error)
}

type AuthSessionWriter interface {
	CreateAuthSession(context.Context, string, int64, time.Time) (*store.AuthSession, error)
	DeleteAuthSessionsByUserID(context.Context, int64) error
}

type UserStore interface {
	UserWriter
	UserReader
	AuthSessionWriter
}

type UserService struct {
	userStore UserStore
	logger    *zap.Logger
}

func NewUserService(s UserStore, logger *zap.Logger) *UserService {
	return &UserService{userStore: s, logger: logger}
}

// ConfigUsername is the name config authorization checks are made against.
func ConfigUsername(u *store.User) cruise.Username {
	if u == nil {
		return cruise.Anonymous
	}
	return cruise.NewUsername(u.Username)
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (*store.User, error) {
	return s.userStore.ReadUserByID(ctx, userID)
}

func (s *UserService) GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	u, err := s.userStore.ReadUserBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !u.SessionActive(time.Now().UTC()) {
		return nil, ErrSessionExpired
	}
	return u, nil
}

func (s *UserService) CreateAuthSession(ctx context.Context, userID int64) (*store.AuthSession, error) {
	sessionID, err := generateRandomSessionID()
	if err != nil {
		return nil, err
	}
	return s.userStore.CreateAuthSession(
		ctx,
		sessionID,
		userID,
		time.Now().UTC().Add(settings.Settings.SessionExpires),
	)
}

func (s *UserService) EndAuthSessions(ctx context.Context, userID int64) error {
	return s.userStore.DeleteAuthSessionsByUserID(ctx, userID)
}

func generateRandomSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *UserService) GetUserByUsernameAndPassword(ctx context.Context, username, password string) (*store.User, error) {
	u, err := s.userStore.ReadUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) CreateUser(ctx context.Context, role store.Role, username, password string) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := s.userStore.CreateUser(ctx, role, username, string(hash))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("username", username), zap.String("role", role.ToString()))
	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*store.User, error) {
	return s.userStore.ListUsers(ctx)
}

func (s *UserService) ChangeUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.userStore.ReadUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperuser() {
		return ErrSuperuserPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return err
	}
	return s.setPassword(ctx, u, newPassword, util.AsPtr(time.Now().UTC()))
}

// ResetUserPassword sets a new password the user has to change on next
// sign in.
func (s *UserService) ResetUserPassword(ctx context.Context, userID int64, newPassword string) error {
	u, err := s.userStore.ReadUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperuser() {
		return ErrSuperuserPassword
	}
	return s.setPassword(ctx, u, newPassword, nil)
}

func (s *UserService) setPassword(ctx context.Context, u *store.User, password string, changedOn *time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.PasswordChangedOn = changedOn
	return s.userStore.UpdateUserPassword(ctx, u.UserID, u.PasswordHash, u.PasswordChangedOn)
}

func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	return s.userStore.DeleteUser(ctx, userID)
}

func (s *UserService) UpdateUserRole(ctx context.Context, userID int64, role store.Role) error {
	return s.userStore.UpdateUserRole(ctx, userID, role)
}

// InitializeSuperuser prompts for the first superuser when none exists.
func (s *UserService) InitializeSuperuser(ctx context.Context, in io.Reader, out io.Writer) error {
	users, err := s.userStore.ListSuperusers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	fmt.Fprintln(out, "Create a superuser")
	fmt.Fprint(out, "Username: ")
	reader := bufio.NewReader(in)
	username, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username is required")
	}
	fmt.Fprint(out, "Password: ")
	password, err := readPassword(in, reader)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := s.userStore.CreateSuperuser(ctx, username, string(hash)); err != nil {
		return err
	}
	s.logger.Info("superuser created", zap.String("username", username))
	return nil
}

// readPassword reads without echo when in is a terminal and reads a plain
// line otherwise.
func readPassword(in io.Reader, reader *bufio.Reader) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return term.ReadPassword(int(f.Fd()))
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}
