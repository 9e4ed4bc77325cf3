package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

const testUserPassword string = "testpassword"

func TestUserService_GetUserByID(t *testing.T) {
	t.Run("success - user is found", func(t *testing.T) {
		// arrange
		expectedUser := generateUser(store.Operator, nil, nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", context.Background(), expectedUser.UserID).Return(expectedUser, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		user, err := userService.GetUserByID(context.Background(), expectedUser.UserID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expectedUser.UserID, user.UserID)
		assert.Equal(t, expectedUser.Username, user.Username)
	})
}

func TestUserService_GetUserByUsernameAndPassword(t *testing.T) {
	t.Run("success - user is found", func(t *testing.T) {
		// arrange
		expectedUser := generateUser(store.Operator, nil, nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByUsername", context.Background(), expectedUser.Username).Return(expectedUser, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		user, err := userService.GetUserByUsernameAndPassword(
			context.Background(), expectedUser.Username, testUserPassword,
		)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expectedUser.UserID, user.UserID)
	})
	t.Run("failure - password and hash mismatch", func(t *testing.T) {
		// arrange
		expectedUser := generateUser(store.Operator, nil, nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByUsername", context.Background(), expectedUser.Username).Return(expectedUser, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		user, err := userService.GetUserByUsernameAndPassword(
			context.Background(), expectedUser.Username, "wrong",
		)

		// assert
		assert.ErrorIs(t, err, bcrypt.ErrMismatchedHashAndPassword)
		assert.Nil(t, user)
	})
}

func TestUserService_GetUserBySessionID(t *testing.T) {
	t.Run("success - user is found", func(t *testing.T) {
		// arrange
		expectedUser := generateUser(store.Operator, nil, util.AsPtr(time.Now().UTC().Add(30*time.Second)))
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserBySessionID", context.Background(), "sessionid").Return(expectedUser, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		user, err := userService.GetUserBySessionID(context.Background(), "sessionid")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expectedUser.UserID, user.UserID)
	})
	t.Run("failure - session has expired", func(t *testing.T) {
		// arrange
		expectedUser := generateUser(store.Operator, nil, util.AsPtr(time.Now().UTC().Add(-time.Minute)))
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserBySessionID", context.Background(), "sessionid").Return(expectedUser, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		user, err := userService.GetUserBySessionID(context.Background(), "sessionid")

		// assert
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Nil(t, user)
	})
}

func TestUserService_CreateAuthSession(t *testing.T) {
	t.Run("success - session is created", func(t *testing.T) {
		// arrange
		settings.Settings = settings.NewSettings()
		mockStore := new(MockUserStore)
		mockStore.On("CreateAuthSession", context.Background(), mock.AnythingOfType("string"), int64(3), mock.AnythingOfType("time.Time")).
			Return(&store.AuthSession{AuthSessionID: "abc", AuthSessionUserID: 3}, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		session, err := userService.CreateAuthSession(context.Background(), 3)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, int64(3), session.AuthSessionUserID)
		mockStore.AssertExpectations(t)
	})
}

func TestUserService_CreateUser(t *testing.T) {
	t.Run("success - user is created", func(t *testing.T) {
		// arrange
		mockStore := new(MockUserStore)
		mockStore.On("CreateUser", context.Background(), store.Admin, "alice").
			Return(&store.User{UserID: 1, Username: "alice", UserRoleID: store.Admin}, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		u, err := userService.CreateUser(context.Background(), store.Admin, "alice", "secret")

		// assert
		assert.NoError(t, err)
		assert.True(t, u.IsAdmin())
	})
}

func TestUserService_ChangeUserPassword(t *testing.T) {
	t.Run("success - password is changed", func(t *testing.T) {
		// arrange
		u := generateUser(store.Operator, nil, nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", context.Background(), u.UserID).Return(u, nil)
		mockStore.On("UpdateUserPassword", context.Background(), u.UserID, mock.AnythingOfType("string"), mock.AnythingOfType("*time.Time")).
			Return(nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		err := userService.ChangeUserPassword(context.Background(), u.UserID, testUserPassword, "newpassword")

		// assert
		assert.NoError(t, err)
		assert.NotNil(t, u.PasswordChangedOn)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("newpassword")))
	})
	t.Run("failure - superuser password", func(t *testing.T) {
		// arrange
		u := generateUser(store.Superuser, nil, nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", context.Background(), u.UserID).Return(u, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		err := userService.ChangeUserPassword(context.Background(), u.UserID, testUserPassword, "newpassword")

		// assert
		assert.ErrorIs(t, err, ErrSuperuserPassword)
		mockStore.AssertNotCalled(t, "UpdateUserPassword")
	})
}

func TestUserService_ResetUserPassword(t *testing.T) {
	t.Run("success - password must be changed on next sign in", func(t *testing.T) {
		// arrange
		u := generateUser(store.Operator, util.AsPtr(time.Now().UTC()), nil)
		mockStore := new(MockUserStore)
		mockStore.On("ReadUserByID", context.Background(), u.UserID).Return(u, nil)
		mockStore.On("UpdateUserPassword", context.Background(), u.UserID, mock.AnythingOfType("string"), (*time.Time)(nil)).
			Return(nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		err := userService.ResetUserPassword(context.Background(), u.UserID, "reset")

		// assert
		assert.NoError(t, err)
		assert.Nil(t, u.PasswordChangedOn)
	})
}

func TestUserService_InitializeSuperuser(t *testing.T) {
	t.Run("success - superuser is created from input", func(t *testing.T) {
		// arrange
		mockStore := new(MockUserStore)
		mockStore.On("ListSuperusers", context.Background()).Return([]store.User{}, nil)
		mockStore.On("CreateSuperuser", context.Background(), "root", mock.AnythingOfType("string")).
			Return(&store.User{UserID: 1, Username: "root", UserRoleID: store.Superuser}, nil)
		userService := NewUserService(mockStore, zap.NewNop())
		out := new(bytes.Buffer)

		// act
		err := userService.InitializeSuperuser(context.Background(), strings.NewReader("root\nsecret\n"), out)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, out.String(), "Create a superuser")
		mockStore.AssertExpectations(t)
	})
	t.Run("success - nothing to do when a superuser exists", func(t *testing.T) {
		// arrange
		mockStore := new(MockUserStore)
		mockStore.On("ListSuperusers", context.Background()).
			Return([]store.User{*generateUser(store.Superuser, nil, nil)}, nil)
		userService := NewUserService(mockStore, zap.NewNop())

		// act
		err := userService.InitializeSuperuser(context.Background(), strings.NewReader(""), new(bytes.Buffer))

		// assert
		assert.NoError(t, err)
		mockStore.AssertNotCalled(t, "CreateSuperuser")
	})
}

func TestConfigUsername(t *testing.T) {
	assert.Equal(t, cruise.Anonymous, ConfigUsername(nil))
	assert.Equal(t, cruise.NewUsername("bob"), ConfigUsername(&store.User{Username: "bob"}))
}

func generateUser(role store.Role, passwordChangedOn *time.Time, sessionExpires *time.Time) *store.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(testUserPassword), bcrypt.MinCost)
	user := &store.User{
		UserID:            rand.Int63(),
		UserRoleID:        role,
		Username:          fmt.Sprintf("testuser%d", time.Now().UnixNano()),
		PasswordHash:      string(hash),
		PasswordChangedOn: passwordChangedOn,
	}
	if sessionExpires != nil {
		user.SessionExpires = sql.NullTime{Valid: true, Time: *sessionExpires}
	}
	return user
}
