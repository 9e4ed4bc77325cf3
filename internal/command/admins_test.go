package command

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatos/simple-cd/internal/cruise"
)

func TestAdminsUpdateCommand(t *testing.T) {
	t.Run("success - admins replaced", func(t *testing.T) {
		// arrange
		c := testConfig()
		admins := &cruise.AdminsConfig{Users: []string{"carol"}, Roles: []string{"admins"}}
		cmd := NewAdminsUpdateCommand(base(alice, digestOf(t, &c.Server.Security.Admins)), admins)

		// act
		preprocessed, ok := run(t, cmd, c)

		// assert
		require.True(t, ok, cmd.Result.Message())
		assert.True(t, preprocessed.IsAdministrator(carol))
		assert.False(t, preprocessed.IsAdministrator(bob))
	})
	t.Run("failure - unknown role", func(t *testing.T) {
		// arrange
		c := testConfig()
		admins := &cruise.AdminsConfig{Roles: []string{"admins", "ops"}}
		cmd := NewAdminsUpdateCommand(base(alice, digestOf(t, &c.Server.Security.Admins)), admins)

		// act
		_, ok := run(t, cmd, c)

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, cmd.Result.Status())
		assert.Equal(t, []string{`Role "ops" does not exist.`}, admins.Errors().On("roles"))
	})
	t.Run("failure - stale admins", func(t *testing.T) {
		// arrange
		cmd := NewAdminsUpdateCommand(base(alice, "outdated"), &cruise.AdminsConfig{Users: []string{"alice"}})

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusPreconditionFailed, cmd.Result.Status())
		assert.Equal(t, staleMessage(kindAdmins, "admins"), cmd.Result.Message())
	})
	t.Run("failure - user is not an admin", func(t *testing.T) {
		// arrange
		cmd := NewAdminsUpdateCommand(base(bob, ""), &cruise.AdminsConfig{Users: []string{"bob"}})

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusForbidden, cmd.Result.Status())
	})
}
