package command

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatos/simple-cd/internal/cruise"
)

// remoteEnvironmentPartial associates pipeline "build" with the local
// environment "production" and defines environment "staging" remotely.
func remoteEnvironmentPartial() cruise.PartialConfig {
	return cruise.PartialConfig{
		Origin: "remote",
		Environments: []cruise.EnvironmentConfig{
			{Name: "production", Pipelines: []string{"build"}},
			{Name: "staging"},
		},
	}
}

func TestEnvironmentCreateCommand(t *testing.T) {
	t.Run("success - environment created", func(t *testing.T) {
		// arrange
		env := &cruise.EnvironmentConfig{Name: "qa", Pipelines: []string{"build"}, Origin: "ignored"}
		cmd := NewEnvironmentCreateCommand(base(alice, ""), env)

		// act
		preprocessed, ok := run(t, cmd, testConfig())

		// assert
		require.True(t, ok, cmd.Result.Message())
		created := preprocessed.FindEnvironment("qa")
		require.NotNil(t, created)
		assert.True(t, created.IsLocal())
	})
	t.Run("failure - unknown pipeline", func(t *testing.T) {
		// arrange
		env := &cruise.EnvironmentConfig{Name: "qa", Pipelines: []string{"nope"}}
		cmd := NewEnvironmentCreateCommand(base(alice, ""), env)

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, cmd.Result.Status())
		assert.Equal(t, []string{"Environment 'qa' refers to an unknown pipeline 'nope'."}, env.Errors().On("pipelines"))
	})
	t.Run("failure - environment exists", func(t *testing.T) {
		// arrange
		cmd := NewEnvironmentCreateCommand(base(alice, ""), &cruise.EnvironmentConfig{Name: "Production"})

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, cmd.Result.Status())
	})
}

func TestEnvironmentUpdateCommand(t *testing.T) {
	t.Run("success - remote associations are kept out of the main file", func(t *testing.T) {
		// arrange
		main := testConfig()
		current, err := cruise.Merge(main, []cruise.PartialConfig{remoteEnvironmentPartial()})
		require.NoError(t, err)
		env := &cruise.EnvironmentConfig{Name: "production", Pipelines: []string{"deploy", "build"}}
		cmd := NewEnvironmentUpdateCommand(base(alice, digestOf(t, current.FindEnvironment("production"))), "production", env)

		// act
		preprocessed, ok := run(t, cmd, main, remoteEnvironmentPartial())

		// assert
		require.True(t, ok, cmd.Result.Message())
		updated := preprocessed.FindEnvironment("production")
		assert.ElementsMatch(t, []string{"deploy", "build"}, updated.Pipelines)
		assert.Equal(t, "remote", updated.RemoteOriginOf("build"))
		assert.Empty(t, updated.Agents)
	})
	t.Run("failure - rename", func(t *testing.T) {
		// arrange
		c := testConfig()
		env := &cruise.EnvironmentConfig{Name: "prod"}
		cmd := NewEnvironmentUpdateCommand(base(alice, digestOf(t, &c.Environments[0])), "production", env)

		// act
		_, ok := run(t, cmd, c)

		// assert
		assert.False(t, ok)
		assert.Equal(t, renameMessage(kindEnvironment), cmd.Result.Message())
	})
	t.Run("failure - environment defined remotely", func(t *testing.T) {
		// arrange
		env := &cruise.EnvironmentConfig{Name: "staging"}
		cmd := NewEnvironmentUpdateCommand(base(alice, ""), "staging", env)

		// act
		_, ok := run(t, cmd, testConfig(), remoteEnvironmentPartial())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, cmd.Result.Status())
		assert.Equal(t, "Environment 'staging' is defined remotely in config repo 'remote' and cannot be edited.", cmd.Result.Message())
	})
	t.Run("failure - not found", func(t *testing.T) {
		// arrange
		cmd := NewEnvironmentUpdateCommand(base(alice, ""), "qa", &cruise.EnvironmentConfig{Name: "qa"})

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusNotFound, cmd.Result.Status())
	})
}

func TestEnvironmentPatchCommand(t *testing.T) {
	t.Run("success - patch applied", func(t *testing.T) {
		// arrange
		patch := EnvironmentPatch{
			PipelinesToAdd:    []string{"build", "deploy"},
			AgentsToAdd:       []string{"agent-2"},
			AgentsToRemove:    []string{"agent-1"},
			VariablesToAdd:    []cruise.EnvironmentVariable{{Name: "TIER", Value: "gold"}},
			VariablesToRemove: []string{"REGION"},
		}
		cmd := NewEnvironmentPatchCommand(base(alice, ""), "production", patch)

		// act
		preprocessed, ok := run(t, cmd, testConfig())

		// assert
		require.True(t, ok, cmd.Result.Message())
		env := preprocessed.FindEnvironment("production")
		assert.Equal(t, []string{"deploy", "build"}, env.Pipelines)
		assert.Equal(t, []string{"agent-2"}, env.Agents)
		require.Len(t, env.EnvironmentVariables, 1)
		assert.Equal(t, "TIER", env.EnvironmentVariables[0].Name)
	})
	t.Run("failure - removing a remote association", func(t *testing.T) {
		// arrange
		patch := EnvironmentPatch{PipelinesToRemove: []string{"build"}}
		cmd := NewEnvironmentPatchCommand(base(alice, ""), "production", patch)

		// act
		_, ok := run(t, cmd, testConfig(), remoteEnvironmentPartial())

		// assert
		assert.False(t, ok)
		assert.Equal(t,
			"Pipeline 'build' cannot be removed from environment 'production' as the association has been defined remotely in [remote]",
			cmd.Result.Message(),
		)
	})
	t.Run("failure - removing a pipeline not in the environment", func(t *testing.T) {
		// arrange
		patch := EnvironmentPatch{PipelinesToRemove: []string{"build"}}
		cmd := NewEnvironmentPatchCommand(base(alice, ""), "production", patch)

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, "Pipeline 'build' does not exist in environment 'production'", cmd.Result.Message())
	})
	t.Run("failure - removing an unknown agent", func(t *testing.T) {
		// arrange
		patch := EnvironmentPatch{AgentsToRemove: []string{"agent-9"}}
		cmd := NewEnvironmentPatchCommand(base(alice, ""), "production", patch)

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, cmd.Result.Status())
	})
	t.Run("failure - adding a pipeline of another environment", func(t *testing.T) {
		// arrange
		c := testConfig()
		c.Environments = append(c.Environments, cruise.EnvironmentConfig{Name: "qa"})
		patch := EnvironmentPatch{PipelinesToAdd: []string{"deploy"}}
		cmd := NewEnvironmentPatchCommand(base(alice, ""), "qa", patch)

		// act
		_, ok := run(t, cmd, c)

		// assert
		assert.False(t, ok)
		assert.Contains(t, cmd.Result.Message(), "Associating pipeline(s) which is already part of production environment")
	})
}

func TestEnvironmentDeleteCommand(t *testing.T) {
	t.Run("success - environment deleted", func(t *testing.T) {
		// arrange
		cmd := NewEnvironmentDeleteCommand(base(alice, ""), "production")

		// act
		preprocessed, ok := run(t, cmd, testConfig())

		// assert
		require.True(t, ok, cmd.Result.Message())
		assert.Nil(t, preprocessed.FindEnvironment("production"))
		assert.Equal(t, "production", cmd.PreprocessedEntity().(*cruise.EnvironmentConfig).Name)
	})
	t.Run("failure - user is not an admin", func(t *testing.T) {
		// arrange
		cmd := NewEnvironmentDeleteCommand(base(carol, ""), "production")

		// act
		_, ok := run(t, cmd, testConfig())

		// assert
		assert.False(t, ok)
		assert.Equal(t, http.StatusForbidden, cmd.Result.Status())
	})
}
