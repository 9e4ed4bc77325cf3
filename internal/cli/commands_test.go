package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
)

func writeConfig(t *testing.T, c *cruise.CruiseConfig) (string, []byte) {
	content, err := cruise.Marshal(c)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cruise-config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path, content
}

func validConfig() *cruise.CruiseConfig {
	c := cruise.NewCruiseConfig()
	c.Groups = []cruise.PipelineGroup{{
		Name: "first",
		Pipelines: []cruise.PipelineConfig{{
			Name:      "build",
			Materials: []cruise.Material{{Type: cruise.MaterialGit, URL: "https://example.com/build.git", Branch: "main"}},
			Stages: []cruise.StageConfig{{
				Name: "compile",
				Jobs: []cruise.JobConfig{{
					Name:  "unit",
					Tasks: []cruise.Task{{Type: cruise.TaskExec, Command: "make", Args: []string{"unit"}}},
				}},
			}},
		}},
	}}
	return c
}

func execute(args ...string) (string, string, error) {
	root := NewRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Run("success - valid configuration", func(t *testing.T) {
		// arrange
		path, content := writeConfig(t, validConfig())

		// act
		out, _, err := execute("validate", path)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, out, "configuration is valid")
		assert.Contains(t, out, cruise.MD5Of(content))
	})
	t.Run("failure - duplicate pipeline names are reported", func(t *testing.T) {
		// arrange
		c := validConfig()
		c.Groups[0].Pipelines = append(c.Groups[0].Pipelines, c.Groups[0].Pipelines[0])
		path, _ := writeConfig(t, c)

		// act
		_, errOut, err := execute("validate", path)

		// assert
		assert.ErrorContains(t, err, "configuration is invalid")
		assert.Contains(t, errOut+err.Error(), "build")
	})
	t.Run("failure - missing file", func(t *testing.T) {
		// act
		_, _, err := execute("validate", filepath.Join(t.TempDir(), "missing.yaml"))

		// assert
		assert.ErrorContains(t, err, "reading configuration file")
	})
}

func TestDigestCommand(t *testing.T) {
	t.Run("success - prints md5 of file content", func(t *testing.T) {
		// arrange
		path, content := writeConfig(t, validConfig())

		// act
		out, _, err := execute("digest", path)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, cruise.MD5Of(content)+"\n", out)
	})
}

func TestPrintRevisions(t *testing.T) {
	t.Run("success - one row per revision", func(t *testing.T) {
		// arrange
		cmd := NewRevisionsCommand()
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		revisions := []configstore.Revision{
			{MD5: "b2", Username: "admin", SchemaVersion: 1},
			{MD5: "a1", Username: "Anonymous", SchemaVersion: 1},
		}

		// act
		err := printRevisions(cmd, revisions)

		// assert
		assert.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		assert.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[1], "b2"))
	})
}
