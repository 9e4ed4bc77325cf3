package configstore

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/cruise"
)

const testConfigFile = "cruise-config.yaml"

func gitMaterial(name string) cruise.Material {
	return cruise.Material{Type: cruise.MaterialGit, URL: "https://example.com/" + name + ".git", Branch: "main"}
}

func stage(name, job string) cruise.StageConfig {
	return cruise.StageConfig{
		Name: name,
		Jobs: []cruise.JobConfig{{
			Name:  job,
			Tasks: []cruise.Task{{Type: cruise.TaskExec, Command: "make", Args: []string{job}}},
		}},
	}
}

func pipeline(name string) cruise.PipelineConfig {
	return cruise.PipelineConfig{
		Name:      name,
		Materials: []cruise.Material{gitMaterial(name)},
		Stages:    []cruise.StageConfig{stage("compile", "unit")},
	}
}

func baseConfig() *cruise.CruiseConfig {
	c := cruise.NewCruiseConfig()
	c.Groups = []cruise.PipelineGroup{{
		Name:      "first",
		Pipelines: []cruise.PipelineConfig{pipeline("build")},
	}}
	return c
}

func marshal(t *testing.T, c *cruise.CruiseConfig) []byte {
	b, err := cruise.Marshal(c)
	require.NoError(t, err)
	return b
}

func newTestVersions(t *testing.T) *VersionRepository {
	vr, err := NewVersionRepository(memory.NewStorage(), memfs.New(), zap.NewNop())
	require.NoError(t, err)
	return vr
}

func newTestDao(t *testing.T, c *cruise.CruiseConfig) (*GoConfigDao, billy.Filesystem) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, testConfigFile, marshal(t, c), 0o644))
	dao := NewGoConfigDao(
		NewFileDataSource(fs, testConfigFile, zap.NewNop()),
		newTestVersions(t),
		nil,
		zap.NewNop(),
	)
	require.NoError(t, dao.LoadConfig())
	return dao, fs
}

// testCommand mutates the configuration with mutate and reports the
// environment named envName as its entity.
type testCommand struct {
	allow   bool
	mutate  func(c *cruise.CruiseConfig)
	envName string
	entity  *cruise.EnvironmentConfig
	cleared int
	// editView is what the dao handed over before CanContinue.
	editView *cruise.CruiseConfig
}

func addEnvironment(env cruise.EnvironmentConfig) *testCommand {
	return &testCommand{
		allow:   true,
		envName: env.Name,
		mutate: func(c *cruise.CruiseConfig) {
			c.Environments = append(c.Environments, env)
		},
	}
}

func (c *testCommand) UseEditView(editView *cruise.CruiseConfig) {
	c.editView = editView
}

func (c *testCommand) CanContinue(*cruise.CruiseConfig) bool {
	return c.allow
}

func (c *testCommand) Update(modified *cruise.CruiseConfig) error {
	c.mutate(modified)
	return nil
}

func (c *testCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	ok := cruise.ValidateTree(preprocessed)
	c.entity = preprocessed.FindEnvironment(c.envName)
	return ok
}

func (c *testCommand) ClearErrors() {
	c.cleared++
}

func (c *testCommand) PreprocessedEntity() cruise.Validatable {
	if c.entity == nil {
		return nil
	}
	return c.entity
}
