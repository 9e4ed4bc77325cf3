package service

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
)

const testConfigFile = "cruise-config.yaml"

var (
	alice = cruise.NewUsername("alice")
	bob   = cruise.NewUsername("bob")
)

func testPipeline(name string) cruise.PipelineConfig {
	return cruise.PipelineConfig{
		Name:      name,
		Materials: []cruise.Material{{Type: cruise.MaterialGit, URL: "https://example.com/" + name + ".git", Branch: "main"}},
		Stages: []cruise.StageConfig{{
			Name: "compile",
			Jobs: []cruise.JobConfig{{
				Name:  "unit",
				Tasks: []cruise.Task{{Type: cruise.TaskExec, Command: "make", Args: []string{"unit"}}},
			}},
		}},
	}
}

// testConfig has alice as system admin and bob as admin of group "first".
// Only admins can view group "second".
func testConfig() *cruise.CruiseConfig {
	c := cruise.NewCruiseConfig()
	c.Server.Security = cruise.SecurityConfig{
		AuthConfigs: []cruise.AuthConfig{{ID: "file", PluginID: "cd.auth.file"}},
		Roles: []cruise.Role{
			{Name: "admins", Users: []string{"alice"}},
			{Name: "developers", Users: []string{"bob"}},
		},
		Admins: cruise.AdminsConfig{Roles: []string{"admins"}},
	}
	deploy := testPipeline("deploy")
	deploy.Stages[0].Jobs[0].ElasticProfileID = "docker"
	c.Groups = []cruise.PipelineGroup{
		{
			Name:          "first",
			Authorization: cruise.Authorization{Admins: cruise.AdminsConfig{Roles: []string{"developers"}}},
			Pipelines:     []cruise.PipelineConfig{testPipeline("build"), deploy},
		},
		{
			Name:          "second",
			Authorization: cruise.Authorization{Viewers: cruise.AdminsConfig{Roles: []string{"admins"}}},
			Pipelines:     []cruise.PipelineConfig{testPipeline("release")},
		},
	}
	c.Environments = []cruise.EnvironmentConfig{{Name: "production", Pipelines: []string{"deploy"}}}
	c.ClusterProfiles = []cruise.ClusterProfile{{ID: "k8s", PluginID: "cd.elastic.k8s"}}
	c.ElasticProfiles = []cruise.ElasticProfile{{ID: "docker", ClusterProfileID: "k8s"}}
	return c
}

// templatedConfig adds pipeline "templated" to testConfig. Its stages come
// from template "tpl" and its material branch from param "branch".
func templatedConfig() *cruise.CruiseConfig {
	c := testConfig()
	c.Templates = []cruise.PipelineTemplate{{Name: "tpl", Stages: testPipeline("tpl").Stages}}
	c.Groups[0].Pipelines = append(c.Groups[0].Pipelines, cruise.PipelineConfig{
		Name:     "templated",
		Template: "tpl",
		Params:   []cruise.Param{{Name: "branch", Value: "main"}},
		Materials: []cruise.Material{
			{Type: cruise.MaterialGit, URL: "https://example.com/templated.git", Branch: "#{branch}"},
		},
	})
	return c
}

func newTestDao(t *testing.T, c *cruise.CruiseConfig) *configstore.GoConfigDao {
	fs := memfs.New()
	content, err := cruise.Marshal(c)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, testConfigFile, content, 0o644))
	versions, err := configstore.NewVersionRepository(memory.NewStorage(), memfs.New(), zap.NewNop())
	require.NoError(t, err)
	dao := configstore.NewGoConfigDao(
		configstore.NewFileDataSource(fs, testConfigFile, zap.NewNop()),
		versions,
		nil,
		zap.NewNop(),
	)
	require.NoError(t, dao.LoadConfig())
	return dao
}

func newTestUpdater(t *testing.T) (*ConfigUpdater, *configstore.GoConfigDao) {
	dao := newTestDao(t, testConfig())
	return NewConfigUpdater(dao, zap.NewNop()), dao
}
