package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haatos/simple-cd/internal/cruise"
)

var (
	alice = cruise.NewUsername("alice")
	bob   = cruise.NewUsername("bob")
	carol = cruise.NewUsername("carol")
)

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

// testConfig has security on with alice as system admin, bob as admin of
// group "first" and carol as admin of template "standard".
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
	deploy := pipeline("deploy")
	deploy.Materials = append(deploy.Materials, cruise.Material{
		Type: cruise.MaterialDependency, Name: "upstream", Pipeline: "build", Stage: "compile",
	})
	deploy.Stages[0].Jobs[0].ElasticProfileID = "docker"
	c.Groups = []cruise.PipelineGroup{
		{
			Name: "first",
			Authorization: cruise.Authorization{
				Admins: cruise.AdminsConfig{Roles: []string{"developers"}},
			},
			Pipelines: []cruise.PipelineConfig{pipeline("build"), deploy},
		},
		{Name: "empty"},
	}
	c.Templates = []cruise.PipelineTemplate{{
		Name:          "standard",
		Authorization: cruise.Authorization{Admins: cruise.AdminsConfig{Users: []string{"carol"}}},
		Stages:        []cruise.StageConfig{stage("test", "tests")},
	}}
	c.Environments = []cruise.EnvironmentConfig{{
		Name:      "production",
		Pipelines: []string{"deploy"},
		Agents:    []string{"agent-1"},
		EnvironmentVariables: []cruise.EnvironmentVariable{
			{Name: "REGION", Value: "eu"},
		},
	}}
	c.ClusterProfiles = []cruise.ClusterProfile{{ID: "k8s", PluginID: "cd.elastic.k8s"}}
	c.ElasticProfiles = []cruise.ElasticProfile{{ID: "docker", ClusterProfileID: "k8s"}}
	c.ArtifactStores = []cruise.ArtifactStore{{ID: "registry", PluginID: "cd.artifact.docker"}}
	c.PackageRepositories = []cruise.PackageRepository{{
		ID: "repo-1", Name: "npm", PluginID: "cd.package.npm",
		Packages: []cruise.PackageDefinition{{ID: "pkg-1", Name: "left-pad"}},
	}}
	c.SCMs = []cruise.SCM{{ID: "scm-1", Name: "svn", PluginID: "cd.scm.svn"}}
	c.ConfigRepos = []cruise.ConfigRepo{{
		ID: "remote", PluginID: "yaml.config.plugin", Material: gitMaterial("config"),
	}}
	return c
}

func base(user cruise.Username, digest string) Base {
	return NewBase(user, NewResult(), digest)
}

func digestOf(t *testing.T, entity any) string {
	d, err := cruise.Digest(entity)
	require.NoError(t, err)
	return d
}

type testCommand interface {
	CanContinue(current *cruise.CruiseConfig) bool
	Update(modified *cruise.CruiseConfig) error
	IsValid(preprocessed *cruise.CruiseConfig) bool
}

// run drives cmd through the same steps as a config save and returns the
// merged, preprocessed configuration when every step passed.
func run(t *testing.T, cmd testCommand, main *cruise.CruiseConfig, partials ...cruise.PartialConfig) (*cruise.CruiseConfig, bool) {
	current, err := cruise.Merge(main, partials)
	require.NoError(t, err)
	require.NoError(t, cruise.Preprocess(current))
	if !cmd.CanContinue(current) {
		return nil, false
	}
	modified, err := cruise.Clone(main)
	require.NoError(t, err)
	require.NoError(t, cmd.Update(modified))
	preprocessed, err := cruise.Merge(modified, partials)
	require.NoError(t, err)
	require.NoError(t, cruise.Preprocess(preprocessed))
	if !cmd.IsValid(preprocessed) {
		return nil, false
	}
	return preprocessed, true
}
