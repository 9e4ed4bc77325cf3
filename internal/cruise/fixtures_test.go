package cruise

import (
	"unicode"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func newGitMaterial(url string) Material {
	return Material{Type: MaterialGit, URL: url, Branch: "main"}
}

func newStage(name string, jobs ...string) StageConfig {
	s := StageConfig{Name: name}
	for _, j := range jobs {
		s.Jobs = append(s.Jobs, JobConfig{
			Name:  j,
			Tasks: []Task{{Type: TaskExec, Command: "make", Args: []string{j}}},
		})
	}
	return s
}

func newPipeline(name string, stages ...StageConfig) PipelineConfig {
	return PipelineConfig{
		Name:          name,
		LabelTemplate: "${COUNT}",
		Materials:     []Material{newGitMaterial("https://example.com/" + name + ".git")},
		Stages:        stages,
	}
}

// validConfig returns a configuration exercising every entity kind that
// passes validation.
func validConfig() *CruiseConfig {
	c := NewCruiseConfig()
	c.Server.Security = SecurityConfig{
		AuthConfigs: []AuthConfig{{ID: "file", PluginID: "cd.auth.file"}},
		Roles: []Role{
			{Name: "admins", Users: []string{"alice"}},
			{Name: "developers", Users: []string{"bob"}},
		},
		Admins: AdminsConfig{Roles: []string{"admins"}},
	}
	build := newPipeline("build", newStage("compile", "unit"), newStage("package", "jar"))
	build.Stages[1].Jobs[0].Tasks = append(build.Stages[1].Jobs[0].Tasks, Task{
		Type: TaskFetch, Stage: "compile", Job: "unit", Source: "out",
	})
	deploy := newPipeline("deploy", newStage("deploy", "prod"))
	deploy.Materials = append(deploy.Materials, Material{
		Type: MaterialDependency, Name: "upstream", Pipeline: "build", Stage: "package",
	})
	deploy.Stages[0].Jobs[0].ElasticProfileID = "docker"
	fromTemplate := PipelineConfig{
		Name:      "service",
		Template:  "standard",
		Params:    []Param{{Name: "target", Value: "service"}},
		Materials: []Material{newGitMaterial("https://example.com/#{target}.git")},
	}
	c.Groups = []PipelineGroup{
		{
			Name: "first",
			Authorization: Authorization{
				Admins: AdminsConfig{Roles: []string{"developers"}},
			},
			Pipelines: []PipelineConfig{build, deploy, fromTemplate},
		},
	}
	c.Templates = []PipelineTemplate{{
		Name:   "standard",
		Stages: []StageConfig{newStage("test", "tests")},
	}}
	c.Templates[0].Stages[0].Jobs[0].Tasks[0].Args = []string{"#{target}"}
	c.Environments = []EnvironmentConfig{{
		Name:      "production",
		Pipelines: []string{"deploy"},
		Agents:    []string{"agent-uuid-1"},
		EnvironmentVariables: []EnvironmentVariable{
			{Name: "TOKEN", Value: "secret", Secure: true},
		},
	}}
	c.ClusterProfiles = []ClusterProfile{{ID: "k8s", PluginID: "cd.elastic.k8s"}}
	c.ElasticProfiles = []ElasticProfile{{
		ID: "docker", ClusterProfileID: "k8s",
		Properties: []ConfigurationProperty{{Key: "Image", Value: "alpine"}},
	}}
	c.ArtifactStores = []ArtifactStore{{ID: "registry", PluginID: "cd.artifact.docker"}}
	c.PackageRepositories = []PackageRepository{{
		ID: "repo-1", Name: "npm", PluginID: "cd.package.npm",
		Packages: []PackageDefinition{{ID: "pkg-1", Name: "left-pad"}},
	}}
	c.SCMs = []SCM{{ID: "scm-1", Name: "svn", PluginID: "cd.scm.svn"}}
	c.ConfigRepos = []ConfigRepo{{
		ID: "remote", PluginID: "yaml.config.plugin",
		Material: newGitMaterial("https://example.com/config.git"),
	}}
	return c
}

func ignoreUnexported() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		sf, ok := p.Last().(cmp.StructField)
		if !ok {
			return false
		}
		r, _ := utf8.DecodeRuneInString(sf.Name())
		return unicode.IsLower(r)
	}, cmp.Ignore())
}
