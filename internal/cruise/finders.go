package cruise

import (
	"fmt"
	"slices"
	"strings"
)

func findFold[T any](items []T, name string, key func(*T) string) *T {
	for i := range items {
		if strings.EqualFold(key(&items[i]), name) {
			return &items[i]
		}
	}
	return nil
}

func indexFold[T any](items []T, name string, key func(*T) string) int {
	for i := range items {
		if strings.EqualFold(key(&items[i]), name) {
			return i
		}
	}
	return -1
}

func containsFold(values []string, v string) bool {
	return slices.ContainsFunc(values, func(s string) bool { return strings.EqualFold(s, v) })
}

func (c *CruiseConfig) AllPipelines() []*PipelineConfig {
	out := make([]*PipelineConfig, 0)
	for gi := range c.Groups {
		for pi := range c.Groups[gi].Pipelines {
			out = append(out, &c.Groups[gi].Pipelines[pi])
		}
	}
	return out
}

func (c *CruiseConfig) HasPipelineNamed(name string) bool {
	return c.PipelineConfigByName(name) != nil
}

func (c *CruiseConfig) PipelineConfigByName(name string) *PipelineConfig {
	for _, p := range c.AllPipelines() {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (c *CruiseConfig) FindGroup(name string) *PipelineGroup {
	return findFold(c.Groups, name, func(g *PipelineGroup) string { return g.Name })
}

func (c *CruiseConfig) FindGroupOfPipeline(pipeline string) *PipelineGroup {
	for gi := range c.Groups {
		for _, p := range c.Groups[gi].Pipelines {
			if strings.EqualFold(p.Name, pipeline) {
				return &c.Groups[gi]
			}
		}
	}
	return nil
}

// FindOrCreateGroup returns the named group, appending an empty one when
// it is missing.
func (c *CruiseConfig) FindOrCreateGroup(name string) *PipelineGroup {
	if g := c.FindGroup(name); g != nil {
		return g
	}
	c.Groups = append(c.Groups, PipelineGroup{Name: name})
	return &c.Groups[len(c.Groups)-1]
}

func (c *CruiseConfig) RemovePipeline(name string) bool {
	for gi := range c.Groups {
		g := &c.Groups[gi]
		if i := indexFold(g.Pipelines, name, func(p *PipelineConfig) string { return p.Name }); i >= 0 {
			g.Pipelines = slices.Delete(g.Pipelines, i, i+1)
			return true
		}
	}
	return false
}

// Stage finds a stage of a pipeline, looking through the pipeline's
// template when the pipeline has not been preprocessed.
func (c *CruiseConfig) Stage(pipeline, stage string) *StageConfig {
	p := c.PipelineConfigByName(pipeline)
	if p == nil {
		return nil
	}
	if s := p.Stage(stage); s != nil {
		return s
	}
	if p.HasTemplate() {
		if t := c.FindTemplate(p.Template); t != nil {
			return findFold(t.Stages, stage, func(s *StageConfig) string { return s.Name })
		}
	}
	return nil
}

func (c *CruiseConfig) FindTemplate(name string) *PipelineTemplate {
	return findFold(c.Templates, name, func(t *PipelineTemplate) string { return t.Name })
}

func (c *CruiseConfig) FindEnvironment(name string) *EnvironmentConfig {
	return findFold(c.Environments, name, func(e *EnvironmentConfig) string { return e.Name })
}

func (c *CruiseConfig) EnvironmentOfPipeline(pipeline string) *EnvironmentConfig {
	for i := range c.Environments {
		if c.Environments[i].ContainsPipeline(pipeline) {
			return &c.Environments[i]
		}
	}
	return nil
}

func (c *CruiseConfig) FindElasticProfile(id string) *ElasticProfile {
	return findFold(c.ElasticProfiles, id, func(p *ElasticProfile) string { return p.ID })
}

func (c *CruiseConfig) FindClusterProfile(id string) *ClusterProfile {
	return findFold(c.ClusterProfiles, id, func(p *ClusterProfile) string { return p.ID })
}

func (c *CruiseConfig) FindArtifactStore(id string) *ArtifactStore {
	return findFold(c.ArtifactStores, id, func(s *ArtifactStore) string { return s.ID })
}

func (c *CruiseConfig) FindPackageRepository(id string) *PackageRepository {
	return findFold(c.PackageRepositories, id, func(r *PackageRepository) string { return r.ID })
}

func (c *CruiseConfig) FindPackageDefinition(id string) (*PackageRepository, *PackageDefinition) {
	for ri := range c.PackageRepositories {
		repo := &c.PackageRepositories[ri]
		if pkg := findFold(repo.Packages, id, func(p *PackageDefinition) string { return p.ID }); pkg != nil {
			return repo, pkg
		}
	}
	return nil, nil
}

func (c *CruiseConfig) FindSCM(id string) *SCM {
	return findFold(c.SCMs, id, func(s *SCM) string { return s.ID })
}

func (c *CruiseConfig) FindRole(name string) *Role {
	return findFold(c.Server.Security.Roles, name, func(r *Role) string { return r.Name })
}

func (c *CruiseConfig) FindAuthConfig(id string) *AuthConfig {
	return findFold(c.Server.Security.AuthConfigs, id, func(a *AuthConfig) string { return a.ID })
}

// PipelinesUsingTemplate returns the names of pipelines built from template.
func (c *CruiseConfig) PipelinesUsingTemplate(template string) []string {
	out := make([]string, 0)
	for _, p := range c.AllPipelines() {
		if strings.EqualFold(p.Template, template) {
			out = append(out, p.Name)
		}
	}
	return out
}

// JobsUsingElasticProfile returns "pipeline/stage/job" for every job,
// including template jobs, that runs on the profile.
func (c *CruiseConfig) JobsUsingElasticProfile(profileID string) []string {
	out := make([]string, 0)
	visit := func(owner string, stages []StageConfig) {
		for _, s := range stages {
			for _, j := range s.Jobs {
				if strings.EqualFold(j.ElasticProfileID, profileID) {
					out = append(out, fmt.Sprintf("%s/%s/%s", owner, s.Name, j.Name))
				}
			}
		}
	}
	for _, p := range c.AllPipelines() {
		visit(p.Name, p.Stages)
	}
	for _, t := range c.Templates {
		visit(t.Name, t.Stages)
	}
	return out
}

func (c *CruiseConfig) ElasticProfilesUsingCluster(clusterID string) []string {
	out := make([]string, 0)
	for _, p := range c.ElasticProfiles {
		if strings.EqualFold(p.ClusterProfileID, clusterID) {
			out = append(out, p.ID)
		}
	}
	return out
}

func (c *CruiseConfig) PipelinesUsingPackage(packageID string) []string {
	return c.pipelinesWithMaterial(func(m *Material) bool {
		return m.Type == MaterialPackage && strings.EqualFold(m.PackageID, packageID)
	})
}

func (c *CruiseConfig) PipelinesUsingPackageRepository(repoID string) []string {
	repo := c.FindPackageRepository(repoID)
	if repo == nil {
		return nil
	}
	out := make([]string, 0)
	for _, pkg := range repo.Packages {
		for _, name := range c.PipelinesUsingPackage(pkg.ID) {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

func (c *CruiseConfig) PipelinesUsingSCM(scmID string) []string {
	return c.pipelinesWithMaterial(func(m *Material) bool {
		return m.Type == MaterialPluggable && strings.EqualFold(m.SCMID, scmID)
	})
}

// PipelinesDependingOn returns pipelines with a dependency material on pipeline.
func (c *CruiseConfig) PipelinesDependingOn(pipeline string) []string {
	return c.pipelinesWithMaterial(func(m *Material) bool {
		return m.Type == MaterialDependency && strings.EqualFold(m.Pipeline, pipeline)
	})
}

func (c *CruiseConfig) pipelinesWithMaterial(match func(*Material) bool) []string {
	out := make([]string, 0)
	for _, p := range c.AllPipelines() {
		for i := range p.Materials {
			if match(&p.Materials[i]) {
				out = append(out, p.Name)
				break
			}
		}
	}
	return out
}

// FetchTasksUsingArtifactStore returns "pipeline/stage/job" for every
// job with a pluggable fetch task pulling from the store.
func (c *CruiseConfig) FetchTasksUsingArtifactStore(storeID string) []string {
	out := make([]string, 0)
	visit := func(owner string, stages []StageConfig) {
		for _, s := range stages {
			for _, j := range s.Jobs {
				for _, t := range j.Tasks {
					if t.Type == TaskPluggableFetch && strings.EqualFold(t.StoreID, storeID) {
						out = append(out, fmt.Sprintf("%s/%s/%s", owner, s.Name, j.Name))
						break
					}
				}
			}
		}
	}
	for _, p := range c.AllPipelines() {
		visit(p.Name, p.Stages)
	}
	for _, t := range c.Templates {
		visit(t.Name, t.Stages)
	}
	return out
}

// RemoveRoleReferences drops role from system admins and from every group
// and template authorization.
func (c *CruiseConfig) RemoveRoleReferences(role string) {
	strip := func(a *AdminsConfig) {
		a.Roles = slices.DeleteFunc(a.Roles, func(r string) bool { return strings.EqualFold(r, role) })
	}
	stripAuth := func(a *Authorization) {
		strip(&a.Admins)
		strip(&a.Operators)
		strip(&a.Viewers)
	}
	strip(&c.Server.Security.Admins)
	for i := range c.Groups {
		stripAuth(&c.Groups[i].Authorization)
	}
	for i := range c.Templates {
		stripAuth(&c.Templates[i].Authorization)
	}
}
