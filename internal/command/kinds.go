package command

import (
	"fmt"

	"github.com/haatos/simple-cd/internal/cruise"
)

// Kinds of the named entities that share entityCommand.
var (
	groupKind = &kind[cruise.PipelineGroup]{
		name: kindGroup,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.PipelineGroup { return &c.Groups },
		id:   func(g *cruise.PipelineGroup) string { return g.Name },
		node: func(g *cruise.PipelineGroup) cruise.Validatable { return g },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if g := c.FindGroup(id); g != nil && len(g.Pipelines) > 0 {
				return fmt.Sprintf("Failed to delete group %s because it was not empty.", id)
			}
			return ""
		},
		// Pipelines are edited through the pipeline commands only.
		replace: func(dst, src *cruise.PipelineGroup) {
			dst.Authorization = src.Authorization
		},
		authorize: func(b *Base, c *cruise.CruiseConfig, id string) bool {
			if c.FindGroup(id) == nil {
				return b.isUserAdmin(c, kindGroup, id)
			}
			return b.isUserGroupAdmin(c, id, kindGroup, id)
		},
	}

	roleKind = &kind[cruise.Role]{
		name: kindRole,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.Role { return &c.Server.Security.Roles },
		id:   func(r *cruise.Role) string { return r.Name },
		node: func(r *cruise.Role) cruise.Validatable { return r },
	}

	elasticProfileKind = &kind[cruise.ElasticProfile]{
		name: kindElasticProfile,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.ElasticProfile { return &c.ElasticProfiles },
		id:   func(p *cruise.ElasticProfile) string { return p.ID },
		node: func(p *cruise.ElasticProfile) cruise.Validatable { return p },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if jobs := c.JobsUsingElasticProfile(id); len(jobs) > 0 {
				return inUseMessage(kindElasticProfile, id, "pipeline(s)", jobs)
			}
			return ""
		},
	}

	clusterProfileKind = &kind[cruise.ClusterProfile]{
		name: kindClusterProfile,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.ClusterProfile { return &c.ClusterProfiles },
		id:   func(p *cruise.ClusterProfile) string { return p.ID },
		node: func(p *cruise.ClusterProfile) cruise.Validatable { return p },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if profiles := c.ElasticProfilesUsingCluster(id); len(profiles) > 0 {
				return inUseMessage(kindClusterProfile, id, "elastic agent profile(s)", profiles)
			}
			return ""
		},
	}

	artifactStoreKind = &kind[cruise.ArtifactStore]{
		name: kindArtifactStore,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.ArtifactStore { return &c.ArtifactStores },
		id:   func(s *cruise.ArtifactStore) string { return s.ID },
		node: func(s *cruise.ArtifactStore) cruise.Validatable { return s },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if jobs := c.FetchTasksUsingArtifactStore(id); len(jobs) > 0 {
				return inUseMessage(kindArtifactStore, id, "fetch task(s) in", jobs)
			}
			return ""
		},
	}

	templateKind = &kind[cruise.PipelineTemplate]{
		name: kindTemplate,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.PipelineTemplate { return &c.Templates },
		id:   func(t *cruise.PipelineTemplate) string { return t.Name },
		node: func(t *cruise.PipelineTemplate) cruise.Validatable { return t },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if pipelines := c.PipelinesUsingTemplate(id); len(pipelines) > 0 {
				return inUseMessage(kindTemplate, id, "pipeline(s)", pipelines)
			}
			return ""
		},
		authorize: func(b *Base, c *cruise.CruiseConfig, id string) bool {
			if c.FindTemplate(id) == nil {
				return b.isUserAdmin(c, kindTemplate, id)
			}
			return b.isUserTemplateAdmin(c, id)
		},
	}

	packageRepositoryKind = &kind[cruise.PackageRepository]{
		name: kindPackageRepository,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.PackageRepository { return &c.PackageRepositories },
		id:   func(r *cruise.PackageRepository) string { return r.ID },
		node: func(r *cruise.PackageRepository) cruise.Validatable { return r },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if pipelines := c.PipelinesUsingPackageRepository(id); len(pipelines) > 0 {
				return inUseMessage(kindPackageRepository, id, "pipeline(s)", pipelines)
			}
			return ""
		},
		// Packages are edited through the package definition commands.
		replace: func(dst, src *cruise.PackageRepository) {
			packages := dst.Packages
			*dst = *src
			dst.Packages = packages
		},
	}

	scmKind = &kind[cruise.SCM]{
		name: kindSCM,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.SCM { return &c.SCMs },
		id:   func(s *cruise.SCM) string { return s.ID },
		node: func(s *cruise.SCM) cruise.Validatable { return s },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if pipelines := c.PipelinesUsingSCM(id); len(pipelines) > 0 {
				return inUseMessage(kindSCM, id, "pipeline(s)", pipelines)
			}
			return ""
		},
	}

	configRepoKind = &kind[cruise.ConfigRepo]{
		name: kindConfigRepo,
		list: func(c *cruise.CruiseConfig, _ string) *[]cruise.ConfigRepo { return &c.ConfigRepos },
		id:   func(r *cruise.ConfigRepo) string { return r.ID },
		node: func(r *cruise.ConfigRepo) cruise.Validatable { return r },
	}
)

// packageDefinitionKind finds definitions inside repoID when it is set,
// otherwise inside whichever repository holds the definition.
func packageDefinitionKind(repoID string) *kind[cruise.PackageDefinition] {
	return &kind[cruise.PackageDefinition]{
		name: kindPackageDefinition,
		list: func(c *cruise.CruiseConfig, id string) *[]cruise.PackageDefinition {
			if repoID != "" {
				if r := c.FindPackageRepository(repoID); r != nil {
					return &r.Packages
				}
				return nil
			}
			if r, _ := c.FindPackageDefinition(id); r != nil {
				return &r.Packages
			}
			return nil
		},
		id:   func(p *cruise.PackageDefinition) string { return p.ID },
		node: func(p *cruise.PackageDefinition) cruise.Validatable { return p },
		inUse: func(c *cruise.CruiseConfig, id string) string {
			if pipelines := c.PipelinesUsingPackage(id); len(pipelines) > 0 {
				return inUseMessage(kindPackageDefinition, id, "pipeline(s)", pipelines)
			}
			return ""
		},
	}
}

// EntityCommand is the command type shared by the named entities.
type EntityCommand[T any] = entityCommand[T]

func NewGroupCreateCommand(base Base, g *cruise.PipelineGroup) *EntityCommand[cruise.PipelineGroup] {
	return newCreate(groupKind, base, g)
}

func NewGroupUpdateCommand(base Base, name string, g *cruise.PipelineGroup) *EntityCommand[cruise.PipelineGroup] {
	return newUpdate(groupKind, base, name, g)
}

func NewGroupDeleteCommand(base Base, name string) *EntityCommand[cruise.PipelineGroup] {
	return newDelete(groupKind, base, name)
}

func NewRoleCreateCommand(base Base, r *cruise.Role) *EntityCommand[cruise.Role] {
	return newCreate(roleKind, base, r)
}

func NewRoleUpdateCommand(base Base, name string, r *cruise.Role) *EntityCommand[cruise.Role] {
	return newUpdate(roleKind, base, name, r)
}

// RoleDeleteCommand removes the role and every admin, operator and viewer
// reference to it.
type RoleDeleteCommand struct {
	*entityCommand[cruise.Role]
}

func NewRoleDeleteCommand(base Base, name string) *RoleDeleteCommand {
	return &RoleDeleteCommand{newDelete(roleKind, base, name)}
}

func (cmd *RoleDeleteCommand) Update(modified *cruise.CruiseConfig) error {
	if err := cmd.entityCommand.Update(modified); err != nil {
		return err
	}
	modified.RemoveRoleReferences(cmd.id)
	return nil
}

func clusterProfileExists(b *Base, p *cruise.ElasticProfile) func(c *cruise.CruiseConfig) bool {
	return func(c *cruise.CruiseConfig) bool {
		if c.FindClusterProfile(p.ClusterProfileID) != nil {
			return true
		}
		b.Result.UnprocessableEntity(fmt.Sprintf(
			"No Cluster Profile exists with the specified cluster_profile_id '%s'.", p.ClusterProfileID,
		))
		return false
	}
}

func NewElasticProfileCreateCommand(base Base, p *cruise.ElasticProfile) *EntityCommand[cruise.ElasticProfile] {
	cmd := newCreate(elasticProfileKind, base, p)
	return cmd.withCheck(clusterProfileExists(&cmd.Base, p))
}

func NewElasticProfileUpdateCommand(base Base, id string, p *cruise.ElasticProfile) *EntityCommand[cruise.ElasticProfile] {
	cmd := newUpdate(elasticProfileKind, base, id, p)
	return cmd.withCheck(clusterProfileExists(&cmd.Base, p))
}

func NewElasticProfileDeleteCommand(base Base, id string) *EntityCommand[cruise.ElasticProfile] {
	return newDelete(elasticProfileKind, base, id)
}

func NewClusterProfileCreateCommand(base Base, p *cruise.ClusterProfile) *EntityCommand[cruise.ClusterProfile] {
	return newCreate(clusterProfileKind, base, p)
}

func NewClusterProfileUpdateCommand(base Base, id string, p *cruise.ClusterProfile) *EntityCommand[cruise.ClusterProfile] {
	return newUpdate(clusterProfileKind, base, id, p)
}

func NewClusterProfileDeleteCommand(base Base, id string) *EntityCommand[cruise.ClusterProfile] {
	return newDelete(clusterProfileKind, base, id)
}

func NewArtifactStoreCreateCommand(base Base, s *cruise.ArtifactStore) *EntityCommand[cruise.ArtifactStore] {
	return newCreate(artifactStoreKind, base, s)
}

func NewArtifactStoreUpdateCommand(base Base, id string, s *cruise.ArtifactStore) *EntityCommand[cruise.ArtifactStore] {
	return newUpdate(artifactStoreKind, base, id, s)
}

func NewArtifactStoreDeleteCommand(base Base, id string) *EntityCommand[cruise.ArtifactStore] {
	return newDelete(artifactStoreKind, base, id)
}

func NewTemplateCreateCommand(base Base, t *cruise.PipelineTemplate) *EntityCommand[cruise.PipelineTemplate] {
	return newCreate(templateKind, base, t)
}

func NewTemplateUpdateCommand(base Base, name string, t *cruise.PipelineTemplate) *EntityCommand[cruise.PipelineTemplate] {
	return newUpdate(templateKind, base, name, t)
}

func NewTemplateDeleteCommand(base Base, name string) *EntityCommand[cruise.PipelineTemplate] {
	return newDelete(templateKind, base, name)
}

func NewPackageRepositoryCreateCommand(base Base, r *cruise.PackageRepository) *EntityCommand[cruise.PackageRepository] {
	return newCreate(packageRepositoryKind, base, r)
}

func NewPackageRepositoryUpdateCommand(base Base, id string, r *cruise.PackageRepository) *EntityCommand[cruise.PackageRepository] {
	return newUpdate(packageRepositoryKind, base, id, r)
}

func NewPackageRepositoryDeleteCommand(base Base, id string) *EntityCommand[cruise.PackageRepository] {
	return newDelete(packageRepositoryKind, base, id)
}

func NewPackageDefinitionCreateCommand(base Base, repoID string, p *cruise.PackageDefinition) *EntityCommand[cruise.PackageDefinition] {
	cmd := newCreate(packageDefinitionKind(repoID), base, p)
	return cmd.withCheck(func(c *cruise.CruiseConfig) bool {
		if c.FindPackageRepository(repoID) != nil {
			return true
		}
		cmd.Result.UnprocessableEntity(fmt.Sprintf("Could not find the repository with repo_id '%s'.", repoID))
		return false
	})
}

func NewPackageDefinitionUpdateCommand(base Base, id string, p *cruise.PackageDefinition) *EntityCommand[cruise.PackageDefinition] {
	return newUpdate(packageDefinitionKind(""), base, id, p)
}

func NewPackageDefinitionDeleteCommand(base Base, id string) *EntityCommand[cruise.PackageDefinition] {
	return newDelete(packageDefinitionKind(""), base, id)
}

func NewSCMCreateCommand(base Base, s *cruise.SCM) *EntityCommand[cruise.SCM] {
	return newCreate(scmKind, base, s)
}

func NewSCMUpdateCommand(base Base, id string, s *cruise.SCM) *EntityCommand[cruise.SCM] {
	return newUpdate(scmKind, base, id, s)
}

func NewSCMDeleteCommand(base Base, id string) *EntityCommand[cruise.SCM] {
	return newDelete(scmKind, base, id)
}

func NewConfigRepoCreateCommand(base Base, r *cruise.ConfigRepo) *EntityCommand[cruise.ConfigRepo] {
	return newCreate(configRepoKind, base, r)
}

func NewConfigRepoUpdateCommand(base Base, id string, r *cruise.ConfigRepo) *EntityCommand[cruise.ConfigRepo] {
	return newUpdate(configRepoKind, base, id, r)
}

func NewConfigRepoDeleteCommand(base Base, id string) *EntityCommand[cruise.ConfigRepo] {
	return newDelete(configRepoKind, base, id)
}
