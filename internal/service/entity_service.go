package service

import (
	"fmt"
	"strings"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/store"
)

// EntityService reads and edits one kind of named configuration entity.
type EntityService[T any] struct {
	updater *ConfigUpdater
	kind    string
	list    func(c *cruise.CruiseConfig) []T
	id      func(e *T) string

	newCreate func(base command.Base, e *T) configstore.EntityConfigUpdateCommand
	newUpdate func(base command.Base, id string, e *T) configstore.EntityConfigUpdateCommand
	newDelete func(base command.Base, id string) configstore.EntityConfigUpdateCommand
}

// List returns the entities of the current configuration.
func (s *EntityService[T]) List() []T {
	return s.list(s.updater.CurrentConfig())
}

// Get returns a copy of the entity with its digest. The digest is what an
// update of the entity must present.
func (s *EntityService[T]) Get(id string) (*T, string, error) {
	for _, e := range s.List() {
		if !strings.EqualFold(s.id(&e), id) {
			continue
		}
		digest, err := cruise.Digest(&e)
		if err != nil {
			return nil, "", err
		}
		return &e, digest, nil
	}
	return nil, "", store.RecordNotFoundError{Entity: s.kind, ID: id}
}

// Key returns the identifier of e.
func (s *EntityService[T]) Key(e *T) string {
	return s.id(e)
}

func (s *EntityService[T]) Create(user cruise.Username, e *T) *command.Result {
	result := command.NewResult()
	cmd := s.newCreate(command.NewBase(user, result, ""), e)
	s.updater.Update(cmd, user, result, createdMessage(s.kind, s.id(e)))
	return result
}

func (s *EntityService[T]) Update(user cruise.Username, id, digest string, e *T) *command.Result {
	result := command.NewResult()
	cmd := s.newUpdate(command.NewBase(user, result, digest), id, e)
	s.updater.Update(cmd, user, result, updatedMessage(s.kind, id))
	return result
}

func (s *EntityService[T]) Delete(user cruise.Username, id string) *command.Result {
	result := command.NewResult()
	cmd := s.newDelete(command.NewBase(user, result, ""), id)
	s.updater.Update(cmd, user, result, deletedMessage(s.kind, id))
	return result
}

func createdMessage(kind, id string) string {
	return fmt.Sprintf("The %s '%s' was created successfully.", kind, id)
}

func updatedMessage(kind, id string) string {
	return fmt.Sprintf("The %s '%s' was updated successfully.", kind, id)
}

func deletedMessage(kind, id string) string {
	return fmt.Sprintf("The %s '%s' was deleted successfully.", kind, id)
}

type (
	PipelineGroupService     = EntityService[cruise.PipelineGroup]
	RoleConfigService        = EntityService[cruise.Role]
	ElasticProfileService    = EntityService[cruise.ElasticProfile]
	ClusterProfileService    = EntityService[cruise.ClusterProfile]
	ArtifactStoreService     = EntityService[cruise.ArtifactStore]
	TemplateConfigService    = EntityService[cruise.PipelineTemplate]
	PackageRepositoryService = EntityService[cruise.PackageRepository]
	SCMService               = EntityService[cruise.SCM]
	ConfigRepoService        = EntityService[cruise.ConfigRepo]
)

func NewPipelineGroupService(u *ConfigUpdater) *PipelineGroupService {
	return &PipelineGroupService{
		updater: u,
		kind:    "pipeline group",
		list:    func(c *cruise.CruiseConfig) []cruise.PipelineGroup { return c.Groups },
		id:      func(g *cruise.PipelineGroup) string { return g.Name },
		newCreate: func(b command.Base, g *cruise.PipelineGroup) configstore.EntityConfigUpdateCommand {
			return command.NewGroupCreateCommand(b, g)
		},
		newUpdate: func(b command.Base, id string, g *cruise.PipelineGroup) configstore.EntityConfigUpdateCommand {
			return command.NewGroupUpdateCommand(b, id, g)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewGroupDeleteCommand(b, id)
		},
	}
}

func NewRoleConfigService(u *ConfigUpdater) *RoleConfigService {
	return &RoleConfigService{
		updater: u,
		kind:    "role",
		list:    func(c *cruise.CruiseConfig) []cruise.Role { return c.Server.Security.Roles },
		id:      func(r *cruise.Role) string { return r.Name },
		newCreate: func(b command.Base, r *cruise.Role) configstore.EntityConfigUpdateCommand {
			return command.NewRoleCreateCommand(b, r)
		},
		newUpdate: func(b command.Base, id string, r *cruise.Role) configstore.EntityConfigUpdateCommand {
			return command.NewRoleUpdateCommand(b, id, r)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewRoleDeleteCommand(b, id)
		},
	}
}

func NewElasticProfileService(u *ConfigUpdater) *ElasticProfileService {
	return &ElasticProfileService{
		updater: u,
		kind:    "elastic agent profile",
		list:    func(c *cruise.CruiseConfig) []cruise.ElasticProfile { return c.ElasticProfiles },
		id:      func(p *cruise.ElasticProfile) string { return p.ID },
		newCreate: func(b command.Base, p *cruise.ElasticProfile) configstore.EntityConfigUpdateCommand {
			return command.NewElasticProfileCreateCommand(b, p)
		},
		newUpdate: func(b command.Base, id string, p *cruise.ElasticProfile) configstore.EntityConfigUpdateCommand {
			return command.NewElasticProfileUpdateCommand(b, id, p)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewElasticProfileDeleteCommand(b, id)
		},
	}
}

func NewClusterProfileService(u *ConfigUpdater) *ClusterProfileService {
	return &ClusterProfileService{
		updater: u,
		kind:    "cluster profile",
		list:    func(c *cruise.CruiseConfig) []cruise.ClusterProfile { return c.ClusterProfiles },
		id:      func(p *cruise.ClusterProfile) string { return p.ID },
		newCreate: func(b command.Base, p *cruise.ClusterProfile) configstore.EntityConfigUpdateCommand {
			return command.NewClusterProfileCreateCommand(b, p)
		},
		newUpdate: func(b command.Base, id string, p *cruise.ClusterProfile) configstore.EntityConfigUpdateCommand {
			return command.NewClusterProfileUpdateCommand(b, id, p)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewClusterProfileDeleteCommand(b, id)
		},
	}
}

func NewArtifactStoreService(u *ConfigUpdater) *ArtifactStoreService {
	return &ArtifactStoreService{
		updater: u,
		kind:    "artifact store",
		list:    func(c *cruise.CruiseConfig) []cruise.ArtifactStore { return c.ArtifactStores },
		id:      func(s *cruise.ArtifactStore) string { return s.ID },
		newCreate: func(b command.Base, s *cruise.ArtifactStore) configstore.EntityConfigUpdateCommand {
			return command.NewArtifactStoreCreateCommand(b, s)
		},
		newUpdate: func(b command.Base, id string, s *cruise.ArtifactStore) configstore.EntityConfigUpdateCommand {
			return command.NewArtifactStoreUpdateCommand(b, id, s)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewArtifactStoreDeleteCommand(b, id)
		},
	}
}

func NewTemplateConfigService(u *ConfigUpdater) *TemplateConfigService {
	return &TemplateConfigService{
		updater: u,
		kind:    "template",
		list:    func(c *cruise.CruiseConfig) []cruise.PipelineTemplate { return c.Templates },
		id:      func(t *cruise.PipelineTemplate) string { return t.Name },
		newCreate: func(b command.Base, t *cruise.PipelineTemplate) configstore.EntityConfigUpdateCommand {
			return command.NewTemplateCreateCommand(b, t)
		},
		newUpdate: func(b command.Base, id string, t *cruise.PipelineTemplate) configstore.EntityConfigUpdateCommand {
			return command.NewTemplateUpdateCommand(b, id, t)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewTemplateDeleteCommand(b, id)
		},
	}
}

func NewPackageRepositoryService(u *ConfigUpdater) *PackageRepositoryService {
	return &PackageRepositoryService{
		updater: u,
		kind:    "package repository",
		list:    func(c *cruise.CruiseConfig) []cruise.PackageRepository { return c.PackageRepositories },
		id:      func(r *cruise.PackageRepository) string { return r.ID },
		newCreate: func(b command.Base, r *cruise.PackageRepository) configstore.EntityConfigUpdateCommand {
			return command.NewPackageRepositoryCreateCommand(b, r)
		},
		newUpdate: func(b command.Base, id string, r *cruise.PackageRepository) configstore.EntityConfigUpdateCommand {
			return command.NewPackageRepositoryUpdateCommand(b, id, r)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewPackageRepositoryDeleteCommand(b, id)
		},
	}
}

func NewSCMService(u *ConfigUpdater) *SCMService {
	return &SCMService{
		updater: u,
		kind:    "SCM",
		list:    func(c *cruise.CruiseConfig) []cruise.SCM { return c.SCMs },
		id:      func(s *cruise.SCM) string { return s.ID },
		newCreate: func(b command.Base, s *cruise.SCM) configstore.EntityConfigUpdateCommand {
			return command.NewSCMCreateCommand(b, s)
		},
		newUpdate: func(b command.Base, id string, s *cruise.SCM) configstore.EntityConfigUpdateCommand {
			return command.NewSCMUpdateCommand(b, id, s)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewSCMDeleteCommand(b, id)
		},
	}
}

func NewConfigRepoService(u *ConfigUpdater) *ConfigRepoService {
	return &ConfigRepoService{
		updater: u,
		kind:    "config repo",
		list:    func(c *cruise.CruiseConfig) []cruise.ConfigRepo { return c.ConfigRepos },
		id:      func(r *cruise.ConfigRepo) string { return r.ID },
		newCreate: func(b command.Base, r *cruise.ConfigRepo) configstore.EntityConfigUpdateCommand {
			return command.NewConfigRepoCreateCommand(b, r)
		},
		newUpdate: func(b command.Base, id string, r *cruise.ConfigRepo) configstore.EntityConfigUpdateCommand {
			return command.NewConfigRepoUpdateCommand(b, id, r)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewConfigRepoDeleteCommand(b, id)
		},
	}
}

// PackageDefinitionService edits package definitions. New definitions are
// created inside an existing repository with CreateInRepository. Create
// names no repository and is always rejected.
type PackageDefinitionService struct {
	*EntityService[cruise.PackageDefinition]
}

func NewPackageDefinitionService(u *ConfigUpdater) *PackageDefinitionService {
	return &PackageDefinitionService{&EntityService[cruise.PackageDefinition]{
		updater: u,
		kind:    "package definition",
		list: func(c *cruise.CruiseConfig) []cruise.PackageDefinition {
			var out []cruise.PackageDefinition
			for _, r := range c.PackageRepositories {
				out = append(out, r.Packages...)
			}
			return out
		},
		id: func(p *cruise.PackageDefinition) string { return p.ID },
		newCreate: func(b command.Base, p *cruise.PackageDefinition) configstore.EntityConfigUpdateCommand {
			return command.NewPackageDefinitionCreateCommand(b, "", p)
		},
		newUpdate: func(b command.Base, id string, p *cruise.PackageDefinition) configstore.EntityConfigUpdateCommand {
			return command.NewPackageDefinitionUpdateCommand(b, id, p)
		},
		newDelete: func(b command.Base, id string) configstore.EntityConfigUpdateCommand {
			return command.NewPackageDefinitionDeleteCommand(b, id)
		},
	}}
}

func (s *PackageDefinitionService) CreateInRepository(
	user cruise.Username,
	repoID string,
	p *cruise.PackageDefinition,
) *command.Result {
	result := command.NewResult()
	cmd := command.NewPackageDefinitionCreateCommand(command.NewBase(user, result, ""), repoID, p)
	s.updater.Update(cmd, user, result, createdMessage(s.kind, p.ID))
	return result
}
