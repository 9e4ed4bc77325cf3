// Package command holds the single-entity configuration updates. Every
// command authorizes the user, checks that the entity exists and that the
// client's digest is fresh, applies its change to a copy of the main
// configuration and validates the merged result.
package command

import (
	"github.com/haatos/simple-cd/internal/cruise"
)

// Base carries what every command needs: the acting user, the result
// being recorded and the digest the client last saw.
type Base struct {
	User   cruise.Username
	Result *Result
	// Digest is the client's digest of the entity. Commands that are not
	// digest checked ignore it.
	Digest string

	// Preprocessed is the entity as found in the preprocessed
	// configuration during validation.
	Preprocessed cruise.Validatable

	editView *cruise.CruiseConfig
}

func NewBase(user cruise.Username, result *Result, digest string) Base {
	if result == nil {
		result = NewResult()
	}
	return Base{User: user, Result: result, Digest: digest}
}

// UseEditView sets the merged configuration before preprocessing.
func (b *Base) UseEditView(editView *cruise.CruiseConfig) {
	b.editView = editView
}

// pipelineAsWritten returns p as written in the configuration, before
// templates and params were applied. Without an edit view it returns p.
func (b *Base) pipelineAsWritten(p *cruise.PipelineConfig) *cruise.PipelineConfig {
	if b.editView == nil {
		return p
	}
	if written := b.editView.PipelineConfigByName(p.Name); written != nil {
		return written
	}
	return p
}

func (b *Base) PreprocessedEntity() cruise.Validatable {
	return b.Preprocessed
}

// IsFresh reports whether the client digest matches actual, recording a
// stale result when it does not.
func (b *Base) IsFresh(kind, id, actual string) bool {
	if b.Digest == actual {
		return true
	}
	b.Result.Stale(staleMessage(kind, id))
	return false
}

func (b *Base) isFreshEntity(kind, id string, entity any) bool {
	digest, err := cruise.Digest(entity)
	if err != nil {
		b.Result.InternalServerError(err.Error())
		return false
	}
	return b.IsFresh(kind, id, digest)
}

func (b *Base) isUserAdmin(c *cruise.CruiseConfig, kind, id string) bool {
	if c.IsAdministrator(b.User) {
		return true
	}
	b.Result.Forbidden(forbiddenMessage(b.User.Name, kind, id))
	return false
}

func (b *Base) isUserGroupAdmin(c *cruise.CruiseConfig, group, kind, id string) bool {
	if c.IsGroupAdministrator(group, b.User) {
		return true
	}
	b.Result.Forbidden(forbiddenMessage(b.User.Name, kind, id))
	return false
}

func (b *Base) isUserTemplateAdmin(c *cruise.CruiseConfig, template string) bool {
	if c.IsTemplateAdministrator(template, b.User) {
		return true
	}
	b.Result.Forbidden(forbiddenMessage(b.User.Name, kindTemplate, template))
	return false
}

// validate validates the whole preprocessed tree and copies the errors of
// found, the entity's node in that tree, onto target.
func (b *Base) validate(preprocessed *cruise.CruiseConfig, found, target cruise.Validatable, kind, id string) bool {
	valid := cruise.ValidateTree(preprocessed)
	if found != nil {
		b.Preprocessed = found
		if target != nil {
			cruise.CopyErrors(found, target)
		}
	}
	if valid {
		return true
	}
	var errs []string
	if target != nil {
		errs = cruise.AllErrors(target)
	}
	if len(errs) == 0 {
		errs = cruise.AllErrors(preprocessed)
	}
	b.Result.UnprocessableEntity(validationFailedMessage(kind, id, errs))
	return false
}

const (
	kindPipeline          = "pipeline"
	kindGroup             = "pipeline group"
	kindEnvironment       = "environment"
	kindRole              = "role"
	kindElasticProfile    = "elastic agent profile"
	kindClusterProfile    = "cluster profile"
	kindArtifactStore     = "artifact store"
	kindTemplate          = "template"
	kindPackageRepository = "package repository"
	kindPackageDefinition = "package definition"
	kindSCM               = "SCM"
	kindConfigRepo        = "config repo"
	kindAdmins            = "security"
)
