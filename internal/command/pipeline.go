package command

import (
	"fmt"
	"strings"

	"github.com/haatos/simple-cd/internal/cruise"
)

func remotePipelineMessage(name, origin string) string {
	return fmt.Sprintf("Can not operate on pipeline '%s' as it is defined remotely in '%s'.", name, origin)
}

// PipelineCreateCommand adds a pipeline to a group, creating the group when
// it does not exist.
type PipelineCreateCommand struct {
	Base
	group    string
	pipeline *cruise.PipelineConfig
}

func NewPipelineCreateCommand(base Base, group string, p *cruise.PipelineConfig) *PipelineCreateCommand {
	return &PipelineCreateCommand{Base: base, group: group, pipeline: p}
}

func (cmd *PipelineCreateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if strings.TrimSpace(cmd.group) == "" {
		cmd.Result.UnprocessableEntity("Pipeline group must be specified for creating a pipeline.")
		return false
	}
	if c.FindGroup(cmd.group) == nil {
		if !cmd.isUserAdmin(c, kindPipeline, cmd.pipeline.Name) {
			return false
		}
	} else if !cmd.isUserGroupAdmin(c, cmd.group, kindPipeline, cmd.pipeline.Name) {
		return false
	}
	if c.HasPipelineNamed(cmd.pipeline.Name) {
		cmd.Result.UnprocessableEntity(alreadyExistsMessage(kindPipeline, cmd.pipeline.Name))
		return false
	}
	return true
}

func (cmd *PipelineCreateCommand) Update(modified *cruise.CruiseConfig) error {
	cmd.pipeline.ClearPreprocessing()
	g := modified.FindOrCreateGroup(cmd.group)
	g.Pipelines = append(g.Pipelines, *cmd.pipeline)
	return nil
}

func (cmd *PipelineCreateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validatePipeline(preprocessed, cmd.pipeline)
}

func (cmd *PipelineCreateCommand) ClearErrors() {
	cruise.ClearAllErrors(cmd.pipeline)
}

func (b *Base) validatePipeline(preprocessed *cruise.CruiseConfig, p *cruise.PipelineConfig) bool {
	var found cruise.Validatable
	if pp := preprocessed.PipelineConfigByName(p.Name); pp != nil {
		found = pp
	}
	return b.validate(preprocessed, found, p, kindPipeline, p.Name)
}

// PipelineUpdateCommand replaces a local pipeline, moving it to group when
// group is set and differs from its current group.
type PipelineUpdateCommand struct {
	Base
	name     string
	group    string
	pipeline *cruise.PipelineConfig
}

func NewPipelineUpdateCommand(base Base, name, group string, p *cruise.PipelineConfig) *PipelineUpdateCommand {
	return &PipelineUpdateCommand{Base: base, name: name, group: group, pipeline: p}
}

func (cmd *PipelineUpdateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	existing := c.PipelineConfigByName(cmd.name)
	if existing == nil {
		cmd.Result.NotFound(notFoundMessage(kindPipeline, cmd.name))
		return false
	}
	current := c.FindGroupOfPipeline(cmd.name)
	if !cmd.isUserGroupAdmin(c, current.Name, kindPipeline, cmd.name) {
		return false
	}
	if cmd.group != "" && !strings.EqualFold(cmd.group, current.Name) &&
		!cmd.isUserGroupAdmin(c, cmd.group, kindPipeline, cmd.name) {
		return false
	}
	if !existing.IsLocal() {
		cmd.Result.UnprocessableEntity(remotePipelineMessage(cmd.name, existing.Origin))
		return false
	}
	if !strings.EqualFold(cmd.pipeline.Name, cmd.name) {
		cmd.Result.UnprocessableEntity(renameMessage(kindPipeline))
		return false
	}
	return cmd.isFreshEntity(kindPipeline, cmd.name, cmd.pipelineAsWritten(existing))
}

func (cmd *PipelineUpdateCommand) Update(modified *cruise.CruiseConfig) error {
	cmd.pipeline.ClearPreprocessing()
	g := modified.FindGroupOfPipeline(cmd.name)
	if g == nil {
		return NewBadRequestError("%s", notFoundMessage(kindPipeline, cmd.name))
	}
	if cmd.group == "" || strings.EqualFold(cmd.group, g.Name) {
		*modified.PipelineConfigByName(cmd.name) = *cmd.pipeline
		return nil
	}
	modified.RemovePipeline(cmd.name)
	target := modified.FindOrCreateGroup(cmd.group)
	target.Pipelines = append(target.Pipelines, *cmd.pipeline)
	return nil
}

func (cmd *PipelineUpdateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validatePipeline(preprocessed, cmd.pipeline)
}

func (cmd *PipelineUpdateCommand) ClearErrors() {
	cruise.ClearAllErrors(cmd.pipeline)
}

// PipelineDeleteCommand removes a local pipeline nothing depends on.
type PipelineDeleteCommand struct {
	Base
	name string
}

func NewPipelineDeleteCommand(base Base, name string) *PipelineDeleteCommand {
	return &PipelineDeleteCommand{Base: base, name: name}
}

func (cmd *PipelineDeleteCommand) CanContinue(c *cruise.CruiseConfig) bool {
	existing := c.PipelineConfigByName(cmd.name)
	if existing == nil {
		cmd.Result.NotFound(notFoundMessage(kindPipeline, cmd.name))
		return false
	}
	if !cmd.isUserGroupAdmin(c, c.FindGroupOfPipeline(cmd.name).Name, kindPipeline, cmd.name) {
		return false
	}
	if !existing.IsLocal() {
		cmd.Result.UnprocessableEntity(remotePipelineMessage(cmd.name, existing.Origin))
		return false
	}
	if dependents := c.PipelinesDependingOn(cmd.name); len(dependents) > 0 {
		cmd.Result.UnprocessableEntity(fmt.Sprintf(
			"Cannot delete pipeline '%s' as pipeline(s) '[%s]' depend on it.", cmd.name, strings.Join(dependents, ", "),
		))
		return false
	}
	if env := c.EnvironmentOfPipeline(cmd.name); env != nil {
		cmd.Result.UnprocessableEntity(fmt.Sprintf(
			"Cannot delete pipeline '%s' as it is present in environment '%s'.", cmd.name, env.Name,
		))
		return false
	}
	cmd.Preprocessed = existing
	return true
}

func (cmd *PipelineDeleteCommand) Update(modified *cruise.CruiseConfig) error {
	if !modified.RemovePipeline(cmd.name) {
		return NewBadRequestError("%s", notFoundMessage(kindPipeline, cmd.name))
	}
	return nil
}

func (cmd *PipelineDeleteCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validate(preprocessed, nil, nil, kindPipeline, cmd.name)
}

func (cmd *PipelineDeleteCommand) ClearErrors() {}

// ExtractTemplateCommand moves the stages of a pipeline into a new template
// and points the pipeline at it.
type ExtractTemplateCommand struct {
	Base
	pipeline string
	template string
	created  *cruise.PipelineTemplate
}

func NewExtractTemplateCommand(base Base, pipeline, template string) *ExtractTemplateCommand {
	return &ExtractTemplateCommand{Base: base, pipeline: pipeline, template: template}
}

func (cmd *ExtractTemplateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.isUserAdmin(c, kindTemplate, cmd.template) {
		return false
	}
	p := c.PipelineConfigByName(cmd.pipeline)
	if p == nil {
		cmd.Result.NotFound(notFoundMessage(kindPipeline, cmd.pipeline))
		return false
	}
	if !p.IsLocal() {
		cmd.Result.UnprocessableEntity(remotePipelineMessage(cmd.pipeline, p.Origin))
		return false
	}
	if p.HasTemplate() {
		cmd.Result.UnprocessableEntity(fmt.Sprintf("Pipeline '%s' already uses template '%s'.", p.Name, p.Template))
		return false
	}
	if c.FindTemplate(cmd.template) != nil {
		cmd.Result.UnprocessableEntity(alreadyExistsMessage(kindTemplate, cmd.template))
		return false
	}
	return true
}

func (cmd *ExtractTemplateCommand) Update(modified *cruise.CruiseConfig) error {
	p := modified.PipelineConfigByName(cmd.pipeline)
	if p == nil {
		return NewBadRequestError("%s", notFoundMessage(kindPipeline, cmd.pipeline))
	}
	cmd.created = &cruise.PipelineTemplate{Name: cmd.template, Stages: p.Stages}
	modified.Templates = append(modified.Templates, *cmd.created)
	p.Stages = nil
	p.Template = cmd.template
	return nil
}

func (cmd *ExtractTemplateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	var found cruise.Validatable
	if t := preprocessed.FindTemplate(cmd.template); t != nil {
		found = t
	}
	return cmd.validate(preprocessed, found, cmd.created, kindTemplate, cmd.template)
}

func (cmd *ExtractTemplateCommand) ClearErrors() {
	if cmd.created != nil {
		cruise.ClearAllErrors(cmd.created)
	}
}

// Template returns the template created by the last Update.
func (cmd *ExtractTemplateCommand) Template() *cruise.PipelineTemplate {
	return cmd.created
}
