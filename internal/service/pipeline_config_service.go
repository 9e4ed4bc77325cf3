package service

import (
	"fmt"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/store"
)

type PipelineConfigService struct {
	updater *ConfigUpdater
}

func NewPipelineConfigService(u *ConfigUpdater) *PipelineConfigService {
	return &PipelineConfigService{updater: u}
}

// Get returns a copy of the pipeline as written, with template references
// and params unexpanded, the group holding it and its digest.
func (s *PipelineConfigService) Get(name string) (*cruise.PipelineConfig, string, string, error) {
	c := s.updater.MergedConfigForEdit()
	if c == nil {
		return nil, "", "", store.RecordNotFoundError{Entity: "pipeline", ID: name}
	}
	p := c.PipelineConfigByName(name)
	if p == nil {
		return nil, "", "", store.RecordNotFoundError{Entity: "pipeline", ID: name}
	}
	digest, err := cruise.Digest(p)
	if err != nil {
		return nil, "", "", err
	}
	copied, err := cruise.ClonePipeline(p)
	if err != nil {
		return nil, "", "", err
	}
	return copied, c.FindGroupOfPipeline(name).Name, digest, nil
}

// List returns the names of the pipelines user can view, by group.
func (s *PipelineConfigService) List(user cruise.Username) map[string][]string {
	c := s.updater.CurrentConfig()
	out := make(map[string][]string)
	for _, g := range c.Groups {
		for _, p := range g.Pipelines {
			if c.CanViewPipeline(p.Name, user) {
				out[g.Name] = append(out[g.Name], p.Name)
			}
		}
	}
	return out
}

func (s *PipelineConfigService) Create(user cruise.Username, group string, p *cruise.PipelineConfig) *command.Result {
	result := command.NewResult()
	cmd := command.NewPipelineCreateCommand(command.NewBase(user, result, ""), group, p)
	s.updater.Update(cmd, user, result, createdMessage("pipeline", p.Name))
	return result
}

// Update replaces the pipeline. A non-empty group moves it there.
func (s *PipelineConfigService) Update(
	user cruise.Username,
	name, group, digest string,
	p *cruise.PipelineConfig,
) *command.Result {
	result := command.NewResult()
	cmd := command.NewPipelineUpdateCommand(command.NewBase(user, result, digest), name, group, p)
	s.updater.Update(cmd, user, result, updatedMessage("pipeline", name))
	return result
}

func (s *PipelineConfigService) Delete(user cruise.Username, name string) *command.Result {
	result := command.NewResult()
	cmd := command.NewPipelineDeleteCommand(command.NewBase(user, result, ""), name)
	s.updater.Update(cmd, user, result, deletedMessage("pipeline", name))
	return result
}

// ExtractTemplate creates template from the stages of pipeline.
func (s *PipelineConfigService) ExtractTemplate(user cruise.Username, pipeline, template string) *command.Result {
	result := command.NewResult()
	cmd := command.NewExtractTemplateCommand(command.NewBase(user, result, ""), pipeline, template)
	s.updater.Update(cmd, user, result, fmt.Sprintf(
		"Template '%s' was extracted from pipeline '%s' successfully.", template, pipeline,
	))
	return result
}
