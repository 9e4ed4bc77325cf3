package command

import (
	"fmt"
	"slices"
	"strings"

	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/util"
)

func remoteEnvironmentMessage(name, origin string) string {
	return fmt.Sprintf(
		"Environment '%s' is defined remotely in config repo '%s' and cannot be edited.", name, origin,
	)
}

// environmentCommand holds the checks shared by the environment commands.
type environmentCommand struct {
	Base
	name     string
	existing *cruise.EnvironmentConfig
}

// canEdit authorizes the user and checks that name exists and has a local
// definition.
func (cmd *environmentCommand) canEdit(c *cruise.CruiseConfig) bool {
	if !cmd.isUserAdmin(c, kindEnvironment, cmd.name) {
		return false
	}
	cmd.existing = c.FindEnvironment(cmd.name)
	if cmd.existing == nil {
		cmd.Result.NotFound(notFoundMessage(kindEnvironment, cmd.name))
		return false
	}
	if !cmd.existing.IsLocal() {
		cmd.Result.UnprocessableEntity(remoteEnvironmentMessage(cmd.name, cmd.existing.Origin))
		return false
	}
	return true
}

func (cmd *environmentCommand) validateEnvironment(preprocessed *cruise.CruiseConfig, target *cruise.EnvironmentConfig) bool {
	var found cruise.Validatable
	if e := preprocessed.FindEnvironment(cmd.name); e != nil {
		found = e
	}
	var t cruise.Validatable
	if target != nil {
		t = target
	}
	return cmd.validate(preprocessed, found, t, kindEnvironment, cmd.name)
}

func localEnvironment(modified *cruise.CruiseConfig, name string) (*cruise.EnvironmentConfig, error) {
	e := modified.FindEnvironment(name)
	if e == nil {
		return nil, NewBadRequestError("%s", notFoundMessage(kindEnvironment, name))
	}
	return e, nil
}

type EnvironmentCreateCommand struct {
	environmentCommand
	env *cruise.EnvironmentConfig
}

func NewEnvironmentCreateCommand(base Base, env *cruise.EnvironmentConfig) *EnvironmentCreateCommand {
	return &EnvironmentCreateCommand{
		environmentCommand: environmentCommand{Base: base, name: env.Name},
		env:                env,
	}
}

func (cmd *EnvironmentCreateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.isUserAdmin(c, kindEnvironment, cmd.name) {
		return false
	}
	if c.FindEnvironment(cmd.name) != nil {
		cmd.Result.UnprocessableEntity(alreadyExistsMessage(kindEnvironment, cmd.name))
		return false
	}
	return true
}

func (cmd *EnvironmentCreateCommand) Update(modified *cruise.CruiseConfig) error {
	env := *cmd.env
	env.Origin = ""
	env.RemotePipelines = nil
	modified.Environments = append(modified.Environments, env)
	return nil
}

func (cmd *EnvironmentCreateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validateEnvironment(preprocessed, cmd.env)
}

func (cmd *EnvironmentCreateCommand) ClearErrors() {
	cruise.ClearAllErrors(cmd.env)
}

// EnvironmentUpdateCommand replaces the local definition of an environment.
// Pipelines associated by config repos stay with their repos.
type EnvironmentUpdateCommand struct {
	environmentCommand
	env *cruise.EnvironmentConfig
}

func NewEnvironmentUpdateCommand(base Base, name string, env *cruise.EnvironmentConfig) *EnvironmentUpdateCommand {
	return &EnvironmentUpdateCommand{
		environmentCommand: environmentCommand{Base: base, name: name},
		env:                env,
	}
}

func (cmd *EnvironmentUpdateCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.canEdit(c) {
		return false
	}
	if !strings.EqualFold(cmd.env.Name, cmd.name) {
		cmd.Result.UnprocessableEntity(renameMessage(kindEnvironment))
		return false
	}
	return cmd.isFreshEntity(kindEnvironment, cmd.name, cmd.existing)
}

func (cmd *EnvironmentUpdateCommand) Update(modified *cruise.CruiseConfig) error {
	local, err := localEnvironment(modified, cmd.name)
	if err != nil {
		return err
	}
	env := *cmd.env
	env.Pipelines = slices.DeleteFunc(slices.Clone(env.Pipelines), func(p string) bool {
		return cmd.existing.RemoteOriginOf(p) != ""
	})
	env.Origin = ""
	env.RemotePipelines = nil
	*local = env
	return nil
}

func (cmd *EnvironmentUpdateCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validateEnvironment(preprocessed, cmd.env)
}

func (cmd *EnvironmentUpdateCommand) ClearErrors() {
	cruise.ClearAllErrors(cmd.env)
}

// EnvironmentPatch lists what to add to and remove from an environment.
type EnvironmentPatch struct {
	PipelinesToAdd    []string
	PipelinesToRemove []string
	AgentsToAdd       []string
	AgentsToRemove    []string
	VariablesToAdd    []cruise.EnvironmentVariable
	VariablesToRemove []string
}

// EnvironmentPatchCommand applies an EnvironmentPatch. It is not digest
// checked.
type EnvironmentPatchCommand struct {
	environmentCommand
	patch EnvironmentPatch
}

func NewEnvironmentPatchCommand(base Base, name string, patch EnvironmentPatch) *EnvironmentPatchCommand {
	return &EnvironmentPatchCommand{
		environmentCommand: environmentCommand{Base: base, name: name},
		patch:              patch,
	}
}

func (cmd *EnvironmentPatchCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.canEdit(c) {
		return false
	}
	env := cmd.existing
	for _, p := range cmd.patch.PipelinesToRemove {
		if origin := env.RemoteOriginOf(p); origin != "" {
			cmd.Result.UnprocessableEntity(fmt.Sprintf(
				"Pipeline '%s' cannot be removed from environment '%s' as the association has been defined remotely in [%s]",
				p, env.Name, origin,
			))
			return false
		}
		if !env.ContainsPipeline(p) {
			cmd.Result.UnprocessableEntity(fmt.Sprintf(
				"Pipeline '%s' does not exist in environment '%s'", p, env.Name,
			))
			return false
		}
	}
	for _, a := range cmd.patch.AgentsToRemove {
		if !util.ContainsFold(env.Agents, a) {
			cmd.Result.UnprocessableEntity(fmt.Sprintf(
				"Agent with uuid '%s' does not exist in environment '%s'", a, env.Name,
			))
			return false
		}
	}
	for _, name := range cmd.patch.VariablesToRemove {
		if !slices.ContainsFunc(env.EnvironmentVariables, func(v cruise.EnvironmentVariable) bool {
			return v.Name == name
		}) {
			cmd.Result.UnprocessableEntity(fmt.Sprintf(
				"Environment variable with name '%s' does not exist in environment '%s'", name, env.Name,
			))
			return false
		}
	}
	return true
}

func (cmd *EnvironmentPatchCommand) Update(modified *cruise.CruiseConfig) error {
	env, err := localEnvironment(modified, cmd.name)
	if err != nil {
		return err
	}
	env.Pipelines = util.RemoveFold(
		util.NormalizeList(slices.Concat(env.Pipelines, cmd.patch.PipelinesToAdd)),
		cmd.patch.PipelinesToRemove...,
	)
	env.Agents = util.RemoveFold(
		util.NormalizeList(slices.Concat(env.Agents, cmd.patch.AgentsToAdd)),
		cmd.patch.AgentsToRemove...,
	)
	env.EnvironmentVariables = slices.DeleteFunc(env.EnvironmentVariables, func(v cruise.EnvironmentVariable) bool {
		return slices.Contains(cmd.patch.VariablesToRemove, v.Name)
	})
	env.EnvironmentVariables = append(env.EnvironmentVariables, cmd.patch.VariablesToAdd...)
	return nil
}

func (cmd *EnvironmentPatchCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validateEnvironment(preprocessed, nil)
}

func (cmd *EnvironmentPatchCommand) ClearErrors() {}

type EnvironmentDeleteCommand struct {
	environmentCommand
}

func NewEnvironmentDeleteCommand(base Base, name string) *EnvironmentDeleteCommand {
	return &EnvironmentDeleteCommand{environmentCommand{Base: base, name: name}}
}

func (cmd *EnvironmentDeleteCommand) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.canEdit(c) {
		return false
	}
	cmd.Preprocessed = cmd.existing
	return true
}

func (cmd *EnvironmentDeleteCommand) Update(modified *cruise.CruiseConfig) error {
	before := len(modified.Environments)
	modified.Environments = slices.DeleteFunc(modified.Environments, func(e cruise.EnvironmentConfig) bool {
		return strings.EqualFold(e.Name, cmd.name)
	})
	if len(modified.Environments) == before {
		return NewBadRequestError("%s", notFoundMessage(kindEnvironment, cmd.name))
	}
	return nil
}

func (cmd *EnvironmentDeleteCommand) IsValid(preprocessed *cruise.CruiseConfig) bool {
	return cmd.validate(preprocessed, nil, nil, kindEnvironment, cmd.name)
}

func (cmd *EnvironmentDeleteCommand) ClearErrors() {}
