package cruise

import (
	"fmt"
	"regexp"
	"strings"
)

// Validatable is a node of the configuration tree that can carry errors.
type Validatable interface {
	Validate(ValidationContext)
	Errors() ConfigErrors
	AddError(field, msg string)
	ClearErrors()
	Children() []Validatable
}

// ValidationContext gives a node access to the root config and to the
// nodes enclosing it.
type ValidationContext struct {
	Config   *CruiseConfig
	Group    *PipelineGroup
	Pipeline *PipelineConfig
	Template *PipelineTemplate
	Stage    *StageConfig
	Job      *JobConfig
}

func NewValidationContext(c *CruiseConfig) ValidationContext {
	return ValidationContext{Config: c}
}

func (vc ValidationContext) With(node Validatable) ValidationContext {
	switch n := node.(type) {
	case *PipelineGroup:
		vc.Group = n
	case *PipelineConfig:
		vc.Pipeline = n
	case *PipelineTemplate:
		vc.Template = n
	case *StageConfig:
		vc.Stage = n
	case *JobConfig:
		vc.Job = n
	}
	return vc
}

// ValidateTree validates every node below root, recording errors on the
// nodes. It reports whether the tree is free of errors.
func ValidateTree(root *CruiseConfig) bool {
	walkValidate(root, NewValidationContext(root))
	return !HasErrors(root)
}

// ValidateNode validates node and its descendants within ctx.
func ValidateNode(node Validatable, ctx ValidationContext) bool {
	walkValidate(node, ctx)
	return !HasErrors(node)
}

func walkValidate(node Validatable, ctx ValidationContext) {
	ctx = ctx.With(node)
	node.Validate(ctx)
	for _, child := range node.Children() {
		walkValidate(child, ctx)
	}
}

func HasErrors(node Validatable) bool {
	if !node.Errors().IsEmpty() {
		return true
	}
	for _, child := range node.Children() {
		if HasErrors(child) {
			return true
		}
	}
	return false
}

// AllErrors flattens the messages of node and its descendants.
func AllErrors(node Validatable) []string {
	out := node.Errors().All()
	for _, child := range node.Children() {
		out = append(out, AllErrors(child)...)
	}
	return out
}

func ClearAllErrors(node Validatable) {
	node.ClearErrors()
	for _, child := range node.Children() {
		ClearAllErrors(child)
	}
}

// CopyErrors walks from and to in parallel and copies the errors of each
// node of from onto the node at the same position in to. Children beyond
// the shorter list are skipped.
func CopyErrors(from, to Validatable) {
	if from == nil || to == nil {
		return
	}
	to.Errors().AddAll(from.Errors())
	fc, tc := from.Children(), to.Children()
	for i := 0; i < len(fc) && i < len(tc); i++ {
		CopyErrors(fc[i], tc[i])
	}
}

var (
	nameRegex     = regexp.MustCompile(`^[a-zA-Z0-9_\-][a-zA-Z0-9_\-.]*$`)
	resourceRegex = regexp.MustCompile(`^[-\w\s|.]*$`)
)

const maxNameLength = 255

func validateName(node Validatable, field, kind, name string) {
	if strings.TrimSpace(name) == "" {
		node.AddError(field, fmt.Sprintf("Invalid %s name ''. This must be alphanumeric and can contain underscores, hyphens and periods (however, it cannot start with a period). The maximum allowed length is %d characters.", kind, maxNameLength))
		return
	}
	if !nameRegex.MatchString(name) || len(name) > maxNameLength {
		node.AddError(field, fmt.Sprintf("Invalid %s name '%s'. This must be alphanumeric and can contain underscores, hyphens and periods (however, it cannot start with a period). The maximum allowed length is %d characters.", kind, name, maxNameLength))
	}
}

func validateID(node Validatable, kind, id string) {
	validateName(node, "id", kind+" id", id)
}

func validatePluginID(node Validatable, pluginID string) {
	if strings.TrimSpace(pluginID) == "" {
		node.AddError("plugin_id", "Plugin id cannot be blank.")
	}
}

func markDuplicates[T any](items []T, key func(*T) string, report func(*T, string)) {
	counts := make(map[string]int, len(items))
	for i := range items {
		counts[strings.ToLower(key(&items[i]))]++
	}
	for i := range items {
		k := key(&items[i])
		if k != "" && counts[strings.ToLower(k)] > 1 {
			report(&items[i], k)
		}
	}
}

func validateEnvVarNames(vars []EnvironmentVariable, owner string) {
	markDuplicates(vars,
		func(v *EnvironmentVariable) string { return v.Name },
		func(v *EnvironmentVariable, name string) {
			v.AddError("name", fmt.Sprintf("Environment Variable name '%s' is not unique for %s.", name, owner))
		})
}

func validatePropertyKeys(props []ConfigurationProperty) {
	markDuplicates(props,
		func(p *ConfigurationProperty) string { return p.Key },
		func(p *ConfigurationProperty, key string) {
			p.AddError("key", fmt.Sprintf("Duplicate key '%s' found.", key))
		})
}

func envVarChildren(vars []EnvironmentVariable) []Validatable {
	out := make([]Validatable, 0, len(vars))
	for i := range vars {
		out = append(out, &vars[i])
	}
	return out
}

func propertyChildren(props []ConfigurationProperty) []Validatable {
	out := make([]Validatable, 0, len(props))
	for i := range props {
		out = append(out, &props[i])
	}
	return out
}

func (c *CruiseConfig) Validate(ctx ValidationContext) {
	markDuplicates(c.Groups,
		func(g *PipelineGroup) string { return g.Name },
		func(g *PipelineGroup, name string) {
			g.AddError("name", fmt.Sprintf("Group with name '%s' already exists", name))
		})

	pipelines := c.AllPipelines()
	seen := make(map[string][]*PipelineConfig, len(pipelines))
	for _, p := range pipelines {
		k := strings.ToLower(p.Name)
		seen[k] = append(seen[k], p)
	}
	for _, dups := range seen {
		if len(dups) < 2 {
			continue
		}
		sources := make([]string, 0, len(dups))
		for _, p := range dups {
			if p.IsLocal() {
				sources = append(sources, "main config")
			} else {
				sources = append(sources, p.Origin)
			}
		}
		for _, p := range dups {
			p.AddError("name", fmt.Sprintf("You have defined multiple pipelines named '%s'. Pipeline names must be unique. Source(s): [%s]", p.Name, strings.Join(sources, ", ")))
		}
	}

	markDuplicates(c.Templates,
		func(t *PipelineTemplate) string { return t.Name },
		func(t *PipelineTemplate, name string) {
			t.AddError("name", fmt.Sprintf("Template with name '%s' already exists", name))
		})
	markDuplicates(c.Environments,
		func(e *EnvironmentConfig) string { return e.Name },
		func(e *EnvironmentConfig, name string) {
			e.AddError("name", fmt.Sprintf("Environment with name '%s' already exists.", name))
		})
	markDuplicates(c.ElasticProfiles,
		func(p *ElasticProfile) string { return p.ID },
		func(p *ElasticProfile, id string) {
			p.AddError("id", fmt.Sprintf("Elastic agent profile id '%s' is not unique", id))
		})
	markDuplicates(c.ClusterProfiles,
		func(p *ClusterProfile) string { return p.ID },
		func(p *ClusterProfile, id string) {
			p.AddError("id", fmt.Sprintf("Cluster profile id '%s' is not unique", id))
		})
	markDuplicates(c.ArtifactStores,
		func(s *ArtifactStore) string { return s.ID },
		func(s *ArtifactStore, id string) {
			s.AddError("id", fmt.Sprintf("Artifact store id '%s' is not unique", id))
		})
	markDuplicates(c.PackageRepositories,
		func(r *PackageRepository) string { return r.ID },
		func(r *PackageRepository, id string) {
			r.AddError("id", fmt.Sprintf("You have defined multiple repositories called '%s'. Repository ids must be unique.", id))
		})
	markDuplicates(c.PackageRepositories,
		func(r *PackageRepository) string { return r.Name },
		func(r *PackageRepository, name string) {
			r.AddError("name", fmt.Sprintf("You have defined multiple repositories called '%s'. Repository names are case-insensitive and must be unique.", name))
		})
	packageIDs := make(map[string]int)
	for _, r := range c.PackageRepositories {
		for _, pkg := range r.Packages {
			packageIDs[strings.ToLower(pkg.ID)]++
		}
	}
	for ri := range c.PackageRepositories {
		for pi := range c.PackageRepositories[ri].Packages {
			pkg := &c.PackageRepositories[ri].Packages[pi]
			if pkg.ID != "" && packageIDs[strings.ToLower(pkg.ID)] > 1 {
				pkg.AddError("id", fmt.Sprintf("Cannot save package or repo, found duplicate packages. [Package id: %s]", pkg.ID))
			}
		}
	}
	markDuplicates(c.SCMs,
		func(s *SCM) string { return s.ID },
		func(s *SCM, id string) {
			s.AddError("id", fmt.Sprintf("Cannot save SCM, found duplicate SCMs. [SCM id: %s]", id))
		})
	markDuplicates(c.SCMs,
		func(s *SCM) string { return s.Name },
		func(s *SCM, name string) {
			s.AddError("name", fmt.Sprintf("Cannot save SCM, found multiple SCMs called '%s'. SCM names are case-insensitive and must be unique.", name))
		})
	markDuplicates(c.ConfigRepos,
		func(r *ConfigRepo) string { return r.ID },
		func(r *ConfigRepo, id string) {
			r.AddError("id", fmt.Sprintf("You have defined multiple configuration repositories with the same id - '%s'.", id))
		})

	envOfPipeline := make(map[string]string)
	for ei := range c.Environments {
		env := &c.Environments[ei]
		for _, p := range env.Pipelines {
			k := strings.ToLower(p)
			if other, ok := envOfPipeline[k]; ok && !strings.EqualFold(other, env.Name) {
				env.AddError("pipelines", fmt.Sprintf("Associating pipeline(s) which is already part of %s environment", other))
				continue
			}
			envOfPipeline[k] = env.Name
		}
	}

	c.validateDependencyCycles()
}

func (c *CruiseConfig) validateDependencyCycles() {
	upstream := make(map[string][]string)
	for _, p := range c.AllPipelines() {
		for _, m := range p.Materials {
			if m.Type == MaterialDependency && m.Pipeline != "" {
				k := strings.ToLower(p.Name)
				upstream[k] = append(upstream[k], strings.ToLower(m.Pipeline))
			}
		}
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	inCycle := make(map[string]bool)
	var stack []string
	var visit func(string)
	visit = func(name string) {
		state[name] = visiting
		stack = append(stack, name)
		for _, up := range upstream[name] {
			switch state[up] {
			case unvisited:
				visit(up)
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					inCycle[stack[i]] = true
					if stack[i] == up {
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}
	for _, p := range c.AllPipelines() {
		if state[strings.ToLower(p.Name)] == unvisited {
			visit(strings.ToLower(p.Name))
		}
	}
	for _, p := range c.AllPipelines() {
		if inCycle[strings.ToLower(p.Name)] {
			p.AddError("materials", fmt.Sprintf("Circular dependency detected involving pipeline '%s'", p.Name))
		}
	}
}

func (c *CruiseConfig) Children() []Validatable {
	out := []Validatable{&c.Server}
	for i := range c.Groups {
		out = append(out, &c.Groups[i])
	}
	for i := range c.Templates {
		out = append(out, &c.Templates[i])
	}
	for i := range c.Environments {
		out = append(out, &c.Environments[i])
	}
	for i := range c.ElasticProfiles {
		out = append(out, &c.ElasticProfiles[i])
	}
	for i := range c.ClusterProfiles {
		out = append(out, &c.ClusterProfiles[i])
	}
	for i := range c.ArtifactStores {
		out = append(out, &c.ArtifactStores[i])
	}
	for i := range c.PackageRepositories {
		out = append(out, &c.PackageRepositories[i])
	}
	for i := range c.SCMs {
		out = append(out, &c.SCMs[i])
	}
	for i := range c.ConfigRepos {
		out = append(out, &c.ConfigRepos[i])
	}
	return out
}

func (s *ServerConfig) Validate(ValidationContext) {}

func (s *ServerConfig) Children() []Validatable {
	return []Validatable{&s.Security}
}

func (s *SecurityConfig) Validate(ValidationContext) {
	markDuplicates(s.Roles,
		func(r *Role) string { return r.Name },
		func(r *Role, name string) {
			r.AddError("name", fmt.Sprintf("Role names should be unique. Role with the name '%s' already exists.", name))
		})
	markDuplicates(s.AuthConfigs,
		func(a *AuthConfig) string { return a.ID },
		func(a *AuthConfig, id string) {
			a.AddError("id", fmt.Sprintf("Security auth config id '%s' is not unique", id))
		})
}

func (s *SecurityConfig) Children() []Validatable {
	out := make([]Validatable, 0, len(s.AuthConfigs)+len(s.Roles)+1)
	for i := range s.AuthConfigs {
		out = append(out, &s.AuthConfigs[i])
	}
	for i := range s.Roles {
		out = append(out, &s.Roles[i])
	}
	return append(out, &s.Admins)
}

func (a *AuthConfig) Validate(ValidationContext) {
	validateID(a, "security auth config", a.ID)
	validatePluginID(a, a.PluginID)
	validatePropertyKeys(a.Properties)
}

func (a *AuthConfig) Children() []Validatable {
	return propertyChildren(a.Properties)
}

func (r *Role) Validate(ctx ValidationContext) {
	validateName(r, "name", "role", r.Name)
	if r.AuthConfigID != "" && ctx.Config.FindAuthConfig(r.AuthConfigID) == nil {
		r.AddError("auth_config_id", fmt.Sprintf("No such security auth configuration present for id: `%s`", r.AuthConfigID))
	}
	for _, u := range r.Users {
		if strings.TrimSpace(u) == "" {
			r.AddError("users", "User name cannot be blank.")
			break
		}
	}
}

func (r *Role) Children() []Validatable { return nil }

func (a *AdminsConfig) Validate(ctx ValidationContext) {
	for _, role := range a.Roles {
		if ctx.Config.FindRole(role) == nil {
			a.AddError("roles", fmt.Sprintf("Role \"%s\" does not exist.", role))
		}
	}
}

func (a *AdminsConfig) Children() []Validatable { return nil }

func (a *Authorization) Validate(ValidationContext) {}

func (a *Authorization) Children() []Validatable {
	return []Validatable{&a.Admins, &a.Operators, &a.Viewers}
}

func (g *PipelineGroup) Validate(ValidationContext) {
	validateName(g, "name", "group", g.Name)
}

func (g *PipelineGroup) Children() []Validatable {
	out := []Validatable{&g.Authorization}
	for i := range g.Pipelines {
		out = append(out, &g.Pipelines[i])
	}
	return out
}

func (p *PipelineConfig) Validate(ctx ValidationContext) {
	validateName(p, "name", "pipeline", p.Name)
	switch p.LockBehavior {
	case "", LockOnFailure, UnlockWhenFinished, LockNone:
	default:
		p.AddError("lock_behavior", fmt.Sprintf("Lock behavior has an invalid value (%s). Valid values are: %s, %s, %s", p.LockBehavior, LockNone, LockOnFailure, UnlockWhenFinished))
	}
	if p.LabelTemplate != "" && !strings.Contains(p.LabelTemplate, "${") {
		p.AddError("label_template", fmt.Sprintf("Invalid label template '%s'. It must contain ${COUNT} or a material reference.", p.LabelTemplate))
	}

	if p.HasTemplate() {
		if len(p.Stages) > 0 && !p.templateApplied {
			p.AddError("stages", fmt.Sprintf("Cannot add stages to pipeline '%s' which already references template '%s'", p.Name, p.Template))
		}
		if ctx.Config.FindTemplate(p.Template) == nil {
			p.AddError("template", fmt.Sprintf("Pipeline '%s' refers to non-existent template '%s'.", p.Name, p.Template))
		}
	} else if len(p.Stages) == 0 {
		p.AddError("stages", "A pipeline must have at least one stage.")
	}
	if len(p.Materials) == 0 {
		p.AddError("materials", "A pipeline must have at least one material")
	}

	markDuplicates(p.Stages,
		func(s *StageConfig) string { return s.Name },
		func(s *StageConfig, name string) {
			s.AddError("name", fmt.Sprintf("You have defined multiple stages called '%s'. Stage names are case-insensitive and must be unique.", name))
		})
	markDuplicates(p.Params,
		func(pa *Param) string { return pa.Name },
		func(_ *Param, name string) {
			p.AddError("params", fmt.Sprintf("Param name '%s' is not unique for pipeline '%s'.", name, p.Name))
		})
	validateEnvVarNames(p.EnvironmentVariables, fmt.Sprintf("pipeline '%s'", p.Name))
}

func (p *PipelineConfig) Children() []Validatable {
	out := envVarChildren(p.EnvironmentVariables)
	for i := range p.Materials {
		out = append(out, &p.Materials[i])
	}
	for i := range p.Stages {
		out = append(out, &p.Stages[i])
	}
	return out
}

func (m *Material) Validate(ctx ValidationContext) {
	switch m.Type {
	case MaterialGit:
		if strings.TrimSpace(m.URL) == "" {
			m.AddError("url", "URL cannot be blank")
		}
	case MaterialDependency:
		if m.Pipeline == "" {
			m.AddError("pipeline", "Pipeline name cannot be blank")
			return
		}
		if !ctx.Config.HasPipelineNamed(m.Pipeline) {
			m.AddError("pipeline", fmt.Sprintf("Pipeline with name '%s' does not exist, it is defined as a dependency for pipeline '%s'", m.Pipeline, pipelineName(ctx)))
			return
		}
		if ctx.Config.Stage(m.Pipeline, m.Stage) == nil {
			m.AddError("stage", fmt.Sprintf("Stage with name '%s' does not exist on pipeline '%s', it is being referred to from pipeline '%s'", m.Stage, m.Pipeline, pipelineName(ctx)))
		}
	case MaterialPackage:
		if _, pkg := ctx.Config.FindPackageDefinition(m.PackageID); pkg == nil {
			m.AddError("package_id", fmt.Sprintf("Could not find repository for given package id:[%s]", m.PackageID))
		}
	case MaterialPluggable:
		if ctx.Config.FindSCM(m.SCMID) == nil {
			m.AddError("scm_id", fmt.Sprintf("Could not find SCM for given scm id: [%s].", m.SCMID))
		}
	default:
		m.AddError("type", fmt.Sprintf("Unknown material type '%s'", m.Type))
	}
}

func (m *Material) Children() []Validatable { return nil }

func pipelineName(ctx ValidationContext) string {
	if ctx.Pipeline != nil {
		return ctx.Pipeline.Name
	}
	return ""
}

func (s *StageConfig) Validate(ctx ValidationContext) {
	validateName(s, "name", "stage", s.Name)
	switch s.Approval {
	case "", ApprovalSuccess, ApprovalManual:
	default:
		s.AddError("approval", fmt.Sprintf("You have defined approval type as '%s'. Approval can only be of the type '%s' or '%s'.", s.Approval, ApprovalManual, ApprovalSuccess))
	}
	if len(s.Jobs) == 0 {
		s.AddError("jobs", fmt.Sprintf("Stage '%s' must have at least one job.", s.Name))
	}
	markDuplicates(s.Jobs,
		func(j *JobConfig) string { return j.Name },
		func(j *JobConfig, name string) {
			j.AddError("name", fmt.Sprintf("You have defined multiple jobs called '%s'. Job names are case-insensitive and must be unique.", name))
		})
	validateEnvVarNames(s.EnvironmentVariables, fmt.Sprintf("stage '%s'", s.Name))
}

func (s *StageConfig) Children() []Validatable {
	out := envVarChildren(s.EnvironmentVariables)
	for i := range s.Jobs {
		out = append(out, &s.Jobs[i])
	}
	return out
}

func (j *JobConfig) Validate(ctx ValidationContext) {
	validateName(j, "name", "job", j.Name)
	if j.ElasticProfileID != "" {
		if len(j.Resources) > 0 {
			j.AddError("elastic_profile_id", "Job cannot have both `resource` and `elastic_profile_id`")
		}
		if ctx.Config.FindElasticProfile(j.ElasticProfileID) == nil {
			j.AddError("elastic_profile_id", fmt.Sprintf("No profile defined corresponding to profile_id '%s'", j.ElasticProfileID))
		}
	}
	for _, r := range j.Resources {
		if !resourceRegex.MatchString(r) {
			j.AddError("resources", fmt.Sprintf("Resource name '%s' is not valid. Valid names much match '%s'", r, resourceRegex.String()))
		}
	}
	if j.RunInstanceCount < 0 {
		j.AddError("run_instance_count", "'Run Instance Count' cannot be a negative number as it represents number of instances Go needs to spawn during runtime.")
	}
	if j.RunOnAllAgents && j.RunInstanceCount > 0 {
		j.AddError("run_instance_count", "Job cannot be 'run on all agents' type and 'run multiple instance' type together.")
	}
	if j.Timeout < 0 {
		j.AddError("timeout", "Timeout should be a non negative number as it represents number of minutes Go waits before cancelling a hung job.")
	}
	validateEnvVarNames(j.EnvironmentVariables, fmt.Sprintf("job '%s'", j.Name))
}

func (j *JobConfig) Children() []Validatable {
	out := envVarChildren(j.EnvironmentVariables)
	for i := range j.Tasks {
		out = append(out, &j.Tasks[i])
	}
	return out
}

func (t *Task) Validate(ctx ValidationContext) {
	switch t.Type {
	case TaskExec:
		if strings.TrimSpace(t.Command) == "" {
			t.AddError("command", "Command cannot be empty")
		}
	case TaskFetch, TaskPluggableFetch:
		t.validateFetch(ctx)
	default:
		t.AddError("type", fmt.Sprintf("Unknown task type '%s'", t.Type))
	}
}

func (t *Task) validateFetch(ctx ValidationContext) {
	if t.Stage == "" {
		t.AddError("stage", "Stage is a required field.")
	}
	if t.Job == "" {
		t.AddError("job", "Job is a required field.")
	}
	if t.Type == TaskFetch && strings.TrimSpace(t.Source) == "" {
		t.AddError("source", "Should provide either srcdir or srcfile")
	}
	if t.Type == TaskPluggableFetch {
		if strings.TrimSpace(t.ArtifactID) == "" {
			t.AddError("artifact_id", "Artifact Id cannot be blank.")
		}
		if t.StoreID != "" && ctx.Config.FindArtifactStore(t.StoreID) == nil {
			t.AddError("store_id", fmt.Sprintf("Artifact store with id `%s` does not exist.", t.StoreID))
		}
	}
	// Template fetch tasks are resolved once expanded into pipelines.
	if ctx.Pipeline == nil || t.Stage == "" || t.Job == "" {
		return
	}
	pipeline := t.Pipeline
	if pipeline == "" {
		pipeline = ctx.Pipeline.Name
	}
	if strings.Contains(pipeline, "#{") {
		return
	}
	if !ctx.Config.HasPipelineNamed(pipeline) {
		t.AddError("pipeline", fmt.Sprintf("Pipeline \"%s\" tries to fetch artifact from pipeline \"%s\" which does not exist.", ctx.Pipeline.Name, pipeline))
		return
	}
	stage := ctx.Config.Stage(pipeline, t.Stage)
	if stage == nil {
		t.AddError("stage", fmt.Sprintf("\"%s :: %s\" tries to fetch artifact from stage \"%s :: %s\" which does not exist.", ctx.Pipeline.Name, stageName(ctx), pipeline, t.Stage))
		return
	}
	if stage.Job(t.Job) == nil {
		t.AddError("job", fmt.Sprintf("\"%s :: %s\" tries to fetch artifact from job \"%s :: %s :: %s\" which does not exist.", ctx.Pipeline.Name, stageName(ctx), pipeline, t.Stage, t.Job))
		return
	}
	if strings.EqualFold(pipeline, ctx.Pipeline.Name) && ctx.Stage != nil {
		current := indexFold(ctx.Pipeline.Stages, ctx.Stage.Name, func(s *StageConfig) string { return s.Name })
		source := indexFold(ctx.Pipeline.Stages, t.Stage, func(s *StageConfig) string { return s.Name })
		if source >= current {
			t.AddError("stage", fmt.Sprintf("\"%s :: %s\" tries to fetch artifact from its stage \"%s\" which does not complete before the current stage \"%s\".", ctx.Pipeline.Name, stageName(ctx), t.Stage, ctx.Stage.Name))
		}
	}
}

func stageName(ctx ValidationContext) string {
	if ctx.Stage != nil {
		return ctx.Stage.Name
	}
	return ""
}

func (t *Task) Children() []Validatable { return nil }

func (v *EnvironmentVariable) Validate(ValidationContext) {
	if strings.TrimSpace(v.Name) == "" {
		v.AddError("name", "Environment Variable cannot have an empty name.")
	}
	if v.Value != "" && v.EncryptedValue != "" {
		v.AddError("value", "You may only specify `value` or `encrypted_value`, not both!")
	}
	if !v.Secure && v.EncryptedValue != "" {
		v.AddError("encrypted_value", "You may specify `encrypted_value` only when option `secure` is true.")
	}
}

func (v *EnvironmentVariable) Children() []Validatable { return nil }

func (p *ConfigurationProperty) Validate(ValidationContext) {
	if strings.TrimSpace(p.Key) == "" {
		p.AddError("key", "Key cannot be blank.")
	}
	if p.Value != "" && p.EncryptedValue != "" {
		p.AddError("value", "You may only specify `value` or `encrypted_value`, not both!")
	}
}

func (p *ConfigurationProperty) Children() []Validatable { return nil }

func (t *PipelineTemplate) Validate(ValidationContext) {
	validateName(t, "name", "template", t.Name)
	if len(t.Stages) == 0 {
		t.AddError("stages", fmt.Sprintf("The template '%s' does not have any stages.", t.Name))
	}
	markDuplicates(t.Stages,
		func(s *StageConfig) string { return s.Name },
		func(s *StageConfig, name string) {
			s.AddError("name", fmt.Sprintf("You have defined multiple stages called '%s'. Stage names are case-insensitive and must be unique.", name))
		})
}

func (t *PipelineTemplate) Children() []Validatable {
	out := []Validatable{&t.Authorization}
	for i := range t.Stages {
		out = append(out, &t.Stages[i])
	}
	return out
}

func (e *EnvironmentConfig) Validate(ctx ValidationContext) {
	validateName(e, "name", "environment", e.Name)
	for _, p := range e.Pipelines {
		if !ctx.Config.HasPipelineNamed(p) {
			e.AddError("pipelines", fmt.Sprintf("Environment '%s' refers to an unknown pipeline '%s'.", e.Name, p))
		}
	}
	seen := make(map[string]bool, len(e.Pipelines))
	for _, p := range e.Pipelines {
		k := strings.ToLower(p)
		if seen[k] {
			e.AddError("pipelines", fmt.Sprintf("Environment '%s' lists pipeline '%s' more than once.", e.Name, p))
		}
		seen[k] = true
	}
	validateEnvVarNames(e.EnvironmentVariables, fmt.Sprintf("environment '%s'", e.Name))
}

func (e *EnvironmentConfig) Children() []Validatable {
	return envVarChildren(e.EnvironmentVariables)
}

func (p *ElasticProfile) Validate(ctx ValidationContext) {
	validateID(p, "elastic agent profile", p.ID)
	if strings.TrimSpace(p.ClusterProfileID) == "" {
		p.AddError("cluster_profile_id", "Cluster profile id cannot be blank.")
	} else if ctx.Config.FindClusterProfile(p.ClusterProfileID) == nil {
		p.AddError("cluster_profile_id", fmt.Sprintf("No Cluster Profile exists with the specified cluster_profile_id '%s'.", p.ClusterProfileID))
	}
	validatePropertyKeys(p.Properties)
}

func (p *ElasticProfile) Children() []Validatable {
	return propertyChildren(p.Properties)
}

func (p *ClusterProfile) Validate(ValidationContext) {
	validateID(p, "cluster profile", p.ID)
	validatePluginID(p, p.PluginID)
	validatePropertyKeys(p.Properties)
}

func (p *ClusterProfile) Children() []Validatable {
	return propertyChildren(p.Properties)
}

func (s *ArtifactStore) Validate(ValidationContext) {
	validateID(s, "artifact store", s.ID)
	validatePluginID(s, s.PluginID)
	validatePropertyKeys(s.Properties)
}

func (s *ArtifactStore) Children() []Validatable {
	return propertyChildren(s.Properties)
}

func (r *PackageRepository) Validate(ValidationContext) {
	if strings.TrimSpace(r.ID) == "" {
		r.AddError("id", "Repository id cannot be blank.")
	}
	validateName(r, "name", "repository", r.Name)
	validatePluginID(r, r.PluginID)
	validatePropertyKeys(r.Configuration)
	markDuplicates(r.Packages,
		func(p *PackageDefinition) string { return p.Name },
		func(p *PackageDefinition, name string) {
			p.AddError("name", fmt.Sprintf("You have defined multiple packages called '%s'. Package names are case-insensitive and must be unique within a repository.", name))
		})
}

func (r *PackageRepository) Children() []Validatable {
	out := propertyChildren(r.Configuration)
	for i := range r.Packages {
		out = append(out, &r.Packages[i])
	}
	return out
}

func (p *PackageDefinition) Validate(ValidationContext) {
	if strings.TrimSpace(p.ID) == "" {
		p.AddError("id", "Package id cannot be blank.")
	}
	validateName(p, "name", "package", p.Name)
	validatePropertyKeys(p.Configuration)
}

func (p *PackageDefinition) Children() []Validatable {
	return propertyChildren(p.Configuration)
}

func (s *SCM) Validate(ValidationContext) {
	if strings.TrimSpace(s.ID) == "" {
		s.AddError("id", "SCM id cannot be blank.")
	}
	validateName(s, "name", "SCM", s.Name)
	validatePluginID(s, s.PluginID)
	validatePropertyKeys(s.Configuration)
}

func (s *SCM) Children() []Validatable {
	return propertyChildren(s.Configuration)
}

func (r *ConfigRepo) Validate(ValidationContext) {
	validateID(r, "config repo", r.ID)
	validatePluginID(r, r.PluginID)
	if r.Material.Type != MaterialGit {
		r.AddError("material", fmt.Sprintf("Config repo material must be of type '%s'", MaterialGit))
	}
	validatePropertyKeys(r.Configuration)
}

func (r *ConfigRepo) Children() []Validatable {
	return append([]Validatable{&r.Material}, propertyChildren(r.Configuration)...)
}
