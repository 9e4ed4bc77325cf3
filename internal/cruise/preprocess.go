package cruise

import (
	"fmt"
	"strings"
)

// Preprocess expands template references and substitutes #{param}
// references in every pipeline. Problems are recorded as errors on the
// pipelines.
func Preprocess(c *CruiseConfig) error {
	for _, p := range c.AllPipelines() {
		if err := applyTemplate(c, p); err != nil {
			return err
		}
		resolveParams(p)
	}
	return nil
}

func applyTemplate(c *CruiseConfig, p *PipelineConfig) error {
	if !p.HasTemplate() || p.templateApplied || len(p.Stages) > 0 {
		return nil
	}
	t := c.FindTemplate(p.Template)
	if t == nil {
		return nil
	}
	stages, err := deepCopy(t.Stages)
	if err != nil {
		return fmt.Errorf("copying stages of template %s: %w", t.Name, err)
	}
	p.Stages = stages
	p.templateApplied = true
	return nil
}

func resolveParams(p *PipelineConfig) {
	resolve := func(field string, s *string) {
		out, err := substituteParams(*s, p.Param)
		if err != nil {
			p.AddError("params", fmt.Sprintf("Error when processing params for '%s' used in field '%s', %s", *s, field, err.Error()))
			return
		}
		*s = out
	}
	resolveVars := func(vars []EnvironmentVariable) {
		for i := range vars {
			if !vars[i].Secure {
				resolve("environment_variables", &vars[i].Value)
			}
		}
	}

	resolve("label_template", &p.LabelTemplate)
	resolveVars(p.EnvironmentVariables)
	for i := range p.Materials {
		m := &p.Materials[i]
		resolve("url", &m.URL)
		resolve("branch", &m.Branch)
	}
	for si := range p.Stages {
		s := &p.Stages[si]
		resolveVars(s.EnvironmentVariables)
		for ji := range s.Jobs {
			j := &s.Jobs[ji]
			resolve("elastic_profile_id", &j.ElasticProfileID)
			for ri := range j.Resources {
				resolve("resources", &j.Resources[ri])
			}
			resolveVars(j.EnvironmentVariables)
			for ti := range j.Tasks {
				t := &j.Tasks[ti]
				resolve("command", &t.Command)
				for ai := range t.Args {
					resolve("args", &t.Args[ai])
				}
				resolve("pipeline", &t.Pipeline)
				resolve("source", &t.Source)
			}
		}
	}
}

// substituteParams replaces #{name} with the value returned by lookup.
// A literal # is written as ##.
func substituteParams(s string, lookup func(string) (string, bool)) (string, error) {
	if !strings.Contains(s, "#") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '#' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("# must be followed by a parameter pattern or escaped by another #")
		}
		switch s[i+1] {
		case '#':
			b.WriteByte('#')
			i++
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("parameter pattern is not closed")
			}
			name := s[i+2 : i+2+end]
			if name == "" {
				return "", fmt.Errorf("parameter name cannot be empty")
			}
			value, ok := lookup(name)
			if !ok {
				return "", fmt.Errorf("Parameter '%s' is not defined. All pipelines using this parameter directly or via a template must define it.", name)
			}
			b.WriteString(value)
			i += end + 2
		default:
			return "", fmt.Errorf("# must be followed by a parameter pattern or escaped by another #")
		}
	}
	return b.String(), nil
}
