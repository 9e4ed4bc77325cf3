package cruise

import (
	"fmt"
	"strings"
)

// Merge returns a copy of main with the pipelines and environments of
// every partial added. Merged entities are tagged with the partial's origin.
func Merge(main *CruiseConfig, partials []PartialConfig) (*CruiseConfig, error) {
	merged, err := Clone(main)
	if err != nil {
		return nil, err
	}
	merged.Partials = nil
	for _, partial := range partials {
		part, err := deepCopy(partial)
		if err != nil {
			return nil, fmt.Errorf("copying partial %s: %w", partial.Origin, err)
		}
		mergeGroups(merged, part)
		mergeEnvironments(merged, part)
		merged.Partials = append(merged.Partials, part)
	}
	return merged, nil
}

func mergeGroups(merged *CruiseConfig, part PartialConfig) {
	for _, g := range part.Groups {
		for i := range g.Pipelines {
			g.Pipelines[i].Origin = part.Origin
		}
		if existing := merged.FindGroup(g.Name); existing != nil {
			existing.Pipelines = append(existing.Pipelines, g.Pipelines...)
			continue
		}
		merged.Groups = append(merged.Groups, g)
	}
}

func mergeEnvironments(merged *CruiseConfig, part PartialConfig) {
	for _, env := range part.Environments {
		existing := merged.FindEnvironment(env.Name)
		if existing == nil {
			env.Origin = part.Origin
			env.RemotePipelines = make(map[string]string, len(env.Pipelines))
			for _, p := range env.Pipelines {
				env.RemotePipelines[strings.ToLower(p)] = part.Origin
			}
			merged.Environments = append(merged.Environments, env)
			continue
		}
		if existing.RemotePipelines == nil {
			existing.RemotePipelines = make(map[string]string)
		}
		for _, p := range env.Pipelines {
			if !existing.ContainsPipeline(p) {
				existing.Pipelines = append(existing.Pipelines, p)
				existing.RemotePipelines[strings.ToLower(p)] = part.Origin
			}
		}
		for _, a := range env.Agents {
			if !containsFold(existing.Agents, a) {
				existing.Agents = append(existing.Agents, a)
			}
		}
		for _, v := range env.EnvironmentVariables {
			if findFold(existing.EnvironmentVariables, v.Name, func(e *EnvironmentVariable) string { return e.Name }) == nil {
				existing.EnvironmentVariables = append(existing.EnvironmentVariables, v)
			}
		}
	}
}

// RemoteOriginOf returns the config repo associating pipeline with the
// environment, empty when the association is local.
func (e *EnvironmentConfig) RemoteOriginOf(pipeline string) string {
	if e.RemotePipelines == nil {
		return ""
	}
	return e.RemotePipelines[strings.ToLower(pipeline)]
}
