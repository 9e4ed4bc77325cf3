package cruise

// CruiseConfig is the whole server configuration document.
type CruiseConfig struct {
	meta                `yaml:"-" json:"-"`
	SchemaVersion       int                 `yaml:"schema_version" json:"schema_version"`
	Server              ServerConfig        `yaml:"server" json:"server"`
	Groups              []PipelineGroup     `yaml:"pipeline_groups,omitempty" json:"pipeline_groups,omitempty"`
	Templates           []PipelineTemplate  `yaml:"templates,omitempty" json:"templates,omitempty"`
	Environments        []EnvironmentConfig `yaml:"environments,omitempty" json:"environments,omitempty"`
	ElasticProfiles     []ElasticProfile    `yaml:"elastic_profiles,omitempty" json:"elastic_profiles,omitempty"`
	ClusterProfiles     []ClusterProfile    `yaml:"cluster_profiles,omitempty" json:"cluster_profiles,omitempty"`
	ArtifactStores      []ArtifactStore     `yaml:"artifact_stores,omitempty" json:"artifact_stores,omitempty"`
	PackageRepositories []PackageRepository `yaml:"package_repositories,omitempty" json:"package_repositories,omitempty"`
	SCMs                []SCM               `yaml:"scms,omitempty" json:"scms,omitempty"`
	ConfigRepos         []ConfigRepo        `yaml:"config_repos,omitempty" json:"config_repos,omitempty"`

	// Partials are merged in from config repositories and never written
	// to the main file.
	Partials []PartialConfig `yaml:"-" json:"-"`
	MD5      string          `yaml:"-" json:"-"`
}

const CurrentSchemaVersion = 1

func NewCruiseConfig() *CruiseConfig {
	return &CruiseConfig{SchemaVersion: CurrentSchemaVersion}
}

type ServerConfig struct {
	meta         `yaml:"-" json:"-"`
	ArtifactsDir string         `yaml:"artifacts_dir,omitempty" json:"artifacts_dir,omitempty"`
	SiteURL      string         `yaml:"site_url,omitempty" json:"site_url,omitempty"`
	Security     SecurityConfig `yaml:"security" json:"security"`
}

type SecurityConfig struct {
	meta        `yaml:"-" json:"-"`
	AuthConfigs []AuthConfig `yaml:"auth_configs,omitempty" json:"auth_configs,omitempty"`
	Roles       []Role       `yaml:"roles,omitempty" json:"roles,omitempty"`
	Admins      AdminsConfig `yaml:"admins" json:"admins"`
}

type AuthConfig struct {
	meta       `yaml:"-" json:"-"`
	ID         string                  `yaml:"id" json:"id"`
	PluginID   string                  `yaml:"plugin_id" json:"plugin_id"`
	Properties []ConfigurationProperty `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Role groups users. A role with an AuthConfigID is resolved by the
// authorization plugin and does not list users.
type Role struct {
	meta         `yaml:"-" json:"-"`
	Name         string   `yaml:"name" json:"name"`
	AuthConfigID string   `yaml:"auth_config_id,omitempty" json:"auth_config_id,omitempty"`
	Users        []string `yaml:"users,omitempty" json:"users,omitempty"`
}

type AdminsConfig struct {
	meta  `yaml:"-" json:"-"`
	Users []string `yaml:"users,omitempty" json:"users,omitempty"`
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`
}

func (a AdminsConfig) IsEmpty() bool {
	return len(a.Users) == 0 && len(a.Roles) == 0
}

type Authorization struct {
	meta      `yaml:"-" json:"-"`
	Admins    AdminsConfig `yaml:"admins" json:"admins"`
	Operators AdminsConfig `yaml:"operators" json:"operators"`
	Viewers   AdminsConfig `yaml:"viewers" json:"viewers"`
}

type PipelineGroup struct {
	meta          `yaml:"-" json:"-"`
	Name          string           `yaml:"name" json:"name"`
	Authorization Authorization    `yaml:"authorization" json:"authorization"`
	Pipelines     []PipelineConfig `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`
}

const (
	LockOnFailure      = "lockOnFailure"
	UnlockWhenFinished = "unlockWhenFinished"
	LockNone           = "none"
)

type PipelineConfig struct {
	meta                 `yaml:"-" json:"-"`
	Name                 string                `yaml:"name" json:"name"`
	LabelTemplate        string                `yaml:"label_template,omitempty" json:"label_template,omitempty"`
	LockBehavior         string                `yaml:"lock_behavior,omitempty" json:"lock_behavior,omitempty"`
	Template             string                `yaml:"template,omitempty" json:"template,omitempty"`
	Params               []Param               `yaml:"params,omitempty" json:"params,omitempty"`
	EnvironmentVariables []EnvironmentVariable `yaml:"environment_variables,omitempty" json:"environment_variables,omitempty"`
	Materials            []Material            `yaml:"materials,omitempty" json:"materials,omitempty"`
	Stages               []StageConfig         `yaml:"stages,omitempty" json:"stages,omitempty"`
	// Origin is the id of the config repo defining this pipeline, empty
	// when it is defined in the main file.
	Origin string `yaml:"origin,omitempty" json:"origin,omitempty"`

	templateApplied bool
}

func (p *PipelineConfig) IsLocal() bool {
	return p.Origin == ""
}

// ClearPreprocessing forgets any template expansion recorded on p. A
// pipeline carrying both a template and stages then fails validation.
func (p *PipelineConfig) ClearPreprocessing() {
	p.templateApplied = false
}

func (p *PipelineConfig) HasTemplate() bool {
	return p.Template != ""
}

func (p *PipelineConfig) Stage(name string) *StageConfig {
	return findFold(p.Stages, name, func(s *StageConfig) string { return s.Name })
}

func (p *PipelineConfig) Param(name string) (string, bool) {
	for _, param := range p.Params {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

type Param struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

const (
	MaterialGit        = "git"
	MaterialDependency = "dependency"
	MaterialPackage    = "package"
	MaterialPluggable  = "pluggable"
)

type Material struct {
	meta      `yaml:"-" json:"-"`
	Type      string `yaml:"type" json:"type"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
	Branch    string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Pipeline  string `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Stage     string `yaml:"stage,omitempty" json:"stage,omitempty"`
	PackageID string `yaml:"package_id,omitempty" json:"package_id,omitempty"`
	SCMID     string `yaml:"scm_id,omitempty" json:"scm_id,omitempty"`
}

const (
	ApprovalSuccess = "success"
	ApprovalManual  = "manual"
)

type StageConfig struct {
	meta                 `yaml:"-" json:"-"`
	Name                 string                `yaml:"name" json:"name"`
	Approval             string                `yaml:"approval,omitempty" json:"approval,omitempty"`
	Jobs                 []JobConfig           `yaml:"jobs,omitempty" json:"jobs,omitempty"`
	EnvironmentVariables []EnvironmentVariable `yaml:"environment_variables,omitempty" json:"environment_variables,omitempty"`
}

func (s *StageConfig) Job(name string) *JobConfig {
	return findFold(s.Jobs, name, func(j *JobConfig) string { return j.Name })
}

type JobConfig struct {
	meta                 `yaml:"-" json:"-"`
	Name                 string                `yaml:"name" json:"name"`
	Resources            []string              `yaml:"resources,omitempty" json:"resources,omitempty"`
	ElasticProfileID     string                `yaml:"elastic_profile_id,omitempty" json:"elastic_profile_id,omitempty"`
	Tasks                []Task                `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	EnvironmentVariables []EnvironmentVariable `yaml:"environment_variables,omitempty" json:"environment_variables,omitempty"`
	RunInstanceCount     int                   `yaml:"run_instance_count,omitempty" json:"run_instance_count,omitempty"`
	RunOnAllAgents       bool                  `yaml:"run_on_all_agents,omitempty" json:"run_on_all_agents,omitempty"`
	Timeout              int                   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

const (
	TaskExec           = "exec"
	TaskFetch          = "fetch"
	TaskPluggableFetch = "pluggable_fetch"
)

type Task struct {
	meta       `yaml:"-" json:"-"`
	Type       string   `yaml:"type" json:"type"`
	Command    string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args       []string `yaml:"args,omitempty" json:"args,omitempty"`
	Pipeline   string   `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`
	Stage      string   `yaml:"stage,omitempty" json:"stage,omitempty"`
	Job        string   `yaml:"job,omitempty" json:"job,omitempty"`
	Source     string   `yaml:"source,omitempty" json:"source,omitempty"`
	ArtifactID string   `yaml:"artifact_id,omitempty" json:"artifact_id,omitempty"`
	StoreID    string   `yaml:"store_id,omitempty" json:"store_id,omitempty"`
}

type EnvironmentVariable struct {
	meta           `yaml:"-" json:"-"`
	Name           string `yaml:"name" json:"name"`
	Value          string `yaml:"value,omitempty" json:"value,omitempty"`
	Secure         bool   `yaml:"secure,omitempty" json:"secure,omitempty"`
	EncryptedValue string `yaml:"encrypted_value,omitempty" json:"encrypted_value,omitempty"`
}

type PipelineTemplate struct {
	meta          `yaml:"-" json:"-"`
	Name          string        `yaml:"name" json:"name"`
	Authorization Authorization `yaml:"authorization" json:"authorization"`
	Stages        []StageConfig `yaml:"stages,omitempty" json:"stages,omitempty"`
}

type EnvironmentConfig struct {
	meta                 `yaml:"-" json:"-"`
	Name                 string                `yaml:"name" json:"name"`
	Pipelines            []string              `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`
	Agents               []string              `yaml:"agents,omitempty" json:"agents,omitempty"`
	EnvironmentVariables []EnvironmentVariable `yaml:"environment_variables,omitempty" json:"environment_variables,omitempty"`
	// Origin is set when the whole environment comes from a config repo.
	Origin string `yaml:"origin,omitempty" json:"origin,omitempty"`
	// RemotePipelines maps pipeline names associated by a config repo to
	// that repo's id.
	RemotePipelines map[string]string `yaml:"remote_pipelines,omitempty" json:"remote_pipelines,omitempty"`
}

func (e *EnvironmentConfig) IsLocal() bool {
	return e.Origin == ""
}

func (e *EnvironmentConfig) ContainsPipeline(name string) bool {
	return containsFold(e.Pipelines, name)
}

type ConfigurationProperty struct {
	meta           `yaml:"-" json:"-"`
	Key            string `yaml:"key" json:"key"`
	Value          string `yaml:"value,omitempty" json:"value,omitempty"`
	Secure         bool   `yaml:"secure,omitempty" json:"secure,omitempty"`
	EncryptedValue string `yaml:"encrypted_value,omitempty" json:"encrypted_value,omitempty"`
}

type ElasticProfile struct {
	meta             `yaml:"-" json:"-"`
	ID               string                  `yaml:"id" json:"id"`
	ClusterProfileID string                  `yaml:"cluster_profile_id" json:"cluster_profile_id"`
	Properties       []ConfigurationProperty `yaml:"properties,omitempty" json:"properties,omitempty"`
}

type ClusterProfile struct {
	meta       `yaml:"-" json:"-"`
	ID         string                  `yaml:"id" json:"id"`
	PluginID   string                  `yaml:"plugin_id" json:"plugin_id"`
	Properties []ConfigurationProperty `yaml:"properties,omitempty" json:"properties,omitempty"`
}

type ArtifactStore struct {
	meta       `yaml:"-" json:"-"`
	ID         string                  `yaml:"id" json:"id"`
	PluginID   string                  `yaml:"plugin_id" json:"plugin_id"`
	Properties []ConfigurationProperty `yaml:"properties,omitempty" json:"properties,omitempty"`
}

type PackageRepository struct {
	meta          `yaml:"-" json:"-"`
	ID            string                  `yaml:"id" json:"id"`
	Name          string                  `yaml:"name" json:"name"`
	PluginID      string                  `yaml:"plugin_id" json:"plugin_id"`
	Configuration []ConfigurationProperty `yaml:"configuration,omitempty" json:"configuration,omitempty"`
	Packages      []PackageDefinition     `yaml:"packages,omitempty" json:"packages,omitempty"`
}

type PackageDefinition struct {
	meta          `yaml:"-" json:"-"`
	ID            string                  `yaml:"id" json:"id"`
	Name          string                  `yaml:"name" json:"name"`
	AutoUpdate    bool                    `yaml:"auto_update,omitempty" json:"auto_update,omitempty"`
	Configuration []ConfigurationProperty `yaml:"configuration,omitempty" json:"configuration,omitempty"`
}

type SCM struct {
	meta          `yaml:"-" json:"-"`
	ID            string                  `yaml:"id" json:"id"`
	Name          string                  `yaml:"name" json:"name"`
	PluginID      string                  `yaml:"plugin_id" json:"plugin_id"`
	Configuration []ConfigurationProperty `yaml:"configuration,omitempty" json:"configuration,omitempty"`
}

type ConfigRepo struct {
	meta          `yaml:"-" json:"-"`
	ID            string                  `yaml:"id" json:"id"`
	PluginID      string                  `yaml:"plugin_id" json:"plugin_id"`
	Material      Material                `yaml:"material" json:"material"`
	Configuration []ConfigurationProperty `yaml:"configuration,omitempty" json:"configuration,omitempty"`
}

// PartialConfig is the part of the configuration parsed from one config
// repository revision.
type PartialConfig struct {
	Origin       string              `yaml:"origin" json:"origin"`
	Revision     string              `yaml:"revision,omitempty" json:"revision,omitempty"`
	Groups       []PipelineGroup     `yaml:"pipeline_groups,omitempty" json:"pipeline_groups,omitempty"`
	Environments []EnvironmentConfig `yaml:"environments,omitempty" json:"environments,omitempty"`
}
