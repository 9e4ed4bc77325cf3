package store

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

type JobState string

const (
	JobScheduled    JobState = "Scheduled"
	JobAssigned     JobState = "Assigned"
	JobPreparing    JobState = "Preparing"
	JobBuilding     JobState = "Building"
	JobCompleting   JobState = "Completing"
	JobCompleted    JobState = "Completed"
	JobRescheduled  JobState = "Rescheduled"
	JobDiscontinued JobState = "Discontinued"
	JobWaiting      JobState = "Waiting"
	JobUnknown      JobState = "Unknown"
)

// completedJobStates are the states a job never leaves.
var completedJobStates = []string{string(JobCompleted), string(JobRescheduled), string(JobDiscontinued)}

func (s JobState) IsCompleted() bool {
	return slices.Contains(completedJobStates, string(s))
}

func (s JobState) IsActive() bool {
	return s != JobUnknown && !s.IsCompleted()
}

// IsBuilding reports whether an agent is working on the job.
func (s JobState) IsBuilding() bool {
	return s == JobAssigned || s == JobPreparing || s == JobBuilding || s == JobCompleting
}

type JobResult string

const (
	ResultPassed    JobResult = "Passed"
	ResultFailed    JobResult = "Failed"
	ResultCancelled JobResult = "Cancelled"
	ResultUnknown   JobResult = "Unknown"
)

type StageState string

const (
	StageBuilding  StageState = "Building"
	StageFailing   StageState = "Failing"
	StagePassed    StageState = "Passed"
	StageFailed    StageState = "Failed"
	StageCancelled StageState = "Cancelled"
	StageUnknown   StageState = "Unknown"
)

func (s StageState) IsActive() bool {
	return s == StageBuilding || s == StageFailing
}

func (s StageState) IsCompleted() bool {
	return s == StagePassed || s == StageFailed || s == StageCancelled
}

// Result returns the stage result matching a completed state.
func (s StageState) Result() JobResult {
	switch s {
	case StagePassed:
		return ResultPassed
	case StageFailed, StageFailing:
		return ResultFailed
	case StageCancelled:
		return ResultCancelled
	default:
		return ResultUnknown
	}
}

type JobStateTransition struct {
	ID              int64     `json:"id"`
	JobID           int64     `db:"build_id" json:"job_id"`
	StageID         int64     `json:"stage_id"`
	State           JobState  `db:"current_state" json:"state"`
	StateChangeTime time.Time `json:"state_change_time"`
}

type JobIdentifier struct {
	PipelineName    string `json:"pipeline_name"`
	PipelineCounter int64  `json:"pipeline_counter"`
	PipelineLabel   string `json:"pipeline_label"`
	StageName       string `json:"stage_name"`
	StageCounter    int64  `json:"stage_counter"`
	BuildName       string `json:"build_name"`
	BuildID         int64  `json:"build_id"`
}

func (id JobIdentifier) StageIdentifier() StageIdentifier {
	return StageIdentifier{
		PipelineName:    id.PipelineName,
		PipelineCounter: id.PipelineCounter,
		PipelineLabel:   id.PipelineLabel,
		StageName:       id.StageName,
		StageCounter:    id.StageCounter,
	}
}

func (id JobIdentifier) String() string {
	return fmt.Sprintf("%s/%s", id.StageIdentifier(), id.BuildName)
}

type StageIdentifier struct {
	PipelineName    string `json:"pipeline_name"`
	PipelineCounter int64  `json:"pipeline_counter"`
	PipelineLabel   string `json:"pipeline_label"`
	StageName       string `json:"stage_name"`
	StageCounter    int64  `json:"stage_counter"`
}

// StageIdentifierNull stands for a stage that has never run.
var StageIdentifierNull = StageIdentifier{}

func (id StageIdentifier) IsNull() bool {
	return id == StageIdentifierNull
}

func (id StageIdentifier) String() string {
	return fmt.Sprintf("%s/%d/%s/%d", id.PipelineName, id.PipelineCounter, id.StageName, id.StageCounter)
}

type JobInstance struct {
	ID                  int64     `json:"id"`
	StageID             int64     `json:"stage_id"`
	Name                string    `json:"name"`
	State               JobState  `json:"state"`
	Result              JobResult `json:"result"`
	AgentUUID           *string   `json:"agent_uuid"`
	ScheduledDate       time.Time `json:"scheduled_date"`
	Ignored             bool      `json:"ignored"`
	RunOnAllAgents      bool      `json:"run_on_all_agents"`
	RunMultipleInstance bool      `json:"run_multiple_instance"`
	OriginalJobID       *int64    `json:"original_job_id"`
	Rerun               bool      `json:"rerun"`

	PipelineName    string `json:"pipeline_name"`
	PipelineCounter int64  `json:"pipeline_counter"`
	PipelineLabel   string `json:"pipeline_label"`
	StageName       string `json:"stage_name"`
	StageCounter    int64  `json:"stage_counter"`

	Transitions []JobStateTransition `db:"-" json:"transitions"`
}

// NullJobInstance is returned by lookups that match no job.
func NullJobInstance(name string) *JobInstance {
	return &JobInstance{Name: name, State: JobUnknown, Result: ResultUnknown}
}

func NewJobInstance(name string, scheduled time.Time) *JobInstance {
	j := &JobInstance{Name: name, Result: ResultUnknown, ScheduledDate: scheduled}
	j.ChangeState(JobScheduled, scheduled)
	return j
}

func (j *JobInstance) IsNull() bool {
	return j.ID == 0
}

func (j *JobInstance) IsCompleted() bool {
	return j.State.IsCompleted()
}

func (j *JobInstance) IsRescheduled() bool {
	return j.State == JobRescheduled
}

// IsCopy reports whether the job was copied from an earlier stage run.
func (j *JobInstance) IsCopy() bool {
	return j.OriginalJobID != nil
}

// ChangeState moves the job to state and records the transition.
func (j *JobInstance) ChangeState(state JobState, at time.Time) {
	j.State = state
	j.Transitions = append(j.Transitions, JobStateTransition{
		JobID:           j.ID,
		StageID:         j.StageID,
		State:           state,
		StateChangeTime: at,
	})
}

// Complete moves the job to Completed with result.
func (j *JobInstance) Complete(result JobResult, at time.Time) {
	j.Result = result
	j.ChangeState(JobCompleted, at)
}

func (j *JobInstance) Identifier() JobIdentifier {
	return JobIdentifier{
		PipelineName:    j.PipelineName,
		PipelineCounter: j.PipelineCounter,
		PipelineLabel:   j.PipelineLabel,
		StageName:       j.StageName,
		StageCounter:    j.StageCounter,
		BuildName:       j.Name,
		BuildID:         j.ID,
	}
}

func (j *JobInstance) setStageIdentifier(id StageIdentifier) {
	j.PipelineName = id.PipelineName
	j.PipelineCounter = id.PipelineCounter
	j.PipelineLabel = id.PipelineLabel
	j.StageName = id.StageName
	j.StageCounter = id.StageCounter
}

func (j *JobInstance) Clone() *JobInstance {
	if j == nil {
		return nil
	}
	c := *j
	if j.AgentUUID != nil {
		v := *j.AgentUUID
		c.AgentUUID = &v
	}
	if j.OriginalJobID != nil {
		v := *j.OriginalJobID
		c.OriginalJobID = &v
	}
	c.Transitions = slices.Clone(j.Transitions)
	return &c
}

func cloneJobs(jobs []JobInstance) []JobInstance {
	out := make([]JobInstance, len(jobs))
	for i := range jobs {
		out[i] = *jobs[i].Clone()
	}
	return out
}

// ActiveJob is a job that has not completed yet.
type ActiveJob struct {
	ID              int64
	Name            string
	State           JobState
	AgentUUID       *string
	PipelineName    string
	PipelineCounter int64
	PipelineLabel   string
	StageName       string
	StageCounter    int64
}

type Stage struct {
	ID                      int64      `json:"id"`
	PipelineID              int64      `json:"pipeline_id"`
	Name                    string     `json:"name"`
	Counter                 int64      `json:"counter"`
	Result                  JobResult  `json:"result"`
	State                   StageState `json:"state"`
	ApprovalType            string     `json:"approval_type"`
	ApprovedBy              string     `json:"approved_by"`
	CancelledBy             *string    `json:"cancelled_by"`
	CreatedTime             time.Time  `json:"created_time"`
	LastTransitionedTime    *time.Time `json:"last_transitioned_time"`
	CompletedByTransitionID *int64     `json:"completed_by_transition_id"`
	LatestRun               bool       `json:"latest_run"`
	RerunOfCounter          *int64     `json:"rerun_of_counter"`
	ConfigVersion           string     `json:"config_version"`
	OrderID                 int64      `json:"order_id"`

	PipelineName    string `json:"pipeline_name"`
	PipelineCounter int64  `json:"pipeline_counter"`
	PipelineLabel   string `json:"pipeline_label"`

	Jobs []JobInstance `db:"-" json:"jobs"`
}

// NullStage is returned by lookups that match no stage.
func NullStage(name string) *Stage {
	return &Stage{Name: name, State: StageUnknown, Result: ResultUnknown}
}

func (s *Stage) IsNull() bool {
	return s.ID == 0
}

func (s *Stage) Passed() bool {
	return s.State == StagePassed
}

func (s *Stage) Identifier() StageIdentifier {
	return StageIdentifier{
		PipelineName:    s.PipelineName,
		PipelineCounter: s.PipelineCounter,
		PipelineLabel:   s.PipelineLabel,
		StageName:       s.Name,
		StageCounter:    s.Counter,
	}
}

// CalculateState derives the stage state from its jobs.
func (s *Stage) CalculateState() StageState {
	if len(s.Jobs) == 0 {
		return StageUnknown
	}
	var active, failed, cancelled bool
	for _, j := range s.Jobs {
		if j.State.IsActive() {
			active = true
		}
		switch j.Result {
		case ResultFailed:
			failed = true
		case ResultCancelled:
			cancelled = true
		}
	}
	switch {
	case active && failed:
		return StageFailing
	case active:
		return StageBuilding
	case cancelled:
		return StageCancelled
	case failed:
		return StageFailed
	default:
		return StagePassed
	}
}

func (s *Stage) Clone() *Stage {
	if s == nil {
		return nil
	}
	c := *s
	if s.CancelledBy != nil {
		v := *s.CancelledBy
		c.CancelledBy = &v
	}
	if s.LastTransitionedTime != nil {
		v := *s.LastTransitionedTime
		c.LastTransitionedTime = &v
	}
	if s.CompletedByTransitionID != nil {
		v := *s.CompletedByTransitionID
		c.CompletedByTransitionID = &v
	}
	if s.RerunOfCounter != nil {
		v := *s.RerunOfCounter
		c.RerunOfCounter = &v
	}
	c.Jobs = cloneJobs(s.Jobs)
	return &c
}

func cloneStages(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	for i := range stages {
		out[i] = *stages[i].Clone()
	}
	return out
}

// StageIdentity names the latest run of a stage.
type StageIdentity struct {
	PipelineName string
	StageName    string
	StageID      int64
}

// StageHistoryPage is one page of stage runs, newest first.
type StageHistoryPage struct {
	Stages   []Stage `json:"stages"`
	Offset   int     `json:"offset"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
}

func (p *StageHistoryPage) Clone() *StageHistoryPage {
	c := *p
	c.Stages = cloneStages(p.Stages)
	return &c
}

type BuildCause struct {
	Message  string `json:"message"`
	Approver string `json:"approver"`
}

type Pipeline struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Counter            int64     `json:"counter"`
	Label              string    `json:"label"`
	BuildCauseMessage  string    `json:"build_cause_message"`
	BuildCauseApprover string    `json:"build_cause_approver"`
	NaturalOrder       float64   `json:"natural_order"`
	Comment            *string   `json:"comment"`
	CreatedTime        time.Time `json:"created_time"`

	Stages []Stage `db:"-" json:"stages"`
}

// NullPipeline is returned by lookups that match no pipeline run.
func NullPipeline(name string) *Pipeline {
	return &Pipeline{Name: name}
}

func NewPipeline(name string, cause BuildCause, stages ...Stage) *Pipeline {
	return &Pipeline{
		Name:               name,
		BuildCauseMessage:  cause.Message,
		BuildCauseApprover: cause.Approver,
		Stages:             stages,
	}
}

func (p *Pipeline) IsNull() bool {
	return p.ID == 0
}

func (p *Pipeline) BuildCause() BuildCause {
	return BuildCause{Message: p.BuildCauseMessage, Approver: p.BuildCauseApprover}
}

func (p *Pipeline) stageIdentifier(stage string) StageIdentifier {
	return StageIdentifier{
		PipelineName:    p.Name,
		PipelineCounter: p.Counter,
		PipelineLabel:   p.Label,
		StageName:       stage,
	}
}

// updateCounter sets the run counter and, when absent, a label derived from it.
func (p *Pipeline) updateCounter(last int64) {
	p.Counter = last + 1
	if p.Label == "" {
		p.Label = strconv.FormatInt(p.Counter, 10)
	}
	if p.NaturalOrder == 0 {
		p.NaturalOrder = float64(p.Counter)
	}
}

func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return nil
	}
	c := *p
	if p.Comment != nil {
		v := *p.Comment
		c.Comment = &v
	}
	c.Stages = cloneStages(p.Stages)
	return &c
}

type PipelinePauseInfo struct {
	Paused     bool       `json:"paused"`
	PauseCause string     `json:"pause_cause"`
	PauseBy    string     `json:"pause_by"`
	PausedAt   *time.Time `json:"paused_at"`
}

// PipelinePauseInfoNull is the pause state of a pipeline that was never paused.
var PipelinePauseInfoNull = PipelinePauseInfo{}

// JobStatusListener is notified after a job changes state.
type JobStatusListener interface {
	JobStatusChanged(job *JobInstance)
}

// StageStatusListener is notified after a stage changes state.
type StageStatusListener interface {
	StageStatusChanged(stage *Stage)
}
