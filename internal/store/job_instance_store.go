package store

import "context"

type JobHistoryColumn string

const (
	JobColumnPipeline  JobHistoryColumn = "pipeline"
	JobColumnStage     JobHistoryColumn = "stage"
	JobColumnName      JobHistoryColumn = "name"
	JobColumnResult    JobHistoryColumn = "result"
	JobColumnScheduled JobHistoryColumn = "scheduled"
)

var jobHistoryColumns = map[JobHistoryColumn]string{
	JobColumnPipeline:  "p.name",
	JobColumnStage:     "s.name",
	JobColumnName:      "b.name",
	JobColumnResult:    "b.result",
	JobColumnScheduled: "b.scheduled_date",
}

type SortOrder string

const (
	Ascending  SortOrder = "ASC"
	Descending SortOrder = "DESC"
)

type JobInstanceStore interface {
	Save(ctx context.Context, stageID int64, job *JobInstance) error
	UpdateStateAndResult(ctx context.Context, job *JobInstance) error
	UpdateAssignedInfo(ctx context.Context, job *JobInstance) error
	Ignore(ctx context.Context, job *JobInstance) error
	BuildByID(ctx context.Context, id int64) (*JobInstance, error)
	MostRecentJobWithTransitions(ctx context.Context, id JobIdentifier) (*JobInstance, error)
	FindOriginalJobIdentifier(ctx context.Context, stage StageIdentifier, jobName string) (JobIdentifier, error)
	ActiveJobs(ctx context.Context) ([]ActiveJob, error)
	OrderedScheduledJobs(ctx context.Context) ([]JobInstance, error)
	LatestCompletedJobs(ctx context.Context, pipeline, stage, job string, limit int) ([]JobInstance, error)
	FindJobHistoryPage(ctx context.Context, pipeline, stage, job string, pageSize, offset int) ([]JobInstance, error)
	JobHistoryCount(ctx context.Context, pipeline, stage, job string) (int, error)
	FindJobInstance(ctx context.Context, pipeline string, pipelineCounter int64, stage string, stageCounter int64, job string) (*JobInstance, error)
	FindHungJobs(ctx context.Context, liveAgentUUIDs []string) ([]JobInstance, error)
	CompletedJobsOnAgent(ctx context.Context, uuid string, column JobHistoryColumn, order SortOrder, offset, limit int) ([]JobInstance, error)
	TotalCompletedJobsOnAgent(ctx context.Context, uuid string) (int, error)
	JobStatusListener
}
