package store

import "context"

type StageStore interface {
	Save(ctx context.Context, pipeline *Pipeline, stage *Stage) error
	UpdateResult(ctx context.Context, stage *Stage, result JobResult, username string) error
	StageByID(ctx context.Context, id int64) (*Stage, error)
	MostRecentStage(ctx context.Context, pipeline, stage string) (*Stage, error)
	IsStageActive(ctx context.Context, pipeline, stage string) (bool, error)
	FindStageWithIdentifier(ctx context.Context, id StageIdentifier) (*Stage, error)
	FindAllStagesFor(ctx context.Context, pipeline string, counter int64) ([]Stage, error)
	AllRunsOfStageForPipelineInstance(ctx context.Context, pipeline string, counter int64, stage string) ([]Stage, error)
	FindStageHistoryPage(ctx context.Context, pipeline, stage string, pageSize, offset int) (*StageHistoryPage, error)
	StageHistoryCount(ctx context.Context, pipeline, stage string) (int, error)
	TotalStageCountForChart(ctx context.Context, pipeline, stage string) (int, error)
	FindLatestStageInstances(ctx context.Context) ([]StageIdentity, error)
	MaxStageCounter(ctx context.Context, pipelineID int64, stage string) (int64, error)
	StageStatusListener
	JobStatusListener
}
