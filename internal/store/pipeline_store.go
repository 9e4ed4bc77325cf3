package store

import "context"

type PipelineStore interface {
	Save(ctx context.Context, pipeline *Pipeline) error
	CounterForPipeline(ctx context.Context, name string) (int64, error)
	InsertOrUpdatePipelineCounter(ctx context.Context, name string, lastCounter, newCounter int64) error
	FindPipelineByNameAndCounter(ctx context.Context, name string, counter int64) (*Pipeline, error)
	FindPipelineByNameAndLabel(ctx context.Context, name, label string) (*Pipeline, error)
	FindBuildCauseOfPipelineByNameAndCounter(ctx context.Context, name string, counter int64) (BuildCause, error)
	LoadPipeline(ctx context.Context, id int64) (*Pipeline, error)
	MostRecentPipeline(ctx context.Context, name string) (*Pipeline, error)
	LatestPipelineID(ctx context.Context, name string) (int64, error)
	LoadHistory(ctx context.Context, name string, limit, offset int) ([]Pipeline, error)
	PipelineHistoryByID(ctx context.Context, id int64) (*Pipeline, error)
	Count(ctx context.Context, name string) (int, error)
	Pause(ctx context.Context, name, cause, by string) error
	Unpause(ctx context.Context, name string) error
	PauseState(ctx context.Context, name string) (PipelinePauseInfo, error)
	LatestPassedStageIdentifier(ctx context.Context, pipelineID int64, stage string) (StageIdentifier, error)
	UpdateComment(ctx context.Context, name string, counter int64, comment string) error
	ActivePipelines(ctx context.Context) (map[string][]int64, error)
	Initialize(ctx context.Context) error
	StageStatusListener
}
