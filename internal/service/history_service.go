package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haatos/simple-cd/internal/store"
)

// HistoryService reads run history and reports status changes to the
// listeners that keep the DAO caches fresh.
type HistoryService struct {
	txm            TxRunner
	pipelines      store.PipelineStore
	stages         store.StageStore
	jobs           store.JobInstanceStore
	jobListeners   []store.JobStatusListener
	stageListeners []store.StageStatusListener
	logger         *zap.Logger
	now            func() time.Time
}

// TxRunner runs fn in a transaction, joining one already carried by ctx.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error
}

func NewHistoryService(
	txm TxRunner,
	pipelines store.PipelineStore,
	stages store.StageStore,
	jobs store.JobInstanceStore,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		txm:            txm,
		pipelines:      pipelines,
		stages:         stages,
		jobs:           jobs,
		jobListeners:   []store.JobStatusListener{jobs, stages},
		stageListeners: []store.StageStatusListener{stages, pipelines},
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// AddJobStatusListener registers l to be told about job status changes.
func (s *HistoryService) AddJobStatusListener(l store.JobStatusListener) {
	s.jobListeners = append(s.jobListeners, l)
}

type PipelineHistory struct {
	Pipelines []store.Pipeline        `json:"pipelines"`
	Total     int                     `json:"total"`
	Pause     store.PipelinePauseInfo `json:"pause_info"`
}

func (s *HistoryService) PipelineHistory(ctx context.Context, name string, limit, offset int) (*PipelineHistory, error) {
	h := &PipelineHistory{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pipelines, err := s.pipelines.LoadHistory(ctx, name, limit, offset)
		h.Pipelines = pipelines
		return err
	})
	g.Go(func() error {
		total, err := s.pipelines.Count(ctx, name)
		h.Total = total
		return err
	})
	g.Go(func() error {
		pause, err := s.pipelines.PauseState(ctx, name)
		h.Pause = pause
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

// PipelineInstance returns one run of the pipeline with its stages.
func (s *HistoryService) PipelineInstance(ctx context.Context, name string, counter int64) (*store.Pipeline, error) {
	p, err := s.pipelines.FindPipelineByNameAndCounter(ctx, name, counter)
	if err != nil {
		return nil, err
	}
	if p.IsNull() {
		return nil, store.RecordNotFoundError{Entity: "pipeline instance", ID: name}
	}
	stages, err := s.stages.FindAllStagesFor(ctx, name, counter)
	if err != nil {
		return nil, err
	}
	p.Stages = stages
	return p, nil
}

func (s *HistoryService) StageHistory(
	ctx context.Context,
	pipeline, stage string,
	pageSize, offset int,
) (*store.StageHistoryPage, error) {
	return s.stages.FindStageHistoryPage(ctx, pipeline, stage, pageSize, offset)
}

func (s *HistoryService) StageInstance(ctx context.Context, id store.StageIdentifier) (*store.Stage, error) {
	stage, err := s.stages.FindStageWithIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.IsNull() {
		return nil, store.RecordNotFoundError{Entity: "stage instance", ID: id.String()}
	}
	return stage, nil
}

type JobHistory struct {
	Jobs  []store.JobInstance `json:"jobs"`
	Total int                 `json:"total"`
}

func (s *HistoryService) JobHistory(
	ctx context.Context,
	pipeline, stage, job string,
	pageSize, offset int,
) (*JobHistory, error) {
	h := &JobHistory{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		jobs, err := s.jobs.FindJobHistoryPage(ctx, pipeline, stage, job, pageSize, offset)
		h.Jobs = jobs
		return err
	})
	g.Go(func() error {
		total, err := s.jobs.JobHistoryCount(ctx, pipeline, stage, job)
		h.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HistoryService) JobInstance(ctx context.Context, id store.JobIdentifier) (*store.JobInstance, error) {
	j, err := s.jobs.FindJobInstance(
		ctx, id.PipelineName, id.PipelineCounter, id.StageName, id.StageCounter, id.BuildName,
	)
	if err != nil {
		return nil, err
	}
	if j.IsNull() {
		return nil, store.RecordNotFoundError{Entity: "job instance", ID: id.String()}
	}
	return j, nil
}

func (s *HistoryService) Pause(ctx context.Context, pipeline, cause, by string) error {
	if err := s.pipelines.Pause(ctx, pipeline, cause, by); err != nil {
		return err
	}
	s.logger.Info("pipeline paused", zap.String("pipeline", pipeline), zap.String("by", by))
	return nil
}

func (s *HistoryService) Unpause(ctx context.Context, pipeline string) error {
	if err := s.pipelines.Unpause(ctx, pipeline); err != nil {
		return err
	}
	s.logger.Info("pipeline unpaused", zap.String("pipeline", pipeline))
	return nil
}

// SavePipelineRun stores a new run of p with its stages. The stage
// listeners hear about every stage once the run has committed.
func (s *HistoryService) SavePipelineRun(ctx context.Context, p *store.Pipeline) error {
	err := s.txm.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := s.pipelines.Save(ctx, p); err != nil {
			return err
		}
		tx.AfterCommit(func() {
			for i := range p.Stages {
				s.notifyStage(&p.Stages[i])
			}
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("pipeline run saved", zap.String("pipeline", p.Name), zap.Int64("counter", p.Counter))
	return nil
}

// SaveStageRun stores a new run of stage within pipeline, such as a rerun.
func (s *HistoryService) SaveStageRun(ctx context.Context, pipeline *store.Pipeline, stage *store.Stage) error {
	return s.txm.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := s.stages.Save(ctx, pipeline, stage); err != nil {
			return err
		}
		tx.AfterCommit(func() { s.notifyStage(stage) })
		return nil
	})
}

// ReportJobStatus moves job to state, completing it with result when state
// is Completed. The job listeners are notified after the change commits.
func (s *HistoryService) ReportJobStatus(
	ctx context.Context,
	job *store.JobInstance,
	state store.JobState,
	result store.JobResult,
) error {
	if state == store.JobCompleted {
		job.Complete(result, s.now())
	} else {
		job.ChangeState(state, s.now())
	}
	return s.txm.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := s.jobs.UpdateStateAndResult(ctx, job); err != nil {
			return err
		}
		tx.AfterCommit(func() {
			for _, l := range s.jobListeners {
				l.JobStatusChanged(job)
			}
		})
		return nil
	})
}

// ReportStageResult records the result of stage and notifies the stage
// listeners after it commits.
func (s *HistoryService) ReportStageResult(
	ctx context.Context,
	stage *store.Stage,
	result store.JobResult,
	username string,
) error {
	return s.txm.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := s.stages.UpdateResult(ctx, stage, result, username); err != nil {
			return err
		}
		tx.AfterCommit(func() { s.notifyStage(stage) })
		return nil
	})
}

func (s *HistoryService) notifyStage(stage *store.Stage) {
	for _, l := range s.stageListeners {
		l.StageStatusChanged(stage)
	}
}
