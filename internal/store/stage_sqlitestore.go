package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/haatos/simple-cd/internal/cache"
	"go.uber.org/zap"
)

type StageSQLiteStore struct {
	rdb, rwdb *sql.DB
	txm       *TxManager
	goCache   *cache.GoCache
	jobs      *JobInstanceSQLiteStore
	keys      cache.KeyGenerator
	logger    *zap.Logger
}

func NewStageSQLiteStore(
	rdb, rwdb *sql.DB,
	goCache *cache.GoCache,
	jobs *JobInstanceSQLiteStore,
	logger *zap.Logger,
) *StageSQLiteStore {
	return &StageSQLiteStore{
		rdb:     rdb,
		rwdb:    rwdb,
		txm:     NewTxManager(rwdb),
		goCache: goCache,
		jobs:    jobs,
		keys:    cache.NewKeyGenerator("StageSQLiteStore"),
		logger:  logger,
	}
}

func stageSelect() sq.SelectBuilder {
	return psql.Select(
		"s.id",
		"s.pipeline_id",
		"s.name",
		"s.counter",
		"s.result",
		"s.state",
		"s.approval_type",
		"s.approved_by",
		"s.cancelled_by",
		"s.created_time",
		"s.last_transitioned_time",
		"s.completed_by_transition_id",
		"s.latest_run",
		"s.rerun_of_counter",
		"s.config_version",
		"s.order_id",
		"p.name as pipeline_name",
		"p.counter as pipeline_counter",
		"p.label as pipeline_label",
	).
		From("stages s").
		Join("pipelines p on p.id = s.pipeline_id")
}

func stagesOfRun(pipeline string, counter int64) sq.SelectBuilder {
	return stageSelect().
		Where(eqFold("p.name", pipeline)).
		Where(sq.Eq{"p.counter": counter})
}

// Save inserts a new run of stage for pipeline together with its jobs.
// The stage counter continues from the previous run of the same stage.
func (store *StageSQLiteStore) Save(ctx context.Context, pipeline *Pipeline, stage *Stage) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		tx.AfterCommit(func() {
			store.clearStageHistoryPageCaches(pipeline.Name, stage.Name, false)
			store.clearCachedStage(stage.Identifier())
			store.clearCachedAllStages(pipeline.Name, pipeline.Counter, stage.Name)
			store.goCache.RemoveAll(store.keyForStageCountForChart(pipeline.Name, stage.Name))
		})

		stage.PipelineID = pipeline.ID
		stage.PipelineName = pipeline.Name
		stage.PipelineCounter = pipeline.Counter
		stage.PipelineLabel = pipeline.Label
		maxCounter, err := store.MaxStageCounter(ctx, pipeline.ID, stage.Name)
		if err != nil {
			return err
		}
		stage.Counter = maxCounter + 1
		if stage.OrderID == 0 {
			order, err := store.maxStageOrder(ctx, pipeline.ID)
			if err != nil {
				return err
			}
			stage.OrderID = order + 1
		}
		if stage.State == "" {
			stage.State = StageBuilding
		}
		if stage.Result == "" {
			stage.Result = ResultUnknown
		}
		if stage.ApprovalType == "" {
			stage.ApprovalType = "success"
		}
		stage.LatestRun = true

		markPrevious := psql.Update("stages").
			Set("latest_run", false).
			Where(sq.Eq{"pipeline_id": pipeline.ID, "name": stage.Name})
		if _, err := execOne(ctx, tx, markPrevious); err != nil {
			return fmt.Errorf("marking previous runs of %s: %w", stage.Name, err)
		}

		insert := psql.Insert("stages").
			Columns(
				"pipeline_id",
				"name",
				"counter",
				"approval_type",
				"approved_by",
				"result",
				"state",
				"latest_run",
				"rerun_of_counter",
				"config_version",
				"order_id",
			).
			Values(
				stage.PipelineID,
				stage.Name,
				stage.Counter,
				stage.ApprovalType,
				stage.ApprovedBy,
				stage.Result,
				stage.State,
				stage.LatestRun,
				stage.RerunOfCounter,
				stage.ConfigVersion,
				stage.OrderID,
			).
			Suffix("returning id, created_time")
		if err := getOne(ctx, tx, stage, insert); err != nil {
			return fmt.Errorf("inserting stage %s: %w", stage.Name, err)
		}

		for i := range stage.Jobs {
			job := &stage.Jobs[i]
			job.setStageIdentifier(stage.Identifier())
			if err := store.jobs.Save(ctx, stage.ID, job); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateResult records the outcome of a stage run.
func (store *StageSQLiteStore) UpdateResult(ctx context.Context, stage *Stage, result JobResult, username string) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		identifier := stage.Identifier()
		stageID := stage.ID
		tx.AfterCommit(func() {
			store.clearStageHistoryPageCaches(identifier.PipelineName, identifier.StageName, true)
			store.clearJobStatusDependentCaches(stageID, identifier)
			store.goCache.RemoveAll(store.keyForStageCountForChart(identifier.PipelineName, identifier.StageName))
		})

		var cancelledBy *string
		if result == ResultCancelled && username != "" {
			cancelledBy = &username
		}
		stage.Result = result
		stage.CancelledBy = cancelledBy
		update := psql.Update("stages").
			Set("result", result).
			Set("state", stage.State).
			Set("cancelled_by", cancelledBy).
			Set("completed_by_transition_id", stage.CompletedByTransitionID).
			Set("last_transitioned_time", sq.Expr(
				"(select max(state_change_time) from build_state_transitions where stage_id = ?)", stage.ID,
			)).
			Where(sq.Eq{"id": stage.ID})
		if _, err := execOne(ctx, tx, update); err != nil {
			return fmt.Errorf("updating stage %d: %w", stage.ID, err)
		}

		var last sql.NullTime
		query := psql.Select("last_transitioned_time").From("stages").Where(sq.Eq{"id": stage.ID})
		if err := getOne(ctx, tx, &last, query); err != nil {
			return notFound(err, "stage", stage.ID)
		}
		if last.Valid {
			stage.LastTransitionedTime = &last.Time
		}
		return nil
	})
}

func (store *StageSQLiteStore) withJobs(ctx context.Context, stage *Stage) error {
	jobs, err := store.jobs.jobsForStage(ctx, stage.ID)
	if err != nil {
		return err
	}
	stage.Jobs = jobs
	return nil
}

func (store *StageSQLiteStore) StageByID(ctx context.Context, id int64) (*Stage, error) {
	return cache.Load(store.goCache, store.keyForStageByID(id), (*Stage).Clone, func() (*Stage, error) {
		stage := &Stage{}
		if err := getOne(ctx, querier(ctx, store.rdb), stage, stageSelect().Where(sq.Eq{"s.id": id})); err != nil {
			return nil, notFound(err, "stage", id)
		}
		if err := store.withJobs(ctx, stage); err != nil {
			return nil, err
		}
		return stage, nil
	})
}

func (store *StageSQLiteStore) mostRecentID(ctx context.Context, pipeline, stage string) (int64, error) {
	return cache.Load(store.goCache, store.keyForMostRecentID(pipeline, stage), cache.Identity[int64], func() (int64, error) {
		var id sql.NullInt64
		query := psql.Select("max(s.id)").
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage))
		err := getOne(ctx, querier(ctx, store.rdb), &id, query)
		return id.Int64, err
	})
}

// MostRecentStage returns the latest run of stage with its jobs, or
// NullStage when it never ran.
func (store *StageSQLiteStore) MostRecentStage(ctx context.Context, pipeline, stage string) (*Stage, error) {
	id, err := store.mostRecentID(ctx, pipeline, stage)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return NullStage(stage), nil
	}
	return store.StageByID(ctx, id)
}

func (store *StageSQLiteStore) IsStageActive(ctx context.Context, pipeline, stage string) (bool, error) {
	return cache.Load(store.goCache, store.keyForIsStageActive(pipeline, stage), cache.Identity[bool], func() (bool, error) {
		var count int
		query := psql.Select("count(*)").
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage)).
			Where(sq.Eq{"s.state": []string{string(StageBuilding), string(StageFailing)}})
		err := getOne(ctx, querier(ctx, store.rdb), &count, query)
		return count > 0, err
	})
}

// FindStageWithIdentifier returns the stage run with its jobs. Runs are
// cached per stage under one key so reruns are invalidated together.
func (store *StageSQLiteStore) FindStageWithIdentifier(ctx context.Context, id StageIdentifier) (*Stage, error) {
	key := store.keyForListOfStageIdentifiers(id)
	subkey := store.keyForStageIdentifier(id)
	unlock := store.goCache.Lock(key)
	defer unlock()
	if v, ok := store.goCache.GetSub(key, subkey); ok {
		return v.(*Stage).Clone(), nil
	}

	stage := &Stage{}
	query := stagesOfRun(id.PipelineName, id.PipelineCounter).
		Where(eqFold("s.name", id.StageName)).
		Where(sq.Eq{"s.counter": id.StageCounter})
	if id.PipelineLabel != "" {
		query = query.Where(sq.Eq{"p.label": id.PipelineLabel})
	}
	if err := getOne(ctx, querier(ctx, store.rdb), stage, query); err != nil {
		if IsRecordNotFound(notFound(err, "stage", id)) {
			return NullStage(id.StageName), nil
		}
		return nil, err
	}
	if err := store.withJobs(ctx, stage); err != nil {
		return nil, err
	}
	store.goCache.PutSub(key, subkey, stage.Clone())
	return stage, nil
}

func (store *StageSQLiteStore) FindAllStagesFor(ctx context.Context, pipeline string, counter int64) ([]Stage, error) {
	key := store.keyForPipelineAndCounter(pipeline, counter)
	return cache.Load(store.goCache, key, cloneStages, func() ([]Stage, error) {
		stages := make([]Stage, 0)
		query := stagesOfRun(pipeline, counter).OrderBy("s.order_id", "s.counter")
		err := selectAll(ctx, querier(ctx, store.rdb), &stages, query)
		return stages, err
	})
}

func (store *StageSQLiteStore) AllRunsOfStageForPipelineInstance(
	ctx context.Context,
	pipeline string,
	counter int64,
	stage string,
) ([]Stage, error) {
	key := store.keyForAllStageOfPipeline(pipeline, counter, stage)
	return cache.Load(store.goCache, key, cloneStages, func() ([]Stage, error) {
		stages := make([]Stage, 0)
		query := stagesOfRun(pipeline, counter).
			Where(eqFold("s.name", stage)).
			OrderBy("s.counter")
		err := selectAll(ctx, querier(ctx, store.rdb), &stages, query)
		return stages, err
	})
}

// FindStageHistoryPage returns runs of stage across pipeline runs, newest
// first. Pages are cached as subkeys of one key per stage.
func (store *StageSQLiteStore) FindStageHistoryPage(
	ctx context.Context,
	pipeline, stage string,
	pageSize, offset int,
) (*StageHistoryPage, error) {
	total, err := store.StageHistoryCount(ctx, pipeline, stage)
	if err != nil {
		return nil, err
	}
	key := store.keyForStageHistories(pipeline, stage)
	subkey := fmt.Sprintf("%d-%d", offset, pageSize)
	return cache.LoadSub(store.goCache, key, subkey, (*StageHistoryPage).Clone, func() (*StageHistoryPage, error) {
		stages := make([]Stage, 0)
		query := stageSelect().
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage)).
			OrderBy("s.id desc").
			Limit(uint64(pageSize)).
			Offset(uint64(offset))
		if err := selectAll(ctx, querier(ctx, store.rdb), &stages, query); err != nil {
			return nil, err
		}
		return &StageHistoryPage{Stages: stages, Offset: offset, PageSize: pageSize, Total: total}, nil
	})
}

func (store *StageSQLiteStore) StageHistoryCount(ctx context.Context, pipeline, stage string) (int, error) {
	return cache.Load(store.goCache, store.keyForStageCount(pipeline, stage), cache.Identity[int], func() (int, error) {
		var count int
		query := psql.Select("count(*)").
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage))
		err := getOne(ctx, querier(ctx, store.rdb), &count, query)
		return count, err
	})
}

// TotalStageCountForChart counts completed runs of stage.
func (store *StageSQLiteStore) TotalStageCountForChart(ctx context.Context, pipeline, stage string) (int, error) {
	key := store.keyForStageCountForChart(pipeline, stage)
	return cache.Load(store.goCache, key, cache.Identity[int], func() (int, error) {
		var count int
		query := psql.Select("count(*)").
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage)).
			Where(sq.Eq{"s.state": []string{string(StagePassed), string(StageFailed), string(StageCancelled)}})
		err := getOne(ctx, querier(ctx, store.rdb), &count, query)
		return count, err
	})
}

// FindLatestStageInstances returns the latest run of every stage.
func (store *StageSQLiteStore) FindLatestStageInstances(ctx context.Context) ([]StageIdentity, error) {
	clone := func(s []StageIdentity) []StageIdentity { return append([]StageIdentity(nil), s...) }
	return cache.Load(store.goCache, store.keyForLatestStageInstances(), clone, func() ([]StageIdentity, error) {
		ids := make([]StageIdentity, 0)
		query := psql.Select("p.name as pipeline_name", "s.name as stage_name", "max(s.id) as stage_id").
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			GroupBy("p.name", "s.name").
			OrderBy("p.name", "s.name")
		err := selectAll(ctx, querier(ctx, store.rdb), &ids, query)
		return ids, err
	})
}

func (store *StageSQLiteStore) MaxStageCounter(ctx context.Context, pipelineID int64, stage string) (int64, error) {
	var counter sql.NullInt64
	query := psql.Select("max(counter)").
		From("stages").
		Where(sq.Eq{"pipeline_id": pipelineID}).
		Where(eqFold("name", stage))
	err := getOne(ctx, querier(ctx, store.rdb), &counter, query)
	return counter.Int64, err
}

func (store *StageSQLiteStore) maxStageOrder(ctx context.Context, pipelineID int64) (int64, error) {
	var order sql.NullInt64
	query := psql.Select("max(order_id)").From("stages").Where(sq.Eq{"pipeline_id": pipelineID})
	err := getOne(ctx, querier(ctx, store.rdb), &order, query)
	return order.Int64, err
}

// stagesForPipeline returns every stage run of a pipeline run with jobs.
func (store *StageSQLiteStore) stagesForPipeline(ctx context.Context, pipelineID int64) ([]Stage, error) {
	stages := make([]Stage, 0)
	query := stageSelect().Where(sq.Eq{"s.pipeline_id": pipelineID}).OrderBy("s.order_id", "s.counter")
	if err := selectAll(ctx, querier(ctx, store.rdb), &stages, query); err != nil {
		return nil, err
	}
	for i := range stages {
		if err := store.withJobs(ctx, &stages[i]); err != nil {
			return nil, err
		}
	}
	return stages, nil
}

func (store *StageSQLiteStore) StageStatusChanged(stage *Stage) {
	store.goCache.RemoveAll(
		store.keyForMostRecentID(stage.PipelineName, stage.Name),
		store.keyForIsStageActive(stage.PipelineName, stage.Name),
		store.keyForPipelineAndCounter(stage.PipelineName, stage.PipelineCounter),
		store.keyForStageByID(stage.ID),
		store.keyForLatestStageInstances(),
	)
}

func (store *StageSQLiteStore) JobStatusChanged(job *JobInstance) {
	store.clearJobStatusDependentCaches(job.StageID, job.Identifier().StageIdentifier())
}

func (store *StageSQLiteStore) clearJobStatusDependentCaches(stageID int64, id StageIdentifier) {
	store.goCache.RemoveAll(store.keyForStageByID(stageID))
	store.clearCachedStage(id)
	store.clearCachedAllStages(id.PipelineName, id.PipelineCounter, id.StageName)
}

func (store *StageSQLiteStore) clearStageHistoryPageCaches(pipeline, stage string, onlyHistoryPages bool) {
	keys := []string{store.keyForStageHistories(pipeline, stage)}
	if !onlyHistoryPages {
		keys = append(keys, store.keyForStageCount(pipeline, stage))
	}
	store.goCache.RemoveAll(keys...)
}

func (store *StageSQLiteStore) clearCachedStage(id StageIdentifier) {
	store.goCache.RemoveAll(store.keyForListOfStageIdentifiers(id))
}

func (store *StageSQLiteStore) clearCachedAllStages(pipeline string, counter int64, stage string) {
	store.goCache.RemoveAll(
		store.keyForAllStageOfPipeline(pipeline, counter, stage),
		store.keyForPipelineAndCounter(pipeline, counter),
	)
}

func (store *StageSQLiteStore) keyForStageByID(id int64) string {
	return store.keys.Key("stageById", id)
}

func (store *StageSQLiteStore) keyForMostRecentID(pipeline, stage string) string {
	return store.keys.Key("mostRecentId", pipeline, stage)
}

func (store *StageSQLiteStore) keyForIsStageActive(pipeline, stage string) string {
	return store.keys.Key("isStageActive", pipeline, stage)
}

func (store *StageSQLiteStore) keyForListOfStageIdentifiers(id StageIdentifier) string {
	return store.keys.Key("stageRunIdentifier", id.PipelineName, id.PipelineCounter, id.StageName)
}

func (store *StageSQLiteStore) keyForStageIdentifier(id StageIdentifier) string {
	return store.keys.Key("stageIdentifier", id.PipelineName, id.PipelineCounter, id.StageName, id.StageCounter)
}

func (store *StageSQLiteStore) keyForPipelineAndCounter(pipeline string, counter int64) string {
	return store.keys.Key("allStagesOfPipelineInstance", pipeline, counter)
}

func (store *StageSQLiteStore) keyForAllStageOfPipeline(pipeline string, counter int64, stage string) string {
	return store.keys.Key("allStageOfPipeline", pipeline, counter, stage)
}

func (store *StageSQLiteStore) keyForStageHistories(pipeline, stage string) string {
	return store.keys.Key("stageHistories", pipeline, stage)
}

func (store *StageSQLiteStore) keyForStageCount(pipeline, stage string) string {
	return store.keys.Key("numberOfStages", pipeline, stage)
}

func (store *StageSQLiteStore) keyForStageCountForChart(pipeline, stage string) string {
	return store.keys.Key("totalStageCountForChart", pipeline, stage)
}

func (store *StageSQLiteStore) keyForLatestStageInstances() string {
	return store.keys.Key("latestStageInstances")
}
