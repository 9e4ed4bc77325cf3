package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/haatos/simple-cd/internal/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type PipelineSQLiteStore struct {
	rdb, rwdb *sql.DB
	txm       *TxManager
	goCache   *cache.GoCache
	stages    *StageSQLiteStore
	keys      cache.KeyGenerator
	logger    *zap.Logger
	now       func() time.Time

	activeMu sync.Mutex
}

func NewPipelineSQLiteStore(
	rdb, rwdb *sql.DB,
	goCache *cache.GoCache,
	stages *StageSQLiteStore,
	logger *zap.Logger,
) *PipelineSQLiteStore {
	return &PipelineSQLiteStore{
		rdb:     rdb,
		rwdb:    rwdb,
		txm:     NewTxManager(rwdb),
		goCache: goCache,
		stages:  stages,
		keys:    cache.NewKeyGenerator("PipelineSQLiteStore"),
		logger:  logger,
		now:     time.Now,
	}
}

func pipelineSelect() sq.SelectBuilder {
	return psql.Select(
		"id",
		"name",
		"counter",
		"label",
		"build_cause_message",
		"build_cause_approver",
		"natural_order",
		"comment",
		"created_time",
	).From("pipelines")
}

// Save inserts a new run of the pipeline with the next counter and saves
// its stages.
func (store *PipelineSQLiteStore) Save(ctx context.Context, pipeline *Pipeline) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		name := pipeline.Name
		tx.AfterCommit(func() {
			store.goCache.RemoveAll(store.keyForLatestPipelineID(name))
		})

		last, err := store.CounterForPipeline(ctx, name)
		if err != nil {
			return err
		}
		pipeline.updateCounter(last)
		if err := store.InsertOrUpdatePipelineCounter(ctx, name, last, pipeline.Counter); err != nil {
			return err
		}

		insert := psql.Insert("pipelines").
			Columns(
				"name",
				"counter",
				"label",
				"build_cause_message",
				"build_cause_approver",
				"natural_order",
				"comment",
			).
			Values(
				pipeline.Name,
				pipeline.Counter,
				pipeline.Label,
				pipeline.BuildCauseMessage,
				pipeline.BuildCauseApprover,
				pipeline.NaturalOrder,
				pipeline.Comment,
			).
			Suffix("returning id, created_time")
		if err := getOne(ctx, tx, pipeline, insert); err != nil {
			return fmt.Errorf("inserting pipeline %s: %w", name, err)
		}

		for i := range pipeline.Stages {
			if err := store.stages.Save(ctx, pipeline, &pipeline.Stages[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// CounterForPipeline returns the last counter handed out for name, or 0.
func (store *PipelineSQLiteStore) CounterForPipeline(ctx context.Context, name string) (int64, error) {
	var counter sql.NullInt64
	query := psql.Select("max(label_count)").
		From("pipeline_counters").
		Where(sq.Eq{"pipeline_name": strings.ToLower(name)})
	err := getOne(ctx, querier(ctx, store.rdb), &counter, query)
	return counter.Int64, err
}

func (store *PipelineSQLiteStore) InsertOrUpdatePipelineCounter(
	ctx context.Context,
	name string,
	lastCounter, newCounter int64,
) error {
	if newCounter < lastCounter {
		return fmt.Errorf("pipeline %s counter cannot go back from %d to %d", name, lastCounter, newCounter)
	}
	upsert := psql.Insert("pipeline_counters").
		Columns("pipeline_name", "label_count").
		Values(strings.ToLower(name), newCounter).
		Suffix("on conflict (pipeline_name) do update set label_count = excluded.label_count")
	_, err := execOne(ctx, execerFor(ctx, store.rwdb), upsert)
	return err
}

func (store *PipelineSQLiteStore) withStages(ctx context.Context, pipeline *Pipeline) error {
	stages, err := store.stages.stagesForPipeline(ctx, pipeline.ID)
	if err != nil {
		return err
	}
	pipeline.Stages = stages
	return nil
}

func (store *PipelineSQLiteStore) findOne(ctx context.Context, query sq.SelectBuilder, name string) (*Pipeline, error) {
	p := &Pipeline{}
	if err := getOne(ctx, querier(ctx, store.rdb), p, query); err != nil {
		if IsRecordNotFound(notFound(err, "pipeline", name)) {
			return NullPipeline(name), nil
		}
		return nil, err
	}
	if err := store.withStages(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindPipelineByNameAndCounter returns the run with its stages, or a
// NullPipeline.
func (store *PipelineSQLiteStore) FindPipelineByNameAndCounter(
	ctx context.Context,
	name string,
	counter int64,
) (*Pipeline, error) {
	query := pipelineSelect().Where(eqFold("name", name)).Where(sq.Eq{"counter": counter})
	return store.findOne(ctx, query, name)
}

// FindPipelineByNameAndLabel returns the latest run carrying label.
func (store *PipelineSQLiteStore) FindPipelineByNameAndLabel(
	ctx context.Context,
	name, label string,
) (*Pipeline, error) {
	query := pipelineSelect().
		Where(eqFold("name", name)).
		Where(sq.Eq{"label": label}).
		OrderBy("id desc").
		Limit(1)
	return store.findOne(ctx, query, name)
}

func (store *PipelineSQLiteStore) FindBuildCauseOfPipelineByNameAndCounter(
	ctx context.Context,
	name string,
	counter int64,
) (BuildCause, error) {
	key := store.keyForBuildCause(name, counter)
	return cache.Load(store.goCache, key, cache.Identity[BuildCause], func() (BuildCause, error) {
		var cause BuildCause
		query := psql.Select("build_cause_message as message", "build_cause_approver as approver").
			From("pipelines").
			Where(eqFold("name", name)).
			Where(sq.Eq{"counter": counter})
		if err := getOne(ctx, querier(ctx, store.rdb), &cause, query); err != nil {
			return cause, notFound(err, "pipeline", fmt.Sprintf("%s/%d", name, counter))
		}
		return cause, nil
	})
}

// LoadPipeline returns the run with its stages and jobs.
func (store *PipelineSQLiteStore) LoadPipeline(ctx context.Context, id int64) (*Pipeline, error) {
	p := &Pipeline{}
	if err := getOne(ctx, querier(ctx, store.rdb), p, pipelineSelect().Where(sq.Eq{"id": id})); err != nil {
		return nil, notFound(err, "pipeline", id)
	}
	if err := store.withStages(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PipelineSQLiteStore) MostRecentPipeline(ctx context.Context, name string) (*Pipeline, error) {
	id, err := store.LatestPipelineID(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return NullPipeline(name), nil
	}
	return store.LoadPipeline(ctx, id)
}

// LatestPipelineID returns the id of the newest run of name, or 0.
func (store *PipelineSQLiteStore) LatestPipelineID(ctx context.Context, name string) (int64, error) {
	key := store.keyForLatestPipelineID(name)
	return cache.Load(store.goCache, key, cache.Identity[int64], func() (int64, error) {
		var id sql.NullInt64
		query := psql.Select("max(id)").From("pipelines").Where(eqFold("name", name))
		err := getOne(ctx, querier(ctx, store.rdb), &id, query)
		return id.Int64, err
	})
}

// LoadHistory returns runs of name, newest first, each through the
// pipelineHistory cache.
func (store *PipelineSQLiteStore) LoadHistory(ctx context.Context, name string, limit, offset int) ([]Pipeline, error) {
	var ids []int64
	query := psql.Select("id").
		From("pipelines").
		Where(eqFold("name", name)).
		OrderBy("natural_order desc", "id desc").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if err := selectAll(ctx, querier(ctx, store.rdb), &ids, query); err != nil {
		return nil, err
	}
	history := make([]Pipeline, 0, len(ids))
	for _, id := range ids {
		p, err := store.PipelineHistoryByID(ctx, id)
		if err != nil {
			return nil, err
		}
		history = append(history, *p)
	}
	return history, nil
}

func (store *PipelineSQLiteStore) PipelineHistoryByID(ctx context.Context, id int64) (*Pipeline, error) {
	return cache.Load(store.goCache, store.keyForPipelineHistory(id), (*Pipeline).Clone, func() (*Pipeline, error) {
		return store.LoadPipeline(ctx, id)
	})
}

func (store *PipelineSQLiteStore) Count(ctx context.Context, name string) (int, error) {
	var count int
	query := psql.Select("count(*)").From("pipelines").Where(eqFold("name", name))
	err := getOne(ctx, querier(ctx, store.rdb), &count, query)
	return count, err
}

func (store *PipelineSQLiteStore) Pause(ctx context.Context, name, cause, by string) error {
	key := store.keyForPauseState(name)
	unlock := store.goCache.Lock(key)
	defer unlock()

	upsert := psql.Insert("pipeline_pause").
		Columns("pipeline_name", "paused", "pause_cause", "pause_by", "paused_at").
		Values(strings.ToLower(name), true, cause, by, store.now().UTC()).
		Suffix(`on conflict (pipeline_name) do update set
			paused = excluded.paused,
			pause_cause = excluded.pause_cause,
			pause_by = excluded.pause_by,
			paused_at = excluded.paused_at`)
	if _, err := execOne(ctx, execerFor(ctx, store.rwdb), upsert); err != nil {
		return fmt.Errorf("pausing pipeline %s: %w", name, err)
	}
	store.goCache.Remove(key)
	return nil
}

func (store *PipelineSQLiteStore) Unpause(ctx context.Context, name string) error {
	key := store.keyForPauseState(name)
	unlock := store.goCache.Lock(key)
	defer unlock()

	upsert := psql.Insert("pipeline_pause").
		Columns("pipeline_name", "paused", "pause_cause", "pause_by", "paused_at").
		Values(strings.ToLower(name), false, "", "", nil).
		Suffix(`on conflict (pipeline_name) do update set
			paused = excluded.paused,
			pause_cause = excluded.pause_cause,
			pause_by = excluded.pause_by,
			paused_at = excluded.paused_at`)
	if _, err := execOne(ctx, execerFor(ctx, store.rwdb), upsert); err != nil {
		return fmt.Errorf("unpausing pipeline %s: %w", name, err)
	}
	store.goCache.Remove(key)
	return nil
}

// PauseState returns PipelinePauseInfoNull for pipelines never paused.
func (store *PipelineSQLiteStore) PauseState(ctx context.Context, name string) (PipelinePauseInfo, error) {
	clone := func(info PipelinePauseInfo) PipelinePauseInfo {
		if info.PausedAt != nil {
			t := *info.PausedAt
			info.PausedAt = &t
		}
		return info
	}
	return cache.Load(store.goCache, store.keyForPauseState(name), clone, func() (PipelinePauseInfo, error) {
		var info PipelinePauseInfo
		query := psql.Select("paused", "pause_cause", "pause_by", "paused_at").
			From("pipeline_pause").
			Where(sq.Eq{"pipeline_name": strings.ToLower(name)})
		if err := getOne(ctx, querier(ctx, store.rdb), &info, query); err != nil {
			if IsRecordNotFound(notFound(err, "pipeline", name)) {
				return PipelinePauseInfoNull, nil
			}
			return info, err
		}
		return info, nil
	})
}

// LatestPassedStageIdentifier returns the newest passed run of stage in
// runs of the same pipeline up to pipelineID.
func (store *PipelineSQLiteStore) LatestPassedStageIdentifier(
	ctx context.Context,
	pipelineID int64,
	stage string,
) (StageIdentifier, error) {
	var name string
	nameQuery := psql.Select("name").From("pipelines").Where(sq.Eq{"id": pipelineID})
	if err := getOne(ctx, querier(ctx, store.rdb), &name, nameQuery); err != nil {
		return StageIdentifierNull, notFound(err, "pipeline", pipelineID)
	}

	key := store.keyForLatestPassedStage(name, stage)
	subkey := fmt.Sprint(pipelineID)
	return cache.LoadSub(store.goCache, key, subkey, cache.Identity[StageIdentifier], func() (StageIdentifier, error) {
		var id StageIdentifier
		query := psql.Select(
			"p.name as pipeline_name",
			"p.counter as pipeline_counter",
			"p.label as pipeline_label",
			"s.name as stage_name",
			"s.counter as stage_counter",
		).
			From("stages s").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", name)).
			Where(sq.LtOrEq{"p.id": pipelineID}).
			Where(eqFold("s.name", stage)).
			Where(sq.Eq{"s.state": StagePassed}).
			OrderBy("s.id desc").
			Limit(1)
		if err := getOne(ctx, querier(ctx, store.rdb), &id, query); err != nil {
			if IsRecordNotFound(notFound(err, "stage", stage)) {
				return StageIdentifierNull, nil
			}
			return id, err
		}
		return id, nil
	})
}

func (store *PipelineSQLiteStore) UpdateComment(ctx context.Context, name string, counter int64, comment string) error {
	var id int64
	query := psql.Update("pipelines").
		Set("comment", comment).
		Where(eqFold("name", name)).
		Where(sq.Eq{"counter": counter}).
		Suffix("returning id")
	if err := getOne(ctx, querier(ctx, store.rwdb), &id, query); err != nil {
		return notFound(err, "pipeline", fmt.Sprintf("%s/%d", name, counter))
	}
	store.goCache.Remove(store.keyForPipelineHistory(id))
	return nil
}

func cloneActivePipelines(m map[string][]int64) map[string][]int64 {
	c := make(map[string][]int64, len(m))
	for name, ids := range m {
		c[name] = slices.Clone(ids)
	}
	return c
}

// ActivePipelines maps pipeline names to the sorted ids of their runs
// with a building or failing stage.
func (store *PipelineSQLiteStore) ActivePipelines(ctx context.Context) (map[string][]int64, error) {
	store.activeMu.Lock()
	defer store.activeMu.Unlock()
	return store.activePipelines(ctx)
}

func (store *PipelineSQLiteStore) activePipelines(ctx context.Context) (map[string][]int64, error) {
	key := store.keyForActivePipelines()
	return cache.Load(store.goCache, key, cloneActivePipelines, func() (map[string][]int64, error) {
		return store.loadActivePipelines(ctx)
	})
}

func (store *PipelineSQLiteStore) loadActivePipelines(ctx context.Context) (map[string][]int64, error) {
	var rows []struct {
		Name string
		ID   int64
	}
	query := psql.Select("distinct p.name", "p.id").
		From("pipelines p").
		Join("stages s on s.pipeline_id = p.id").
		Where(sq.Eq{"s.state": []string{string(StageBuilding), string(StageFailing)}}).
		OrderBy("p.id")
	if err := selectAll(ctx, querier(ctx, store.rdb), &rows, query); err != nil {
		return nil, err
	}
	active := make(map[string][]int64)
	for _, r := range rows {
		active[r.Name] = append(active[r.Name], r.ID)
	}
	return active, nil
}

// Initialize warms the active pipeline map and the latest run of every
// pipeline.
func (store *PipelineSQLiteStore) Initialize(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := store.ActivePipelines(gctx)
		return err
	})
	g.Go(func() error {
		var rows []struct {
			Name string
			ID   int64
		}
		query := psql.Select("name", "max(id) as id").From("pipelines").GroupBy("name")
		if err := selectAll(gctx, querier(gctx, store.rdb), &rows, query); err != nil {
			return err
		}
		for _, r := range rows {
			store.goCache.Put(store.keyForLatestPipelineID(r.Name), r.ID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("initializing pipeline history: %w", err)
	}
	store.logger.Info("pipeline history initialized", zap.Int("cacheEntries", store.goCache.Len()))
	return nil
}

// LatestSuccessfulStage returns the last passed run of stage seen since
// startup.
func (store *PipelineSQLiteStore) LatestSuccessfulStage(pipeline, stage string) (StageIdentifier, bool) {
	v, ok := store.goCache.Get(store.keyForLatestSuccessfulStage(pipeline, stage))
	if !ok {
		return StageIdentifierNull, false
	}
	return v.(StageIdentifier), true
}

func (store *PipelineSQLiteStore) StageStatusChanged(stage *Stage) {
	store.goCache.RemoveAll(
		store.keyForPipelineHistory(stage.PipelineID),
		store.keyForLatestPassedStage(stage.PipelineName, stage.Name),
	)
	store.syncActivePipelines(stage)
	if stage.Passed() {
		store.goCache.Put(store.keyForLatestSuccessfulStage(stage.PipelineName, stage.Name), stage.Identifier())
	}
}

func (store *PipelineSQLiteStore) syncActivePipelines(stage *Stage) {
	store.activeMu.Lock()
	defer store.activeMu.Unlock()

	ctx := context.Background()
	active, err := store.activePipelines(ctx)
	if err != nil {
		store.logger.Warn("could not load active pipelines", zap.Error(err))
		store.goCache.Remove(store.keyForActivePipelines())
		return
	}

	ids := active[stage.PipelineName]
	if stage.State.IsActive() {
		if !slices.Contains(ids, stage.PipelineID) {
			ids = append(ids, stage.PipelineID)
			slices.Sort(ids)
		}
	} else {
		var count int
		query := psql.Select("count(*)").
			From("stages").
			Where(sq.Eq{"pipeline_id": stage.PipelineID}).
			Where(sq.NotEq{"id": stage.ID}).
			Where(sq.Eq{"state": []string{string(StageBuilding), string(StageFailing)}})
		if err := getOne(ctx, store.rdb, &count, query); err != nil {
			store.logger.Warn("could not check active stages", zap.Int64("pipelineId", stage.PipelineID), zap.Error(err))
			store.goCache.Remove(store.keyForActivePipelines())
			return
		}
		if count == 0 {
			ids = slices.DeleteFunc(ids, func(id int64) bool { return id == stage.PipelineID })
		}
	}

	if len(ids) == 0 {
		delete(active, stage.PipelineName)
	} else {
		active[stage.PipelineName] = ids
	}
	store.goCache.Put(store.keyForActivePipelines(), active)
}

func (store *PipelineSQLiteStore) keyForLatestPipelineID(name string) string {
	return store.keys.Key("latestPipelineIdByPipelineName", name)
}

func (store *PipelineSQLiteStore) keyForBuildCause(name string, counter int64) string {
	return store.keys.Key("buildCause", name, counter)
}

func (store *PipelineSQLiteStore) keyForPipelineHistory(id int64) string {
	return store.keys.Key("pipelineHistory", id)
}

func (store *PipelineSQLiteStore) keyForPauseState(name string) string {
	return store.keys.Key("cacheKeyForPauseState", name)
}

func (store *PipelineSQLiteStore) keyForLatestPassedStage(pipeline, stage string) string {
	return store.keys.Key("latestPassedStage", pipeline, stage)
}

func (store *PipelineSQLiteStore) keyForLatestSuccessfulStage(pipeline, stage string) string {
	return store.keys.Key("latestSuccessfulStage", pipeline, stage)
}

func (store *PipelineSQLiteStore) keyForActivePipelines() string {
	return store.keys.Key("activePipelines")
}
