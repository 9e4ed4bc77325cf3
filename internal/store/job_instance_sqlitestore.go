package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/haatos/simple-cd/internal/cache"
	"go.uber.org/zap"
)

type JobInstanceSQLiteStore struct {
	rdb, rwdb       *sql.DB
	txm             *TxManager
	goCache         *cache.GoCache
	latestCompleted *cache.LazyCache
	keys            cache.KeyGenerator
	logger          *zap.Logger
	now             func() time.Time
}

func NewJobInstanceSQLiteStore(
	rdb, rwdb *sql.DB,
	goCache *cache.GoCache,
	logger *zap.Logger,
) *JobInstanceSQLiteStore {
	return &JobInstanceSQLiteStore{
		rdb:             rdb,
		rwdb:            rwdb,
		txm:             NewTxManager(rwdb),
		goCache:         goCache,
		latestCompleted: cache.NewLazyCache(goCache, "JobInstanceSQLiteStore.latestCompleted"),
		keys:            cache.NewKeyGenerator("JobInstanceSQLiteStore"),
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func jobSelect() sq.SelectBuilder {
	return psql.Select(
		"b.id",
		"b.stage_id",
		"b.name",
		"b.state",
		"b.result",
		"b.agent_uuid",
		"b.scheduled_date",
		"b.ignored",
		"b.run_on_all_agents",
		"b.run_multiple_instance",
		"b.original_job_id",
		"b.rerun",
		"p.name as pipeline_name",
		"p.counter as pipeline_counter",
		"p.label as pipeline_label",
		"s.name as stage_name",
		"s.counter as stage_counter",
	).
		From("builds b").
		Join("stages s on s.id = b.stage_id").
		Join("pipelines p on p.id = s.pipeline_id")
}

func (store *JobInstanceSQLiteStore) Save(ctx context.Context, stageID int64, job *JobInstance) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		store.latestCompleted.FlushOnCommit(tx)
		job.StageID = stageID
		if job.ScheduledDate.IsZero() {
			job.ScheduledDate = store.now()
		}
		if job.State == "" {
			job.ChangeState(JobScheduled, job.ScheduledDate)
		}
		if job.Result == "" {
			job.Result = ResultUnknown
		}
		insert := psql.Insert("builds").
			Columns(
				"stage_id",
				"name",
				"state",
				"result",
				"agent_uuid",
				"scheduled_date",
				"ignored",
				"run_on_all_agents",
				"run_multiple_instance",
				"original_job_id",
				"rerun",
			).
			Values(
				job.StageID,
				job.Name,
				job.State,
				job.Result,
				job.AgentUUID,
				job.ScheduledDate,
				job.Ignored,
				job.RunOnAllAgents,
				job.RunMultipleInstance,
				job.OriginalJobID,
				job.Rerun,
			).
			Suffix("returning id")
		if err := getOne(ctx, tx, &job.ID, insert); err != nil {
			return fmt.Errorf("inserting job %s: %w", job.Name, err)
		}
		return store.updateStateAndResult(ctx, tx, job)
	})
}

func (store *JobInstanceSQLiteStore) UpdateStateAndResult(ctx context.Context, job *JobInstance) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		return store.updateStateAndResult(ctx, tx, job)
	})
}

func (store *JobInstanceSQLiteStore) updateStateAndResult(ctx context.Context, tx *Tx, job *JobInstance) error {
	id := job.ID
	tx.AfterCommit(func() {
		store.goCache.RemoveAll(
			store.keyForJobPlan(id),
			store.keyForActiveJobIDs(),
			store.keyForActiveJob(id),
			store.keyForJobWithTransitions(id),
		)
	})
	store.latestCompleted.FlushOnCommit(tx)

	if err := store.logIfCompleted(ctx, tx, job); err != nil {
		return err
	}
	update := psql.Update("builds").
		Set("state", job.State).
		Set("result", job.Result).
		Where(sq.Eq{"id": job.ID})
	if _, err := execOne(ctx, tx, update); err != nil {
		return fmt.Errorf("updating job %d: %w", job.ID, err)
	}
	return store.saveTransitions(ctx, tx, job)
}

func (store *JobInstanceSQLiteStore) logIfCompleted(ctx context.Context, tx *Tx, job *JobInstance) error {
	var current string
	err := getOne(ctx, tx, &current, psql.Select("state").From("builds").Where(sq.Eq{"id": job.ID}))
	if err != nil {
		return notFound(err, "job", job.ID)
	}
	if JobState(current).IsCompleted() && !job.IsCopy() {
		store.logger.Warn(
			"state change for a completed job is not allowed",
			zap.Stringer("job", job.Identifier()),
			zap.String("state", string(job.State)),
			zap.String("result", string(job.Result)),
		)
	}
	return nil
}

func (store *JobInstanceSQLiteStore) saveTransitions(ctx context.Context, tx *Tx, job *JobInstance) error {
	for i := range job.Transitions {
		t := &job.Transitions[i]
		if t.ID != 0 {
			continue
		}
		t.JobID = job.ID
		t.StageID = job.StageID
		insert := psql.Insert("build_state_transitions").
			Columns("build_id", "stage_id", "current_state", "state_change_time").
			Values(t.JobID, t.StageID, t.State, t.StateChangeTime).
			Suffix("returning id")
		if err := getOne(ctx, tx, &t.ID, insert); err != nil {
			return fmt.Errorf("inserting transition for job %d: %w", job.ID, err)
		}
	}
	return nil
}

func (store *JobInstanceSQLiteStore) UpdateAssignedInfo(ctx context.Context, job *JobInstance) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		update := psql.Update("builds").
			Set("agent_uuid", job.AgentUUID).
			Set("run_on_all_agents", job.RunOnAllAgents).
			Set("run_multiple_instance", job.RunMultipleInstance).
			Where(sq.Eq{"id": job.ID})
		if _, err := execOne(ctx, tx, update); err != nil {
			return fmt.Errorf("assigning job %d: %w", job.ID, err)
		}
		return store.updateStateAndResult(ctx, tx, job)
	})
}

func (store *JobInstanceSQLiteStore) Ignore(ctx context.Context, job *JobInstance) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		store.latestCompleted.FlushOnCommit(tx)
		update := psql.Update("builds").Set("ignored", true).Where(sq.Eq{"id": job.ID})
		_, err := execOne(ctx, tx, update)
		return err
	})
}

// BuildByID returns the job with its state transitions.
func (store *JobInstanceSQLiteStore) BuildByID(ctx context.Context, id int64) (*JobInstance, error) {
	return cache.Load(store.goCache, store.keyForJobWithTransitions(id), (*JobInstance).Clone,
		func() (*JobInstance, error) {
			return store.jobWithTransitions(ctx, id)
		},
	)
}

func (store *JobInstanceSQLiteStore) jobWithTransitions(ctx context.Context, id int64) (*JobInstance, error) {
	q := querier(ctx, store.rdb)
	job := &JobInstance{}
	if err := getOne(ctx, q, job, jobSelect().Where(sq.Eq{"b.id": id})); err != nil {
		return nil, notFound(err, "job", id)
	}
	transitions := make([]JobStateTransition, 0)
	query := psql.Select("id", "build_id", "stage_id", "current_state", "state_change_time").
		From("build_state_transitions").
		Where(sq.Eq{"build_id": id}).
		OrderBy("id")
	if err := selectAll(ctx, q, &transitions, query); err != nil {
		return nil, err
	}
	job.Transitions = transitions
	return job, nil
}

func (store *JobInstanceSQLiteStore) MostRecentJobWithTransitions(ctx context.Context, id JobIdentifier) (*JobInstance, error) {
	original, err := store.FindOriginalJobIdentifier(ctx, id.StageIdentifier(), id.BuildName)
	if err != nil {
		return nil, err
	}
	return store.BuildByID(ctx, original.BuildID)
}

// FindOriginalJobIdentifier resolves a job of a stage run to the job that
// actually ran, following copies made by stage reruns.
func (store *JobInstanceSQLiteStore) FindOriginalJobIdentifier(
	ctx context.Context,
	stage StageIdentifier,
	jobName string,
) (JobIdentifier, error) {
	key := store.keyForOriginalJobIdentifier(stage, jobName)
	return cache.Load(store.goCache, key, cache.Identity[JobIdentifier], func() (JobIdentifier, error) {
		var row struct {
			ID            int64
			OriginalJobID *int64
		}
		query := psql.Select("b.id", "b.original_job_id").
			From("builds b").
			Join("stages s on s.id = b.stage_id").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", stage.PipelineName)).
			Where(sq.Eq{"p.counter": stage.PipelineCounter}).
			Where(eqFold("s.name", stage.StageName)).
			Where(sq.Eq{"s.counter": stage.StageCounter}).
			Where(eqFold("b.name", jobName))
		if err := getOne(ctx, querier(ctx, store.rdb), &row, query); err != nil {
			return JobIdentifier{}, notFound(err, "job", fmt.Sprintf("%s/%s", stage, jobName))
		}
		buildID := row.ID
		if row.OriginalJobID != nil {
			buildID = *row.OriginalJobID
		}
		return JobIdentifier{
			PipelineName:    stage.PipelineName,
			PipelineCounter: stage.PipelineCounter,
			PipelineLabel:   stage.PipelineLabel,
			StageName:       stage.StageName,
			StageCounter:    stage.StageCounter,
			BuildName:       jobName,
			BuildID:         buildID,
		}, nil
	})
}

func activeJobCondition() sq.Sqlizer {
	return sq.And{
		sq.NotEq{"b.state": completedJobStates},
		sq.Eq{"b.ignored": false},
	}
}

func (store *JobInstanceSQLiteStore) activeJobIDs(ctx context.Context) ([]int64, error) {
	return cache.Load(store.goCache, store.keyForActiveJobIDs(), cloneIDs, func() ([]int64, error) {
		ids := make([]int64, 0)
		query := psql.Select("b.id").From("builds b").Where(activeJobCondition()).OrderBy("b.id")
		err := selectAll(ctx, querier(ctx, store.rdb), &ids, query)
		return ids, err
	})
}

func (store *JobInstanceSQLiteStore) ActiveJobs(ctx context.Context) ([]ActiveJob, error) {
	ids, err := store.activeJobIDs(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]ActiveJob, 0, len(ids))
	for _, id := range ids {
		job, err := store.activeJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

// activeJob returns nil when the job completed since the id list was read.
func (store *JobInstanceSQLiteStore) activeJob(ctx context.Context, id int64) (*ActiveJob, error) {
	key := store.keyForActiveJob(id)
	unlock := store.goCache.Lock(key)
	defer unlock()
	if v, ok := store.goCache.Get(key); ok {
		job := v.(ActiveJob)
		return &job, nil
	}
	job := ActiveJob{}
	query := psql.Select(
		"b.id",
		"b.name",
		"b.state",
		"b.agent_uuid",
		"p.name as pipeline_name",
		"p.counter as pipeline_counter",
		"p.label as pipeline_label",
		"s.name as stage_name",
		"s.counter as stage_counter",
	).
		From("builds b").
		Join("stages s on s.id = b.stage_id").
		Join("pipelines p on p.id = s.pipeline_id").
		Where(sq.Eq{"b.id": id}).
		Where(activeJobCondition())
	if err := getOne(ctx, querier(ctx, store.rdb), &job, query); err != nil {
		if IsRecordNotFound(notFound(err, "job", id)) {
			return nil, nil
		}
		return nil, err
	}
	store.goCache.Put(key, job)
	return &job, nil
}

// OrderedScheduledJobs returns jobs waiting for an agent, oldest first.
func (store *JobInstanceSQLiteStore) OrderedScheduledJobs(ctx context.Context) ([]JobInstance, error) {
	ids := make([]int64, 0)
	query := psql.Select("b.id").
		From("builds b").
		Where(sq.Eq{"b.state": JobScheduled, "b.ignored": false}).
		OrderBy("b.scheduled_date", "b.id")
	if err := selectAll(ctx, querier(ctx, store.rdb), &ids, query); err != nil {
		return nil, err
	}
	jobs := make([]JobInstance, 0, len(ids))
	for _, id := range ids {
		job, err := cache.Load(store.goCache, store.keyForJobPlan(id), (*JobInstance).Clone, func() (*JobInstance, error) {
			job := &JobInstance{}
			err := getOne(ctx, querier(ctx, store.rdb), job, jobSelect().Where(sq.Eq{"b.id": id}))
			return job, notFound(err, "job", id)
		})
		if IsRecordNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func completedJobsOf(pipeline, stage, job string) sq.SelectBuilder {
	return jobSelect().
		Where(eqFold("p.name", pipeline)).
		Where(eqFold("s.name", stage)).
		Where(eqFold("b.name", job)).
		Where(sq.Eq{"b.state": JobCompleted})
}

func (store *JobInstanceSQLiteStore) LatestCompletedJobs(
	ctx context.Context,
	pipeline, stage, job string,
	limit int,
) ([]JobInstance, error) {
	key := store.keys.Key("latestCompletedJobs", pipeline, stage, job, limit)
	return cache.LazyGet(store.latestCompleted, key, cloneJobs, func() ([]JobInstance, error) {
		jobs := make([]JobInstance, 0)
		query := completedJobsOf(pipeline, stage, job).OrderBy("b.id desc").Limit(uint64(limit))
		err := selectAll(ctx, querier(ctx, store.rdb), &jobs, query)
		return jobs, err
	})
}

func (store *JobInstanceSQLiteStore) FindJobHistoryPage(
	ctx context.Context,
	pipeline, stage, job string,
	pageSize, offset int,
) ([]JobInstance, error) {
	key := store.keys.Key("findJobHistoryPage", pipeline, stage, job, pageSize, offset)
	return cache.LazyGet(store.latestCompleted, key, cloneJobs, func() ([]JobInstance, error) {
		jobs := make([]JobInstance, 0)
		query := jobSelect().
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage)).
			Where(eqFold("b.name", job)).
			OrderBy("b.id desc").
			Limit(uint64(pageSize)).
			Offset(uint64(offset))
		err := selectAll(ctx, querier(ctx, store.rdb), &jobs, query)
		return jobs, err
	})
}

func (store *JobInstanceSQLiteStore) JobHistoryCount(ctx context.Context, pipeline, stage, job string) (int, error) {
	key := store.keys.Key("getJobHistoryCount", pipeline, stage, job)
	return cache.LazyGet(store.latestCompleted, key, cache.Identity[int], func() (int, error) {
		var count int
		query := psql.Select("count(*)").
			From("builds b").
			Join("stages s on s.id = b.stage_id").
			Join("pipelines p on p.id = s.pipeline_id").
			Where(eqFold("p.name", pipeline)).
			Where(eqFold("s.name", stage)).
			Where(eqFold("b.name", job))
		err := getOne(ctx, querier(ctx, store.rdb), &count, query)
		return count, err
	})
}

// FindJobInstance returns NullJobInstance when the run has no such job.
func (store *JobInstanceSQLiteStore) FindJobInstance(
	ctx context.Context,
	pipeline string,
	pipelineCounter int64,
	stage string,
	stageCounter int64,
	job string,
) (*JobInstance, error) {
	key := store.keys.Key("findJobInstance", pipeline, stage, job, pipelineCounter, stageCounter)
	return cache.LazyGet(store.latestCompleted, key, (*JobInstance).Clone, func() (*JobInstance, error) {
		instance := &JobInstance{}
		query := jobSelect().
			Where(eqFold("p.name", pipeline)).
			Where(sq.Eq{"p.counter": pipelineCounter}).
			Where(eqFold("s.name", stage)).
			Where(sq.Eq{"s.counter": stageCounter}).
			Where(eqFold("b.name", job))
		err := getOne(ctx, querier(ctx, store.rdb), instance, query)
		if IsRecordNotFound(notFound(err, "job", job)) {
			return NullJobInstance(job), nil
		}
		return instance, err
	})
}

// FindHungJobs returns jobs being built by agents that are no longer live.
func (store *JobInstanceSQLiteStore) FindHungJobs(ctx context.Context, liveAgentUUIDs []string) ([]JobInstance, error) {
	jobs := make([]JobInstance, 0)
	query := jobSelect().
		Where(sq.Eq{"b.state": []string{
			string(JobAssigned),
			string(JobPreparing),
			string(JobBuilding),
			string(JobCompleting),
		}}).
		Where(sq.Eq{"b.ignored": false}).
		Where(sq.NotEq{"b.agent_uuid": nil}).
		Where(sq.NotEq{"b.agent_uuid": liveAgentUUIDs}).
		OrderBy("b.id")
	err := selectAll(ctx, querier(ctx, store.rdb), &jobs, query)
	return jobs, err
}

func (store *JobInstanceSQLiteStore) CompletedJobsOnAgent(
	ctx context.Context,
	uuid string,
	column JobHistoryColumn,
	order SortOrder,
	offset, limit int,
) ([]JobInstance, error) {
	orderColumn, ok := jobHistoryColumns[column]
	if !ok {
		return nil, fmt.Errorf("unknown job history column %q", column)
	}
	if order != Ascending && order != Descending {
		return nil, fmt.Errorf("unknown sort order %q", order)
	}
	jobs := make([]JobInstance, 0)
	query := jobSelect().
		Where(sq.Eq{"b.agent_uuid": uuid, "b.state": completedJobStates}).
		OrderBy(orderColumn+" "+string(order), "b.id "+string(order)).
		Limit(uint64(limit)).
		Offset(uint64(offset))
	err := selectAll(ctx, querier(ctx, store.rdb), &jobs, query)
	return jobs, err
}

func (store *JobInstanceSQLiteStore) TotalCompletedJobsOnAgent(ctx context.Context, uuid string) (int, error) {
	var count int
	query := psql.Select("count(*)").
		From("builds b").
		Where(sq.Eq{"b.agent_uuid": uuid, "b.state": completedJobStates})
	err := getOne(ctx, querier(ctx, store.rdb), &count, query)
	return count, err
}

// JobStatusChanged drops lookups that change meaning when a job moves on.
func (store *JobInstanceSQLiteStore) JobStatusChanged(job *JobInstance) {
	if job.IsRescheduled() {
		store.goCache.RemoveAll(store.keyForOriginalJobIdentifier(job.Identifier().StageIdentifier(), job.Name))
	}
	store.latestCompleted.Flush()
}

// jobsForStage returns the jobs of a stage run ordered by id.
func (store *JobInstanceSQLiteStore) jobsForStage(ctx context.Context, stageID int64) ([]JobInstance, error) {
	jobs := make([]JobInstance, 0)
	err := selectAll(ctx, querier(ctx, store.rdb), &jobs, jobSelect().Where(sq.Eq{"b.stage_id": stageID}).OrderBy("b.id"))
	return jobs, err
}

func cloneIDs(ids []int64) []int64 {
	return slices.Clone(ids)
}

func (store *JobInstanceSQLiteStore) keyForJobWithTransitions(id int64) string {
	return store.keys.Key("jobInstanceWithTransitionIds", id)
}

func (store *JobInstanceSQLiteStore) keyForJobPlan(id int64) string {
	return store.keys.Key("jobPlan", id)
}

func (store *JobInstanceSQLiteStore) keyForActiveJob(id int64) string {
	return store.keys.Key("activeJob", id)
}

func (store *JobInstanceSQLiteStore) keyForActiveJobIDs() string {
	return store.keys.Key("activeJobIds")
}

func (store *JobInstanceSQLiteStore) keyForOriginalJobIdentifier(stage StageIdentifier, jobName string) string {
	return store.keys.Key(
		"originalJobIdentifier",
		stage.PipelineName,
		stage.PipelineLabel,
		strconv.FormatInt(stage.PipelineCounter, 10),
		stage.StageName,
		strconv.FormatInt(stage.StageCounter, 10),
		jobName,
	)
}
