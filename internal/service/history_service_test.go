package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/store"
)

type historyMocks struct {
	txm       *store.TxManager
	sql       sqlmock.Sqlmock
	pipelines *MockPipelineStore
	stages    *MockStageStore
	jobs      *MockJobInstanceStore
}

func newTestHistoryService(t *testing.T) (*HistoryService, historyMocks) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := historyMocks{
		txm:       store.NewTxManager(db),
		sql:       sqlMock,
		pipelines: new(MockPipelineStore),
		stages:    new(MockStageStore),
		jobs:      new(MockJobInstanceStore),
	}
	return NewHistoryService(m.txm, m.pipelines, m.stages, m.jobs, zap.NewNop()), m
}

// committed fails t when a listener runs before the transaction committed.
func (m historyMocks) committed(t *testing.T) func(mock.Arguments) {
	return func(mock.Arguments) {
		assert.NoError(t, m.sql.ExpectationsWereMet())
	}
}

func TestHistoryService_PipelineHistory(t *testing.T) {
	t.Run("success - page, count and pause state are combined", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		m.pipelines.On("LoadHistory", mock.Anything, "build", 10, 0).
			Return([]store.Pipeline{{ID: 2, Name: "build", Counter: 2}, {ID: 1, Name: "build", Counter: 1}}, nil)
		m.pipelines.On("Count", mock.Anything, "build").Return(2, nil)
		m.pipelines.On("PauseState", mock.Anything, "build").
			Return(store.PipelinePauseInfo{Paused: true, PauseCause: "maintenance", PauseBy: "alice"}, nil)

		// act
		history, err := h.PipelineHistory(context.Background(), "build", 10, 0)

		// assert
		require.NoError(t, err)
		assert.Len(t, history.Pipelines, 2)
		assert.Equal(t, 2, history.Total)
		assert.True(t, history.Pause.Paused)
	})
	t.Run("failure - count error is returned", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		m.pipelines.On("LoadHistory", mock.Anything, "build", 10, 0).Return([]store.Pipeline{}, nil)
		m.pipelines.On("Count", mock.Anything, "build").Return(0, errors.New("db down"))
		m.pipelines.On("PauseState", mock.Anything, "build").Return(store.PipelinePauseInfoNull, nil)

		// act
		history, err := h.PipelineHistory(context.Background(), "build", 10, 0)

		// assert
		assert.EqualError(t, err, "db down")
		assert.Nil(t, history)
	})
}

func TestHistoryService_PipelineInstance(t *testing.T) {
	t.Run("success - stages are attached", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		m.pipelines.On("FindPipelineByNameAndCounter", ctx, "build", int64(3)).
			Return(&store.Pipeline{ID: 9, Name: "build", Counter: 3}, nil)
		m.stages.On("FindAllStagesFor", ctx, "build", int64(3)).
			Return([]store.Stage{{ID: 1, Name: "compile"}}, nil)

		// act
		p, err := h.PipelineInstance(ctx, "build", 3)

		// assert
		require.NoError(t, err)
		require.Len(t, p.Stages, 1)
		assert.Equal(t, "compile", p.Stages[0].Name)
	})
	t.Run("failure - run does not exist", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		m.pipelines.On("FindPipelineByNameAndCounter", ctx, "build", int64(3)).Return(store.NullPipeline("build"), nil)

		// act
		_, err := h.PipelineInstance(ctx, "build", 3)

		// assert
		assert.True(t, store.IsRecordNotFound(err))
	})
}

func TestHistoryService_JobHistory(t *testing.T) {
	t.Run("success - page and count are combined", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		m.jobs.On("FindJobHistoryPage", mock.Anything, "build", "compile", "unit", 5, 5).
			Return([]store.JobInstance{{ID: 4, Name: "unit"}}, nil)
		m.jobs.On("JobHistoryCount", mock.Anything, "build", "compile", "unit").Return(6, nil)

		// act
		history, err := h.JobHistory(context.Background(), "build", "compile", "unit", 5, 5)

		// assert
		require.NoError(t, err)
		assert.Len(t, history.Jobs, 1)
		assert.Equal(t, 6, history.Total)
	})
}

func TestHistoryService_JobInstance(t *testing.T) {
	t.Run("failure - job never ran", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		m.jobs.On("FindJobInstance", ctx, "build", int64(1), "compile", int64(1), "unit").
			Return(store.NullJobInstance("unit"), nil)

		// act
		_, err := h.JobInstance(ctx, store.JobIdentifier{
			PipelineName: "build", PipelineCounter: 1, StageName: "compile", StageCounter: 1, BuildName: "unit",
		})

		// assert
		assert.True(t, store.IsRecordNotFound(err))
	})
}

func TestHistoryService_SavePipelineRun(t *testing.T) {
	t.Run("success - stage listeners hear about every stage after commit", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		p := store.NewPipeline("build", store.BuildCause{Approver: "alice"}, store.Stage{Name: "compile"})
		m.sql.ExpectBegin()
		m.sql.ExpectCommit()
		m.pipelines.On("Save", mock.Anything, p).Return(nil)
		m.stages.On("StageStatusChanged", &p.Stages[0]).Run(m.committed(t)).Return()
		m.pipelines.On("StageStatusChanged", &p.Stages[0]).Run(m.committed(t)).Return()

		// act
		err := h.SavePipelineRun(context.Background(), p)

		// assert
		require.NoError(t, err)
		m.stages.AssertExpectations(t)
		m.pipelines.AssertExpectations(t)
	})
	t.Run("failure - rolled back run notifies nobody", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		p := store.NewPipeline("build", store.BuildCause{Approver: "alice"}, store.Stage{Name: "compile"})
		m.sql.ExpectBegin()
		m.sql.ExpectRollback()
		m.pipelines.On("Save", mock.Anything, p).Return(errors.New("constraint failed"))

		// act
		err := h.SavePipelineRun(context.Background(), p)

		// assert
		assert.EqualError(t, err, "constraint failed")
		m.stages.AssertNotCalled(t, "StageStatusChanged", mock.Anything)
		m.pipelines.AssertNotCalled(t, "StageStatusChanged", mock.Anything)
		assert.NoError(t, m.sql.ExpectationsWereMet())
	})
}

func TestHistoryService_SaveStageRun(t *testing.T) {
	t.Run("success - rerun is announced after commit", func(t *testing.T) {
		// arrange
		h, m := newTestHistoryService(t)
		p := &store.Pipeline{ID: 3, Name: "build", Counter: 1}
		stage := &store.Stage{Name: "compile"}
		m.sql.ExpectBegin()
		m.sql.ExpectCommit()
		m.stages.On("Save", mock.Anything, p, stage).Return(nil)
		m.stages.On("StageStatusChanged", stage).Run(m.committed(t)).Return()
		m.pipelines.On("StageStatusChanged", stage).Run(m.committed(t)).Return()

		// act
		err := h.SaveStageRun(context.Background(), p, stage)

		// assert
		require.NoError(t, err)
		m.stages.AssertExpectations(t)
		m.pipelines.AssertExpectations(t)
	})
}

func TestHistoryService_ReportJobStatus(t *testing.T) {
	t.Run("success - listeners are notified after the job is stored", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		job := &store.JobInstance{ID: 5, StageID: 2, Name: "unit", State: store.JobBuilding}
		m.sql.ExpectBegin()
		m.sql.ExpectCommit()
		m.jobs.On("UpdateStateAndResult", mock.Anything, job).Return(nil)
		m.jobs.On("JobStatusChanged", job).Run(m.committed(t)).Return()
		m.stages.On("JobStatusChanged", job).Run(m.committed(t)).Return()

		// act
		err := h.ReportJobStatus(ctx, job, store.JobCompleted, store.ResultPassed)

		// assert
		require.NoError(t, err)
		assert.Equal(t, store.JobCompleted, job.State)
		assert.Equal(t, store.ResultPassed, job.Result)
		require.Len(t, job.Transitions, 1)
		m.jobs.AssertExpectations(t)
		m.stages.AssertExpectations(t)
	})
	t.Run("failure - listeners are not notified when storing fails", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		job := &store.JobInstance{ID: 5, Name: "unit"}
		m.sql.ExpectBegin()
		m.sql.ExpectRollback()
		m.jobs.On("UpdateStateAndResult", mock.Anything, job).Return(errors.New("locked"))

		// act
		err := h.ReportJobStatus(ctx, job, store.JobBuilding, store.ResultUnknown)

		// assert
		assert.Error(t, err)
		m.jobs.AssertNotCalled(t, "JobStatusChanged", job)
		m.stages.AssertNotCalled(t, "JobStatusChanged", job)
	})
}

func TestHistoryService_ReportStageResult(t *testing.T) {
	t.Run("success - stage listeners are notified", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		stage := &store.Stage{ID: 2, Name: "compile", PipelineName: "build", PipelineCounter: 1}
		m.sql.ExpectBegin()
		m.sql.ExpectCommit()
		m.stages.On("UpdateResult", mock.Anything, stage, store.ResultCancelled, "alice").Return(nil)
		m.stages.On("StageStatusChanged", stage).Run(m.committed(t)).Return()
		m.pipelines.On("StageStatusChanged", stage).Run(m.committed(t)).Return()

		// act
		err := h.ReportStageResult(ctx, stage, store.ResultCancelled, "alice")

		// assert
		require.NoError(t, err)
		m.stages.AssertExpectations(t)
		m.pipelines.AssertExpectations(t)
	})
	t.Run("success - outer transaction holds notifications until it commits", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		stage := &store.Stage{ID: 2, Name: "compile", PipelineName: "build", PipelineCounter: 1}
		m.sql.ExpectBegin()
		m.sql.ExpectCommit()
		m.stages.On("UpdateResult", mock.Anything, stage, store.ResultFailed, "").Return(nil)
		m.stages.On("StageStatusChanged", stage).Run(m.committed(t)).Return()
		m.pipelines.On("StageStatusChanged", stage).Run(m.committed(t)).Return()

		// act
		err := m.txm.InTx(ctx, func(ctx context.Context, _ *store.Tx) error {
			if err := h.ReportStageResult(ctx, stage, store.ResultFailed, ""); err != nil {
				return err
			}
			m.stages.AssertNotCalled(t, "StageStatusChanged", stage)
			return nil
		})

		// assert
		require.NoError(t, err)
		m.stages.AssertExpectations(t)
		m.pipelines.AssertExpectations(t)
	})
	t.Run("failure - outer rollback drops notifications", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		stage := &store.Stage{ID: 2, Name: "compile", PipelineName: "build", PipelineCounter: 1}
		m.sql.ExpectBegin()
		m.sql.ExpectRollback()
		m.stages.On("UpdateResult", mock.Anything, stage, store.ResultFailed, "").Return(nil)

		// act
		err := m.txm.InTx(ctx, func(ctx context.Context, _ *store.Tx) error {
			if err := h.ReportStageResult(ctx, stage, store.ResultFailed, ""); err != nil {
				return err
			}
			return errors.New("agent lost")
		})

		// assert
		assert.EqualError(t, err, "agent lost")
		m.stages.AssertNotCalled(t, "StageStatusChanged", stage)
		m.pipelines.AssertNotCalled(t, "StageStatusChanged", stage)
	})
}

func TestHistoryService_Pause(t *testing.T) {
	t.Run("success - pipeline is paused and unpaused", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		h, m := newTestHistoryService(t)
		m.pipelines.On("Pause", ctx, "build", "maintenance", "alice").Return(nil)
		m.pipelines.On("Unpause", ctx, "build").Return(nil)

		// act
		pauseErr := h.Pause(ctx, "build", "maintenance", "alice")
		unpauseErr := h.Unpause(ctx, "build")

		// assert
		assert.NoError(t, pauseErr)
		assert.NoError(t, unpauseErr)
		m.pipelines.AssertExpectations(t)
	})
}
