package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/haatos/simple-cd/internal/store"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, role store.Role, username, hash string) (*store.User, error) {
	args := m.Called(ctx, role, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) CreateSuperuser(ctx context.Context, username, hash string) (*store.User, error) {
	args := m.Called(ctx, username, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) ReadUserByID(ctx context.Context, userID int64) (*store.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) ReadUserByUsername(ctx context.Context, username string) (*store.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) ReadUserBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.User), args.Error(1)
}

func (m *MockUserStore) UpdateUserRole(ctx context.Context, userID int64, role store.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockUserStore) UpdateUserPassword(
	ctx context.Context,
	userID int64,
	passwordHash string,
	changedOn *time.Time,
) error {
	args := m.Called(ctx, userID, passwordHash, changedOn)
	return args.Error(0)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*store.User), args.Error(1)
}

func (m *MockUserStore) ListSuperusers(ctx context.Context) ([]store.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.User), args.Error(1)
}

func (m *MockUserStore) CreateAuthSession(
	ctx context.Context,
	sessionID string,
	userID int64,
	expires time.Time,
) (*store.AuthSession, error) {
	args := m.Called(ctx, sessionID, userID, expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.AuthSession), nil
}

func (m *MockUserStore) DeleteAuthSessionsByUserID(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockAgentStore struct {
	mock.Mock
}

func (m *MockAgentStore) CreateAgent(ctx context.Context, a *store.Agent) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAgentStore) ReadAgentByUUID(ctx context.Context, uuid string) (*store.Agent, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Agent), args.Error(1)
}

func (m *MockAgentStore) UpdateAgent(ctx context.Context, a *store.Agent) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAgentStore) UpdateAgents(ctx context.Context, agents []*store.Agent) error {
	args := m.Called(ctx, agents)
	return args.Error(0)
}

func (m *MockAgentStore) DeleteAgents(ctx context.Context, uuids []string) error {
	args := m.Called(ctx, uuids)
	return args.Error(0)
}

func (m *MockAgentStore) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*store.Agent), args.Error(1)
}

type MockAccessTokenStore struct {
	mock.Mock
}

func (m *MockAccessTokenStore) CreateAccessToken(
	ctx context.Context,
	userID int64,
	description, tokenHash string,
) (*store.AccessToken, error) {
	args := m.Called(ctx, userID, description, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.AccessToken), args.Error(1)
}

func (m *MockAccessTokenStore) ReadAccessTokenByHash(ctx context.Context, tokenHash string) (*store.AccessToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.AccessToken), args.Error(1)
}

func (m *MockAccessTokenStore) TouchAccessToken(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccessTokenStore) RevokeAccessToken(ctx context.Context, userID, id int64) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockAccessTokenStore) ListAccessTokens(ctx context.Context, userID int64) ([]*store.AccessToken, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*store.AccessToken), args.Error(1)
}

type MockUUIDGenerator struct {
	mock.Mock
}

func (m *MockUUIDGenerator) GenerateUUID() string {
	args := m.Called()
	return args.Get(0).(string)
}

// The history store mocks embed the store interfaces so that only the
// methods a test sets up need an implementation.

type MockPipelineStore struct {
	mock.Mock
	store.PipelineStore
}

func (m *MockPipelineStore) LoadHistory(ctx context.Context, name string, limit, offset int) ([]store.Pipeline, error) {
	args := m.Called(ctx, name, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Pipeline), args.Error(1)
}

func (m *MockPipelineStore) Count(ctx context.Context, name string) (int, error) {
	args := m.Called(ctx, name)
	return args.Int(0), args.Error(1)
}

func (m *MockPipelineStore) PauseState(ctx context.Context, name string) (store.PipelinePauseInfo, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(store.PipelinePauseInfo), args.Error(1)
}

func (m *MockPipelineStore) FindPipelineByNameAndCounter(ctx context.Context, name string, counter int64) (*store.Pipeline, error) {
	args := m.Called(ctx, name, counter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Pipeline), args.Error(1)
}

func (m *MockPipelineStore) Pause(ctx context.Context, name, cause, by string) error {
	return m.Called(ctx, name, cause, by).Error(0)
}

func (m *MockPipelineStore) Unpause(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockPipelineStore) Save(ctx context.Context, p *store.Pipeline) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPipelineStore) StageStatusChanged(stage *store.Stage) {
	m.Called(stage)
}

type MockStageStore struct {
	mock.Mock
	store.StageStore
}

func (m *MockStageStore) FindAllStagesFor(ctx context.Context, pipeline string, counter int64) ([]store.Stage, error) {
	args := m.Called(ctx, pipeline, counter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Stage), args.Error(1)
}

func (m *MockStageStore) FindStageWithIdentifier(ctx context.Context, id store.StageIdentifier) (*store.Stage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Stage), args.Error(1)
}

func (m *MockStageStore) UpdateResult(ctx context.Context, stage *store.Stage, result store.JobResult, username string) error {
	return m.Called(ctx, stage, result, username).Error(0)
}

func (m *MockStageStore) Save(ctx context.Context, pipeline *store.Pipeline, stage *store.Stage) error {
	return m.Called(ctx, pipeline, stage).Error(0)
}

func (m *MockStageStore) StageStatusChanged(stage *store.Stage) {
	m.Called(stage)
}

func (m *MockStageStore) JobStatusChanged(job *store.JobInstance) {
	m.Called(job)
}

type MockJobInstanceStore struct {
	mock.Mock
	store.JobInstanceStore
}

func (m *MockJobInstanceStore) FindJobHistoryPage(
	ctx context.Context,
	pipeline, stage, job string,
	pageSize, offset int,
) ([]store.JobInstance, error) {
	args := m.Called(ctx, pipeline, stage, job, pageSize, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.JobInstance), args.Error(1)
}

func (m *MockJobInstanceStore) JobHistoryCount(ctx context.Context, pipeline, stage, job string) (int, error) {
	args := m.Called(ctx, pipeline, stage, job)
	return args.Int(0), args.Error(1)
}

func (m *MockJobInstanceStore) FindJobInstance(
	ctx context.Context,
	pipeline string,
	pipelineCounter int64,
	stage string,
	stageCounter int64,
	job string,
) (*store.JobInstance, error) {
	args := m.Called(ctx, pipeline, pipelineCounter, stage, stageCounter, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.JobInstance), args.Error(1)
}

func (m *MockJobInstanceStore) UpdateStateAndResult(ctx context.Context, job *store.JobInstance) error {
	return m.Called(ctx, job).Error(0)
}

func (m *MockJobInstanceStore) JobStatusChanged(job *store.JobInstance) {
	m.Called(job)
}
