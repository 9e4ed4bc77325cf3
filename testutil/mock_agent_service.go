package testutil

import (
	"context"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockAgentService struct {
	mock.Mock
}

func (m *MockAgentService) RequestRegistration(
	ctx context.Context,
	reg service.AgentRegistration,
) (*store.Agent, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Agent), args.Error(1)
}

func (m *MockAgentService) FindAgent(ctx context.Context, uuid string) (*store.Agent, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Agent), args.Error(1)
}

func (m *MockAgentService) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Agent), args.Error(1)
}

func (m *MockAgentService) UpdateAgentAttributes(
	ctx context.Context,
	uuid string,
	update service.AgentUpdate,
) (*store.Agent, error) {
	args := m.Called(ctx, uuid, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Agent), args.Error(1)
}

func (m *MockAgentService) BulkUpdate(ctx context.Context, update service.BulkAgentUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockAgentService) DeleteAgents(ctx context.Context, uuids []string) error {
	args := m.Called(ctx, uuids)
	return args.Error(0)
}
