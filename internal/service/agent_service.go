package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/util"
)

type UUIDGenerator interface {
	GenerateUUID() string
}

type AgentService struct {
	agentStore    store.AgentStore
	uuidGenerator UUIDGenerator
	logger        *zap.Logger
}

func NewAgentService(s store.AgentStore, uuidGenerator UUIDGenerator, logger *zap.Logger) *AgentService {
	return &AgentService{agentStore: s, uuidGenerator: uuidGenerator, logger: logger}
}

// AgentRegistration is what an agent sends when it first contacts the server.
type AgentRegistration struct {
	UUID         string
	Hostname     string
	IPAddress    string
	Resources    []string
	Environments []string
}

// RequestRegistration records a new agent as pending and issues its cookie.
// An agent that is already known is returned as stored.
func (s *AgentService) RequestRegistration(ctx context.Context, reg AgentRegistration) (*store.Agent, error) {
	if reg.UUID == "" {
		reg.UUID = s.uuidGenerator.GenerateUUID()
	}
	existing, err := s.agentStore.ReadAgentByUUID(ctx, reg.UUID)
	if err == nil {
		return existing, nil
	}
	if !store.IsRecordNotFound(err) {
		return nil, err
	}
	a := &store.Agent{
		AgentUUID:    reg.UUID,
		Hostname:     reg.Hostname,
		IPAddress:    reg.IPAddress,
		Resources:    store.CSV(util.NormalizeList(reg.Resources)),
		Environments: store.CSV(util.NormalizeList(reg.Environments)),
		State:        store.AgentPending,
		Cookie:       util.AsPtr(s.uuidGenerator.GenerateUUID()),
	}
	if err := s.agentStore.CreateAgent(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agent requested registration", zap.String("uuid", a.AgentUUID), zap.String("hostname", a.Hostname))
	return a, nil
}

func (s *AgentService) FindAgent(ctx context.Context, uuid string) (*store.Agent, error) {
	return s.agentStore.ReadAgentByUUID(ctx, uuid)
}

func (s *AgentService) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	return s.agentStore.ListAgents(ctx)
}

// Approve enables a pending agent.
func (s *AgentService) Approve(ctx context.Context, uuid string) error {
	return s.UpdateAgentApprovalStatus(ctx, uuid, false)
}

// UpdateAgentApprovalStatus enables or disables the agent.
func (s *AgentService) UpdateAgentApprovalStatus(ctx context.Context, uuid string, disabled bool) error {
	a, err := s.agentStore.ReadAgentByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	a.State = stateFor(!disabled)
	return s.agentStore.UpdateAgent(ctx, a)
}

// AgentUpdate carries the attributes to set on one agent. Nil fields are
// left unchanged.
type AgentUpdate struct {
	Hostname     string
	Resources    []string
	Environments []string
	Enable       *bool
}

// UpdateAgentAttributes applies update to the agent. A pending agent must
// be enabled or disabled in the same update.
func (s *AgentService) UpdateAgentAttributes(ctx context.Context, uuid string, update AgentUpdate) (*store.Agent, error) {
	a, err := s.agentStore.ReadAgentByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if a.IsPending() && update.Enable == nil {
		return nil, NewInvalidPendingAgentOperationError([]string{uuid})
	}
	if update.Hostname != "" {
		a.Hostname = update.Hostname
	}
	if update.Resources != nil {
		a.Resources = store.CSV(util.NormalizeList(update.Resources))
	}
	if update.Environments != nil {
		a.Environments = store.CSV(util.NormalizeList(update.Environments))
	}
	if update.Enable != nil {
		a.State = stateFor(*update.Enable)
	}
	if err := s.agentStore.UpdateAgent(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// BulkAgentUpdate adds and removes resources and environments on several
// agents at once.
type BulkAgentUpdate struct {
	UUIDs              []string
	AddResources       []string
	RemoveResources    []string
	AddEnvironments    []string
	RemoveEnvironments []string
	Enable             *bool
}

// BulkUpdate applies update to every listed agent or to none of them.
func (s *AgentService) BulkUpdate(ctx context.Context, update BulkAgentUpdate) error {
	if len(update.UUIDs) == 0 {
		return errors.New("no agents given")
	}
	agents, err := s.readAll(ctx, update.UUIDs)
	if err != nil {
		return err
	}
	if update.Enable == nil {
		var pending []string
		for _, a := range agents {
			if a.IsPending() {
				pending = append(pending, a.AgentUUID)
			}
		}
		if len(pending) > 0 {
			return NewInvalidPendingAgentOperationError(pending)
		}
	}
	for _, a := range agents {
		a.Resources = a.Resources.Add(update.AddResources...).Remove(update.RemoveResources...)
		a.Environments = a.Environments.Add(update.AddEnvironments...).Remove(update.RemoveEnvironments...)
		if update.Enable != nil {
			a.State = stateFor(*update.Enable)
		}
	}
	if err := s.agentStore.UpdateAgents(ctx, agents); err != nil {
		return fmt.Errorf("updating agents: %w", err)
	}
	return nil
}

// DeleteAgents removes the agents. Every agent must be disabled.
func (s *AgentService) DeleteAgents(ctx context.Context, uuids []string) error {
	agents, err := s.readAll(ctx, uuids)
	if err != nil {
		return err
	}
	var notDisabled []string
	for _, a := range agents {
		if !a.IsDisabled() {
			notDisabled = append(notDisabled, a.AgentUUID)
		}
	}
	if len(notDisabled) > 0 {
		return NewAgentsNotDisabledError(notDisabled)
	}
	return s.agentStore.DeleteAgents(ctx, uuids)
}

func (s *AgentService) readAll(ctx context.Context, uuids []string) ([]*store.Agent, error) {
	agents := make([]*store.Agent, 0, len(uuids))
	for _, uuid := range util.NormalizeList(uuids) {
		a, err := s.agentStore.ReadAgentByUUID(ctx, uuid)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func stateFor(enable bool) store.AgentState {
	if enable {
		return store.AgentEnabled
	}
	return store.AgentDisabled
}
