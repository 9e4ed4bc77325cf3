package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
)

type AgentServicer interface {
	RequestRegistration(ctx context.Context, reg service.AgentRegistration) (*store.Agent, error)
	FindAgent(ctx context.Context, uuid string) (*store.Agent, error)
	ListAgents(ctx context.Context) ([]*store.Agent, error)
	UpdateAgentAttributes(ctx context.Context, uuid string, update service.AgentUpdate) (*store.Agent, error)
	BulkUpdate(ctx context.Context, update service.BulkAgentUpdate) error
	DeleteAgents(ctx context.Context, uuids []string) error
}

type AgentHandler struct {
	agentService AgentServicer
}

func NewAgentHandler(agentService AgentServicer) *AgentHandler {
	return &AgentHandler{agentService}
}

// SetupAgentRoutes registers the agent api. Registration is open to agents;
// everything else goes through m.
func SetupAgentRoutes(g *echo.Group, s AgentServicer, m ...echo.MiddlewareFunc) {
	h := NewAgentHandler(s)
	g.POST("/api/agents/register", h.PostRegistration)
	ag := g.Group("/api/agents", m...)
	ag.GET("", h.GetAgents)
	ag.PATCH("", h.PatchAgents)
	ag.DELETE("", h.DeleteAgents)
	ag.GET("/:uuid", h.GetAgent)
	ag.PATCH("/:uuid", h.PatchAgent)
	ag.DELETE("/:uuid", h.DeleteAgent)
}

type AgentRegistrationParams struct {
	UUID         string   `json:"uuid"`
	Hostname     string   `json:"hostname"`
	IPAddress    string   `json:"ip_address"`
	Resources    []string `json:"resources"`
	Environments []string `json:"environments"`
}

type agentRegistrationResponse struct {
	*store.Agent
	Cookie string `json:"cookie"`
}

func (h *AgentHandler) PostRegistration(c echo.Context) error {
	rp := new(AgentRegistrationParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid agent registration")
	}
	a, err := h.agentService.RequestRegistration(c.Request().Context(), service.AgentRegistration{
		UUID:         rp.UUID,
		Hostname:     rp.Hostname,
		IPAddress:    rp.IPAddress,
		Resources:    rp.Resources,
		Environments: rp.Environments,
	})
	if err != nil {
		return storeError(err, "unable to register agent")
	}
	resp := agentRegistrationResponse{Agent: a}
	if a.Cookie != nil && a.IsPending() {
		resp.Cookie = *a.Cookie
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AgentHandler) GetAgents(c echo.Context) error {
	agents, err := h.agentService.ListAgents(c.Request().Context())
	if err != nil {
		return storeError(err, "unable to list agents")
	}
	return c.JSON(http.StatusOK, listResponse[*store.Agent]{Embedded: agents})
}

func (h *AgentHandler) GetAgent(c echo.Context) error {
	a, err := h.agentService.FindAgent(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return storeError(err, "unable to read agent")
	}
	return c.JSON(http.StatusOK, a)
}

// AgentPatchParams is a partial agent update. AgentConfigState is
// "Enabled" or "Disabled" when given.
type AgentPatchParams struct {
	Hostname         string   `json:"hostname"`
	Resources        []string `json:"resources"`
	Environments     []string `json:"environments"`
	AgentConfigState *string  `json:"agent_config_state"`
}

func (h *AgentHandler) PatchAgent(c echo.Context) error {
	pp := new(AgentPatchParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid agent data")
	}
	enable, err := parseAgentState(pp.AgentConfigState)
	if err != nil {
		return err
	}
	a, err := h.agentService.UpdateAgentAttributes(c.Request().Context(), c.Param("uuid"), service.AgentUpdate{
		Hostname:     pp.Hostname,
		Resources:    pp.Resources,
		Environments: pp.Environments,
		Enable:       enable,
	})
	if err != nil {
		return agentError(err, "unable to update agent")
	}
	return c.JSON(http.StatusOK, a)
}

type BulkAgentPatchParams struct {
	UUIDs      []string `json:"uuids"`
	Operations struct {
		Resources struct {
			Add    []string `json:"add"`
			Remove []string `json:"remove"`
		} `json:"resources"`
		Environments struct {
			Add    []string `json:"add"`
			Remove []string `json:"remove"`
		} `json:"environments"`
	} `json:"operations"`
	AgentConfigState *string `json:"agent_config_state"`
}

func (h *AgentHandler) PatchAgents(c echo.Context) error {
	bp := new(BulkAgentPatchParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid agents data")
	}
	if len(bp.UUIDs) == 0 {
		return newError(nil, http.StatusBadRequest, "uuids must name at least one agent")
	}
	enable, err := parseAgentState(bp.AgentConfigState)
	if err != nil {
		return err
	}
	if err := h.agentService.BulkUpdate(c.Request().Context(), service.BulkAgentUpdate{
		UUIDs:              bp.UUIDs,
		AddResources:       bp.Operations.Resources.Add,
		RemoveResources:    bp.Operations.Resources.Remove,
		AddEnvironments:    bp.Operations.Environments.Add,
		RemoveEnvironments: bp.Operations.Environments.Remove,
		Enable:             enable,
	}); err != nil {
		return agentError(err, "unable to update agents")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Updated agent(s) successfully."})
}

type DeleteAgentsParams struct {
	UUIDs []string `json:"uuids"`
}

func (h *AgentHandler) DeleteAgents(c echo.Context) error {
	dp := new(DeleteAgentsParams)
	if err := c.Bind(dp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid agents data")
	}
	return h.deleteAgents(c, dp.UUIDs)
}

func (h *AgentHandler) DeleteAgent(c echo.Context) error {
	return h.deleteAgents(c, []string{c.Param("uuid")})
}

func (h *AgentHandler) deleteAgents(c echo.Context, uuids []string) error {
	if err := h.agentService.DeleteAgents(c.Request().Context(), uuids); err != nil {
		return agentError(err, "unable to delete agents")
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Deleted agent(s) successfully."})
}

func parseAgentState(state *string) (*bool, error) {
	if state == nil || *state == "" {
		return nil, nil
	}
	switch store.AgentState(*state) {
	case store.AgentEnabled:
		enable := true
		return &enable, nil
	case store.AgentDisabled:
		enable := false
		return &enable, nil
	}
	return nil, newError(nil, http.StatusBadRequest, "agent_config_state must be Enabled or Disabled")
}

// agentError maps the agent rules to 400, a missing agent to 404 and
// anything else to 500.
func agentError(err error, message string) error {
	var pending *service.InvalidPendingAgentOperationError
	var notDisabled *service.AgentsNotDisabledError
	switch {
	case errors.As(err, &pending), errors.As(err, &notDisabled):
		return newError(err, http.StatusBadRequest, err.Error())
	}
	return storeError(err, message)
}
