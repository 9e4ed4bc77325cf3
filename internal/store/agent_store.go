package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/haatos/simple-cd/internal/util"
)

type AgentState string

const (
	AgentPending  AgentState = "Pending"
	AgentEnabled  AgentState = "Enabled"
	AgentDisabled AgentState = "Disabled"
)

// CSV is a list of names stored as one comma separated column.
type CSV []string

func (c CSV) Value() (driver.Value, error) {
	return strings.Join(c, ","), nil
}

func (c *CSV) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into CSV", src)
	}
	*c = ParseCSV(s)
	return nil
}

func ParseCSV(s string) CSV {
	return append(CSV{}, util.SplitCSV(s)...)
}

// Add returns c with names appended, skipping ones already present in
// any case.
func (c CSV) Add(names ...string) CSV {
	return util.NormalizeList(append(slices.Clone(c), names...))
}

func (c CSV) Remove(names ...string) CSV {
	return util.RemoveFold(c, names...)
}

type Agent struct {
	AgentUUID    string     `json:"uuid"`
	Hostname     string     `json:"hostname"`
	IPAddress    string     `json:"ip_address"`
	Resources    CSV        `json:"resources"`
	Environments CSV        `json:"environments"`
	State        AgentState `json:"agent_config_state"`
	Cookie       *string    `json:"-"`
	CreatedOn    time.Time  `json:"created_on"`
}

func (a *Agent) IsPending() bool  { return a.State == AgentPending }
func (a *Agent) IsDisabled() bool { return a.State == AgentDisabled }
func (a *Agent) IsEnabled() bool  { return a.State == AgentEnabled }

type AgentStore interface {
	CreateAgent(context.Context, *Agent) error
	ReadAgentByUUID(context.Context, string) (*Agent, error)
	UpdateAgent(context.Context, *Agent) error
	UpdateAgents(context.Context, []*Agent) error
	DeleteAgents(context.Context, []string) error
	ListAgents(context.Context) ([]*Agent, error)
}
