package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

type AgentSQLiteStore struct {
	rdb, rwdb *sql.DB
	txm       *TxManager
}

func NewAgentSQLiteStore(rdb, rwdb *sql.DB) *AgentSQLiteStore {
	return &AgentSQLiteStore{rdb: rdb, rwdb: rwdb, txm: NewTxManager(rwdb)}
}

func (store *AgentSQLiteStore) CreateAgent(ctx context.Context, a *Agent) error {
	if a.State == "" {
		a.State = AgentPending
	}
	query := `insert into agents (
		agent_uuid,
		hostname,
		ip_address,
		resources,
		environments,
		state,
		cookie
	)
	values ($1, $2, $3, $4, $5, $6, $7)
	returning created_on`
	return sqlscan.Get(
		ctx, store.rwdb, &a.CreatedOn, query,
		a.AgentUUID,
		a.Hostname,
		a.IPAddress,
		a.Resources,
		a.Environments,
		a.State,
		a.Cookie,
	)
}

func (store *AgentSQLiteStore) ReadAgentByUUID(ctx context.Context, uuid string) (*Agent, error) {
	a := &Agent{}
	query := `select * from agents where agent_uuid = $1`
	if err := sqlscan.Get(ctx, querier(ctx, store.rdb), a, query, uuid); err != nil {
		return nil, notFound(err, "agent", uuid)
	}
	return a, nil
}

func (store *AgentSQLiteStore) UpdateAgent(ctx context.Context, a *Agent) error {
	update := psql.Update("agents").
		Set("hostname", a.Hostname).
		Set("ip_address", a.IPAddress).
		Set("resources", a.Resources).
		Set("environments", a.Environments).
		Set("state", a.State).
		Set("cookie", a.Cookie).
		Where(sq.Eq{"agent_uuid": a.AgentUUID})
	res, err := execOne(ctx, execerFor(ctx, store.rwdb), update)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return RecordNotFoundError{Entity: "agent", ID: a.AgentUUID}
	}
	return nil
}

// UpdateAgents writes all agents or none.
func (store *AgentSQLiteStore) UpdateAgents(ctx context.Context, agents []*Agent) error {
	return store.txm.InTx(ctx, func(ctx context.Context, tx *Tx) error {
		for _, a := range agents {
			if err := store.UpdateAgent(ctx, a); err != nil {
				return fmt.Errorf("updating agent %s: %w", a.AgentUUID, err)
			}
		}
		return nil
	})
}

func (store *AgentSQLiteStore) DeleteAgents(ctx context.Context, uuids []string) error {
	_, err := execOne(ctx, execerFor(ctx, store.rwdb), psql.Delete("agents").Where(sq.Eq{"agent_uuid": uuids}))
	return err
}

func (store *AgentSQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	query := `select * from agents order by hostname, agent_uuid`
	agents := make([]*Agent, 0)
	err := sqlscan.Select(ctx, querier(ctx, store.rdb), &agents, query)
	return agents, err
}
