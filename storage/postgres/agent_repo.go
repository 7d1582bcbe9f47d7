package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-admissions-auth/agents"
	"github.com/pkg/errors"
)

var _ agents.Repo = (*AgentRepo)(nil)

// AgentRepo implements agents.Repo backed by PostgreSQL.
type AgentRepo struct {
	pool *pgxpool.Pool
}

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func (r *AgentRepo) GetByUserID(ctx context.Context, userID string) (*agents.Agent, error) {
	const selectSQL = `
		SELECT id::text, user_id, company_name, country, is_active, created_at
		FROM agents
		WHERE user_id = $1
	`

	var a agents.Agent
	err := r.pool.QueryRow(ctx, selectSQL, userID).Scan(&a.ID, &a.UserID, &a.CompanyName, &a.Country, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agents.ErrAgentNotFound
		}
		return nil, errors.Wrap(err, "[AgentRepo.GetByUserID] select")
	}
	return &a, nil
}

func (r *AgentRepo) Upsert(ctx context.Context, agent *agents.Agent) error {
	const upsertSQL = `
		INSERT INTO agents (user_id, company_name, country, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET company_name = EXCLUDED.company_name,
		    country = EXCLUDED.country,
		    is_active = EXCLUDED.is_active
		RETURNING id::text, created_at
	`

	err := r.pool.QueryRow(ctx, upsertSQL, agent.UserID, agent.CompanyName, agent.Country, agent.IsActive).Scan(&agent.ID, &agent.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "[AgentRepo.Upsert] upsert")
	}
	return nil
}
