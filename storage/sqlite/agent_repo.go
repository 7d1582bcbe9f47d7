package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admissions-auth/agents"
	"github.com/pkg/errors"
)

var _ agents.Repo = (*AgentRepo)(nil)

// AgentRepo implements agents.Repo on SQLite.
type AgentRepo struct {
	db *sql.DB
}

func NewAgentRepo(db *sql.DB) *AgentRepo {
	return &AgentRepo{db: db}
}

func (r *AgentRepo) GetByUserID(ctx context.Context, userID string) (*agents.Agent, error) {
	var a agents.Agent
	err := r.db.QueryRowContext(ctx, `SELECT id, user_id, company_name, country, is_active, created_at FROM agents WHERE user_id = ?`, userID).
		Scan(&a.ID, &a.UserID, &a.CompanyName, &a.Country, &a.IsActive, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agents.ErrAgentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AgentRepo.GetByUserID] select")
	}
	return &a, nil
}

func (r *AgentRepo) Upsert(ctx context.Context, agent *agents.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (id, user_id, company_name, country, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET company_name = excluded.company_name,
		    country = excluded.country,
		    is_active = excluded.is_active`,
		agent.ID, agent.UserID, agent.CompanyName, agent.Country, agent.IsActive, agent.CreatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "[AgentRepo.Upsert] upsert")
	}

	stored, err := r.GetByUserID(ctx, agent.UserID)
	if err != nil {
		return errors.Wrap(err, "[AgentRepo.Upsert] reload")
	}
	agent.ID = stored.ID
	agent.CreatedAt = stored.CreatedAt
	return nil
}
