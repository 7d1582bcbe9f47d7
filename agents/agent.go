package agents

import (
	"context"
	"errors"
	"time"
)

var ErrAgentNotFound = errors.New("agent not found")

// Agent is a recruitment agent record linked to a user account.
type Agent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Country     string    `json:"country"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repo is the agents table.
type Repo interface {
	// GetByUserID returns ErrAgentNotFound when the user is not linked to an agent
	GetByUserID(ctx context.Context, userID string) (*Agent, error)
	Upsert(ctx context.Context, agent *Agent) error
}
