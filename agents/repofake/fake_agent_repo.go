package agentrepofake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admissions-auth/agents"
)

var _ agents.Repo = (*FakeAgentRepo)(nil)

type FakeAgentRepo struct {
	agents map[string]*agents.Agent // keyed by user id
	err    error
	lock   sync.RWMutex
}

func NewFakeAgentRepo() *FakeAgentRepo {
	return &FakeAgentRepo{
		agents: make(map[string]*agents.Agent),
	}
}

func (r *FakeAgentRepo) SetError(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.err = err
}

func (r *FakeAgentRepo) GetByUserID(_ context.Context, userID string) (*agents.Agent, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.agents[userID]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *FakeAgentRepo) Upsert(_ context.Context, agent *agents.Agent) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.err != nil {
		return r.err
	}
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	cp := *agent
	r.agents[agent.UserID] = &cp
	return nil
}
