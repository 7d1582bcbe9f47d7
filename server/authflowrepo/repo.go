package authflowrepo

import (
	"errors"
	"time"
)

var ErrStateNotFound = errors.New("state not found")

// AuthFlowState is what the OAuth start handler remembers until the callback.
type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

// Expired reports whether the flow is older than timeout at now.
func (s *AuthFlowState) Expired(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(s.CreatedAt) > timeout
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	// Take returns and removes the state in one step; only one caller can win it.
	Take(state string) (*AuthFlowState, error)
	Delete(state string) error
}
