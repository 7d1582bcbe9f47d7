package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action is the tag stored in audit_logs.action.
type Action string

const (
	ActionRoleChanged                 Action = "role_changed"
	ActionRoleChangeFailed            Action = "role_change_failed"
	ActionUnauthorizedRoleChange      Action = "unauthorized_role_change_attempt"
	ActionSelfAdminRoleRemovalAttempt Action = "self_admin_role_removal_attempt"
	ActionInvalidRoleChangeAttempt    Action = "invalid_role_change_attempt"
)

const TableUserProfiles = "user_profiles"

// Record is the argument set of one log_audit_event call.
// OldValues and NewValues hold JSON text, nil when absent.
type Record struct {
	ID          string
	Action      Action
	TableName   *string
	RecordID    *string
	OldValues   *string
	NewValues   *string
	ActorUserID string
	CreatedAt   time.Time
}

// Event is a stored audit_logs row.
type Event struct {
	ID          string          `json:"id"`
	Action      Action          `json:"action"`
	TableName   *string         `json:"table_name,omitempty"`
	RecordID    *string         `json:"record_id,omitempty"`
	OldValues   json.RawMessage `json:"old_values,omitempty"`
	NewValues   json.RawMessage `json:"new_values,omitempty"`
	ActorUserID string          `json:"user_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Sink appends audit records. Implementations are the log_audit_event RPC.
type Sink interface {
	Append(ctx context.Context, record Record) error
}

// Reader lists stored audit events, newest first.
type Reader interface {
	List(ctx context.Context, offset, limit int) ([]*Event, error)
}
