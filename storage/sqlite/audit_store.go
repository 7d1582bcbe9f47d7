package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admissions-auth/audit"
	"github.com/pkg/errors"
)

var (
	_ audit.Sink   = (*AuditStore)(nil)
	_ audit.Reader = (*AuditStore)(nil)
)

// AuditStore appends audit records directly to audit_logs.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, record audit.Record) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	var actor *string
	if record.ActorUserID != "" {
		actor = &record.ActorUserID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, table_name, record_id, old_values, new_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, actor, string(record.Action), record.TableName, record.RecordID, record.OldValues, record.NewValues, record.CreatedAt.UTC())
	return errors.Wrap(err, "[AuditStore.Append] insert")
}

func (s *AuditStore) List(ctx context.Context, offset, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, table_name, record_id, old_values, new_values, coalesce(user_id, ''), created_at
		FROM audit_logs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[AuditStore.List] query")
	}
	defer rows.Close()

	events := []*audit.Event{}
	for rows.Next() {
		var (
			e                    audit.Event
			action               string
			oldValues, newValues sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.TableName, &e.RecordID, &oldValues, &newValues, &e.ActorUserID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "[AuditStore.List] scan")
		}
		e.Action = audit.Action(action)
		if oldValues.Valid {
			e.OldValues = json.RawMessage(oldValues.String)
		}
		if newValues.Valid {
			e.NewValues = json.RawMessage(newValues.String)
		}
		events = append(events, &e)
	}
	return events, errors.Wrap(rows.Err(), "[AuditStore.List] rows")
}
