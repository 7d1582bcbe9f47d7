package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-admissions-auth/audit"
	"github.com/pkg/errors"
)

var (
	_ audit.Sink   = (*AuditStore)(nil)
	_ audit.Reader = (*AuditStore)(nil)
)

// AuditStore writes through the log_audit_event function and reads audit_logs.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Append calls log_audit_event in a transaction that carries the actor.
// The database assigns the event id and timestamp.
func (s *AuditStore) Append(ctx context.Context, record audit.Record) error {
	const actorSQL = `SELECT set_config('app.actor_user_id', $1, true)`
	const rpcSQL = `SELECT log_audit_event($1, $2, $3, $4::jsonb, $5::jsonb)::text`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "[AuditStore.Append] begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, actorSQL, record.ActorUserID); err != nil {
		return errors.Wrap(err, "[AuditStore.Append] set actor")
	}

	var id string
	err = tx.QueryRow(ctx, rpcSQL, string(record.Action), record.TableName, record.RecordID, record.OldValues, record.NewValues).Scan(&id)
	if err != nil {
		return errors.Wrap(err, "[AuditStore.Append] log_audit_event")
	}
	return errors.Wrap(tx.Commit(ctx), "[AuditStore.Append] commit")
}

func (s *AuditStore) List(ctx context.Context, offset, limit int) ([]*audit.Event, error) {
	const listSQL = `
		SELECT id::text, action, table_name, record_id, old_values::text, new_values::text, coalesce(user_id, ''), created_at
		FROM audit_logs
		ORDER BY created_at DESC, id
		OFFSET $1
		LIMIT $2
	`

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := s.pool.Query(ctx, listSQL, offset, limitArg)
	if err != nil {
		return nil, errors.Wrap(err, "[AuditStore.List] query")
	}
	defer rows.Close()

	events := []*audit.Event{}
	for rows.Next() {
		var (
			e                    audit.Event
			action               string
			oldValues, newValues *string
		)
		if err := rows.Scan(&e.ID, &action, &e.TableName, &e.RecordID, &oldValues, &newValues, &e.ActorUserID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "[AuditStore.List] scan")
		}
		e.Action = audit.Action(action)
		if oldValues != nil {
			e.OldValues = json.RawMessage(*oldValues)
		}
		if newValues != nil {
			e.NewValues = json.RawMessage(*newValues)
		}
		events = append(events, &e)
	}
	return events, errors.Wrap(rows.Err(), "[AuditStore.List] rows")
}
