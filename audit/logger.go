package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-admissions-auth/internal/metrics"
	"github.com/jrsteele09/go-admissions-auth/internal/utils"
	"github.com/jrsteele09/go-admissions-auth/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Logger writes best-effort audit events. A failed write is logged and
// counted but never returned to the operation being audited.
type Logger struct {
	sink    Sink
	nowTime func() time.Time
}

type LoggerOption func(*Logger)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LoggerOption {
	return func(l *Logger) {
		l.nowTime = nowFunc
	}
}

func NewLogger(sink Sink, options ...LoggerOption) (*Logger, error) {
	if sink == nil {
		return nil, errors.New("[NewLogger] audit sink is required")
	}
	l := &Logger{
		sink:    sink,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

type eventParams struct {
	tableName *string
	recordID  *string
	oldValues any
	newValues any
}

// EventOption sets an optional column of an audit event.
type EventOption func(*eventParams)

func WithTable(name string) EventOption {
	return func(p *eventParams) {
		p.tableName = utils.Ptr(name)
	}
}

func WithRecordID(id string) EventOption {
	return func(p *eventParams) {
		p.recordID = utils.Ptr(id)
	}
}

func WithOldValues(v any) EventOption {
	return func(p *eventParams) {
		p.oldValues = v
	}
}

func WithNewValues(v any) EventOption {
	return func(p *eventParams) {
		p.newValues = v
	}
}

// LogEvent performs a single sink call for action. The actor is the session
// carried by ctx, if any.
func (l *Logger) LogEvent(ctx context.Context, action Action, options ...EventOption) {
	var p eventParams
	for _, opt := range options {
		opt(&p)
	}

	record := Record{
		ID:        uuid.New().String(),
		Action:    action,
		TableName: p.tableName,
		RecordID:  p.recordID,
		OldValues: toJSON(action, p.oldValues),
		NewValues: toJSON(action, p.newValues),
		CreatedAt: l.nowTime().UTC(),
	}
	if s := sessions.FromContext(ctx); s != nil {
		record.ActorUserID = s.UserID
	}

	if err := l.sink.Append(ctx, record); err != nil {
		metrics.AuditWrites.WithLabelValues(string(action), "error").Inc()
		log.Err(err).Str("action", string(action)).Msg("Failed to log audit event")
		return
	}
	metrics.AuditWrites.WithLabelValues(string(action), "ok").Inc()
}

func toJSON(action Action, v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Err(err).Str("action", string(action)).Msg("Audit values are not serialisable")
		return nil
	}
	return utils.Ptr(string(b))
}
