package sinkfake

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jrsteele09/go-admissions-auth/audit"
)

var (
	_ audit.Sink   = (*FakeSink)(nil)
	_ audit.Reader = (*FakeSink)(nil)
)

// FakeSink records every appended audit record in memory.
type FakeSink struct {
	records []audit.Record
	err     error
	lock    sync.RWMutex
}

func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// SetError makes subsequent Append calls fail with err.
func (s *FakeSink) SetError(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.err = err
}

func (s *FakeSink) Append(_ context.Context, record audit.Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *FakeSink) Records() []audit.Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]audit.Record(nil), s.records...)
}

// Actions returns the action of every record in append order.
func (s *FakeSink) Actions() []audit.Action {
	s.lock.RLock()
	defer s.lock.RUnlock()
	actions := make([]audit.Action, 0, len(s.records))
	for _, r := range s.records {
		actions = append(actions, r.Action)
	}
	return actions
}

func (s *FakeSink) List(_ context.Context, offset, limit int) ([]*audit.Event, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	events := make([]*audit.Event, 0, len(s.records))
	for _, r := range s.records {
		e := &audit.Event{
			ID:          r.ID,
			Action:      r.Action,
			TableName:   r.TableName,
			RecordID:    r.RecordID,
			ActorUserID: r.ActorUserID,
			CreatedAt:   r.CreatedAt,
		}
		if r.OldValues != nil {
			e.OldValues = json.RawMessage(*r.OldValues)
		}
		if r.NewValues != nil {
			e.NewValues = json.RawMessage(*r.NewValues)
		}
		events = append(events, e)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})

	if offset >= len(events) {
		return []*audit.Event{}, nil
	}
	end := len(events)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return events[offset:end], nil
}
