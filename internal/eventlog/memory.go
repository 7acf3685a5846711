package eventlog

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by service unit tests that don't
// spin up Postgres. It ignores the tx argument entirely since there is no
// real transaction to join.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byStream map[string][]*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byStream: make(map[string][]*Event)}
}

func (s *MemoryStore) Append(_ context.Context, _ any, streamID, eventType string, data, metadata map[string]any) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev := &Event{ID: s.nextID, StreamID: streamID, Type: eventType, Data: data, Metadata: metadata}
	s.byStream[streamID] = append(s.byStream[streamID], ev)
	return ev, nil
}

func (s *MemoryStore) ListByStream(_ context.Context, streamID string) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.byStream[streamID]))
	copy(out, s.byStream[streamID])
	return out, nil
}
