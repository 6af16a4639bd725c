package sinks

import (
	"context"
	"sync"

	"snesclient/logging"
)

// MemorySink retains events in order for tests to inspect. The category
// and type filters match how the client's helpers tag their events, so
// assertions can reach for "every device event" instead of scanning.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]logging.Event, 0)}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneForMemory(event))
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// EventsOfCategory returns the retained events carrying the given
// category, in arrival order.
func (s *MemorySink) EventsOfCategory(category string) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []logging.Event
	for _, event := range s.events {
		if event.Category == category {
			matched = append(matched, event)
		}
	}
	return matched
}

// CountOfType counts retained events of one type.
func (s *MemorySink) CountOfType(t logging.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.events {
		if event.Type == t {
			count++
		}
	}
	return count
}

// LastOfType returns the most recent event of the given type, or false
// when none arrived.
func (s *MemorySink) LastOfType(t logging.EventType) (logging.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == t {
			return cloneForMemory(s.events[i]), true
		}
	}
	return logging.Event{}, false
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

func cloneForMemory(event logging.Event) logging.Event {
	cloned := event
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
