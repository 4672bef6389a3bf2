package history

import (
	"context"
	"sync"

	"github.com/Tyrowin/gischat/internal/protocol"
)

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	channels map[string][]protocol.Message
}

// NewMemoryStore returns a store keeping at most capacity messages per
// channel. A non-positive capacity keeps nothing.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: max(capacity, 0),
		channels: make(map[string][]protocol.Message),
	}
}

func (s *MemoryStore) Append(_ context.Context, channel string, m protocol.Message) error {
	if !protocol.Storable(m) {
		return ErrNotStorable
	}
	if s.capacity == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.channels[channel], m)
	if over := len(entries) - s.capacity; over > 0 {
		// Copy so the dropped head does not pin the backing array.
		entries = append([]protocol.Message(nil), entries[over:]...)
	}
	s.channels[channel] = entries
	return nil
}

func (s *MemoryStore) List(_ context.Context, channel string) ([]protocol.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]protocol.Message(nil), s.channels[channel]...), nil
}
