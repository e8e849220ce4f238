package store

import "sync"

// Memory is an in-memory Store for tests and mock-hardware runs.
// Commit copies staged values into a separate committed map so tests
// can tell staged and durable state apart.
type Memory struct {
	mu        sync.Mutex
	staged    map[string]uint32
	committed map[string]uint32

	// CommitErr, when set, is returned by Commit to simulate
	// persistence failures.
	CommitErr error
	Commits   int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		staged:    make(map[string]uint32),
		committed: make(map[string]uint32),
	}
}

func (m *Memory) GetU32(key string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.staged[key]
	return v, ok
}

func (m *Memory) SetU32(key string, value uint32) {
	m.mu.Lock()
	m.staged[key] = value
	m.mu.Unlock()
}

func (m *Memory) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commits++
	if m.CommitErr != nil {
		return m.CommitErr
	}
	for k, v := range m.staged {
		m.committed[k] = v
	}
	return nil
}

// Committed returns the durably stored value for key.
func (m *Memory) Committed(key string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[key]
	return v, ok
}
