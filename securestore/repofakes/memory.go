package repofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/taproom-client/securestore"
)

var _ securestore.Storage = (*Memory)(nil)

// Memory is an in-memory Storage with switchable failure modes.
type Memory struct {
	values map[string][]byte
	lock   sync.RWMutex

	locked  bool
	failErr error
	writes  int
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// SetLocked makes every operation fail with securestore.ErrLocked.
func (m *Memory) SetLocked(locked bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.locked = locked
}

// FailWith makes every operation fail with err; nil restores normal behaviour.
func (m *Memory) FailWith(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failErr = err
}

// Put stores raw bytes bypassing failure modes, for seeding corrupt data.
func (m *Memory) Put(key string, value []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = append([]byte(nil), value...)
}

// Raw returns the stored bytes bypassing failure modes.
func (m *Memory) Raw(key string) ([]byte, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Writes counts successful Set calls.
func (m *Memory) Writes() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.writes
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if err := m.failure(); err != nil {
		return nil, err
	}
	v, ok := m.values[key]
	if !ok {
		return nil, securestore.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.failure(); err != nil {
		return err
	}
	m.values[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if err := m.failure(); err != nil {
		return err
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) failure() error {
	if m.locked {
		return securestore.ErrLocked
	}
	return m.failErr
}
