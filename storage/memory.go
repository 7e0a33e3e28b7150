package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps uploads in a map. Used in tests and local runs
// without an object store.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string]Object
	calls   int
	failErr error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: map[string]Object{}}
}

// FailWith makes every later Put return err; nil restores normal behaviour.
func (m *MemoryBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemoryBackend) Put(ctx context.Context, key string, obj Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failErr != nil {
		return "", m.failErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	obj.Data = data
	m.objects[key] = obj
	return "memory://" + key, nil
}

// Calls counts Put invocations, including failed ones.
func (m *MemoryBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryBackend) Object(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

func (m *MemoryBackend) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
