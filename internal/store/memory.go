package store

import (
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory store.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]*Macro
	history map[string][]VersionEntry
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:    make(map[string]*Macro),
		history: make(map[string][]VersionEntry),
	}
}

// Get retrieves a macro by name.
func (m *Memory) Get(name string) (*Macro, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mac, ok := m.data[Key(name)]; ok {
		c := *mac
		return &c, nil
	}
	return nil, nil
}

// Put stores a macro. A changed code body adds a history version.
func (m *Memory) Put(mac *Macro) error {
	if err := mac.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(mac.Name)
	versions := m.history[key]
	if n := len(versions); n == 0 || versions[n-1].Code != mac.Code {
		m.history[key] = append(versions, VersionEntry{
			Version: n + 1,
			Code:    mac.Code,
			Ts:      time.Now().UTC().Format(time.RFC3339),
		})
	}
	c := *mac
	m.data[key] = &c
	return nil
}

// Delete removes a macro by name. Its history is kept.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, Key(name))
	return nil
}

// List returns every macro sorted by name.
func (m *Memory) List() ([]*Macro, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Macro, 0, len(m.data))
	for _, mac := range m.data {
		c := *mac
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return Key(out[i].Name) < Key(out[j].Name) })
	return out, nil
}

// GetHistory returns stored versions newest first. A limit of 0 returns all.
func (m *Memory) GetHistory(name string, limit int) ([]VersionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.history[Key(name)]
	out := make([]VersionEntry, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		out = append(out, versions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
