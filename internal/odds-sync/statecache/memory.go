package statecache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
)

// Memory mantém o snapshot em memória do processo. Put e Get copiam o
// snapshot, então nem quem grava nem quem lê compartilha estado com o slot.
type Memory struct {
	mu   sync.RWMutex
	snap *store.Snapshot
	log  *zap.Logger
}

// NewMemory cria um cache vazio
func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{log: log}
}

func (m *Memory) Put(_ context.Context, snap store.Snapshot) error {
	c := snap.Clone()
	m.mu.Lock()
	m.snap = &c
	m.mu.Unlock()
	m.log.Debug("snapshot cached", zap.Int("matches", snap.Count()))
	return nil
}

func (m *Memory) Get(_ context.Context) (store.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		m.log.Debug("no snapshot cached")
		return store.Snapshot{}, false, nil
	}
	m.log.Debug("snapshot retrieved", zap.Duration("age", m.snap.Age()))
	return m.snap.Clone(), true, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.snap = nil
	m.mu.Unlock()
	m.log.Debug("snapshot invalidated")
	return nil
}

func (m *Memory) IsPresent(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap != nil, nil
}
