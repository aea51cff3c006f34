package engine

import (
	"sync"

	"github.com/ihuzaapp/shopperd/internal/models"
)

// Factory builds a fresh engine for one shopper session. The factory wires
// shared collaborators (order book, claim ledger, dispatcher) into a
// per-session poller.
type Factory func(shopperID string) *Engine

// Manager tracks one running engine per shopper. The order book and claim
// ledger behind the engines are shared, which is what lets the ledger drop
// orders another shopper already claimed.
type Manager struct {
	mu      sync.Mutex
	factory Factory
	engines map[string]*Engine
}

// NewManager constructs an empty manager.
func NewManager(factory Factory) *Manager {
	return &Manager{
		factory: factory,
		engines: make(map[string]*Engine),
	}
}

// Start launches or restarts the shopper's engine at a location.
func (m *Manager) Start(shopperID string, loc models.Location) {
	m.mu.Lock()
	eng, ok := m.engines[shopperID]
	if !ok {
		eng = m.factory(shopperID)
		m.engines[shopperID] = eng
	}
	m.mu.Unlock()

	eng.Start(shopperID, loc)
}

// Stop halts the shopper's engine. Unknown shoppers are a no-op.
func (m *Manager) Stop(shopperID string) {
	m.mu.Lock()
	eng, ok := m.engines[shopperID]
	delete(m.engines, shopperID)
	m.mu.Unlock()

	if ok {
		eng.Stop()
	}
}

// Status reports the shopper's session, zero-valued when none runs.
func (m *Manager) Status(shopperID string) Session {
	m.mu.Lock()
	eng, ok := m.engines[shopperID]
	m.mu.Unlock()

	if !ok {
		return Session{}
	}
	return eng.Status()
}

// StopAll halts every running engine, used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, eng := range m.engines {
		engines = append(engines, eng)
	}
	m.engines = make(map[string]*Engine)
	m.mu.Unlock()

	for _, eng := range engines {
		eng.Stop()
	}
}
