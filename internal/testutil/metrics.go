package testutil

import (
	"sync"

	"callbridge/internal/core/domain"
)

// Metrics records ports.CallMetrics observations.
type Metrics struct {
	mu          sync.Mutex
	States      []domain.CallState
	Actions     map[string]int
	Updates     map[string]int
	HostEvents  map[domain.HostEventType]int
	Subscribers int
}

func NewMetrics() *Metrics {
	return &Metrics{
		Actions:    make(map[string]int),
		Updates:    make(map[string]int),
		HostEvents: make(map[domain.HostEventType]int),
	}
}

func (m *Metrics) CallStateChanged(from, to domain.CallState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = append(m.States, to)
}

func (m *Metrics) WorkflowActionTriggered(action, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions[result]++
}

func (m *Metrics) EntityUpdated(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates[result]++
}

func (m *Metrics) HostEvent(event domain.HostEventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HostEvents[event]++
}

func (m *Metrics) ActiveSubscribers(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscribers = count
}

func (m *Metrics) StateHistory() []domain.CallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CallState(nil), m.States...)
}

func (m *Metrics) UpdateCount(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Updates[result]
}
